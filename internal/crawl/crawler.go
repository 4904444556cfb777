// Package crawl fetches a business website and extracts the text corpus the
// knowledge extractor runs on.
package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sales-agent/backend/pkg/config"
	"github.com/sales-agent/backend/pkg/logger"
)

// paragraphsPerPage caps how much of a single page reaches the corpus so one
// long page cannot crowd out the rest of the site.
const paragraphsPerPage = 20

type Page struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

type Result struct {
	Pages []Page `json:"pages"`
}

type Crawler struct {
	client        *http.Client
	maxPages      int
	maxDepth      int
	userAgent     string
	maxCorpusSize int
}

func New(cfg config.CrawlerConfig) *Crawler {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Crawler{
		client:        &http.Client{Timeout: timeout},
		maxPages:      cfg.MaxPages,
		maxDepth:      cfg.MaxDepth,
		userAgent:     cfg.UserAgent,
		maxCorpusSize: cfg.MaxCorpusSize,
	}
}

type crawlItem struct {
	url   string
	depth int
}

// Crawl walks the site breadth-first from the start URL, staying on the same
// host and honoring the page and depth limits. Individual page failures are
// logged and skipped.
func (c *Crawler) Crawl(ctx context.Context, rawURL string) (*Result, error) {
	start, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid start url: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme: %q", start.Scheme)
	}

	result := &Result{}
	visited := map[string]bool{}
	queue := []crawlItem{{url: normalizeURL(start), depth: 0}}

	for len(queue) > 0 && len(result.Pages) < c.maxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := queue[0]
		queue = queue[1:]

		if visited[item.url] {
			continue
		}
		visited[item.url] = true

		page, links, err := c.fetchPage(ctx, item.url)
		if err != nil {
			logger.Warn("page fetch failed", zap.String("url", item.url), zap.Error(err))
			continue
		}

		if page.Title != "" || len(page.Paragraphs) > 0 {
			result.Pages = append(result.Pages, page)
		}

		if item.depth >= c.maxDepth {
			continue
		}
		for _, link := range links {
			if !visited[link] {
				queue = append(queue, crawlItem{url: link, depth: item.depth + 1})
			}
		}
	}

	if len(result.Pages) == 0 {
		return nil, fmt.Errorf("no pages scraped from website")
	}

	logger.Info("crawl finished",
		zap.String("start", start.String()),
		zap.Int("pages", len(result.Pages)),
	)

	return result, nil
}

func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (Page, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "text/html") {
		return Page{}, nil, fmt.Errorf("not an html page: %s", contentType)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Page{}, nil, err
	}

	page := parsePage(pageURL, doc)
	links := sameHostLinks(base, doc)
	return page, links, nil
}

func parsePage(pageURL string, doc *goquery.Document) Page {
	doc.Find("script, style, nav, footer, header, aside").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	var paragraphs []string
	doc.Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	return Page{URL: pageURL, Title: title, Paragraphs: paragraphs}
}

func sameHostLinks(base *url.URL, doc *goquery.Document) []string {
	var links []string
	seen := map[string]bool{}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}

		resolved := base.ResolveReference(ref)
		if resolved.Host != base.Host || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}
		link := normalizeURL(resolved)
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})

	return links
}

// normalizeURL strips the fragment and gives bare-host URLs a "/" path so
// "http://host" and "http://host/" dedupe to one visit.
func normalizeURL(u *url.URL) string {
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// Corpus flattens the crawl into the text block handed to the extractor,
// one section per page, truncated to the configured size.
func (c *Crawler) Corpus(result *Result) string {
	var sections []string
	for _, p := range result.Pages {
		paras := p.Paragraphs
		if len(paras) > paragraphsPerPage {
			paras = paras[:paragraphsPerPage]
		}

		section := ""
		if p.Title != "" {
			section = "# " + p.Title + "\n"
		}
		section += strings.Join(paras, "\n")
		if section = strings.TrimSpace(section); section != "" {
			sections = append(sections, section)
		}
	}

	corpus := strings.Join(sections, "\n\n---\n\n")
	if c.maxCorpusSize > 0 && len(corpus) > c.maxCorpusSize {
		corpus = corpus[:c.maxCorpusSize] + "\n\n...(truncated)..."
	}
	return corpus
}
