package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xhad/hragent/internal/models"
)

type ScraperConfig struct {
	BaseURL        string
	MaxDepth       int
	RateLimit      float64 // requests per second
	IgnorePatterns []string
	Timeout        time.Duration
	Client         *http.Client
	Logger         *zap.Logger
	OnProgress     func(url string)
}

// Scraper crawls a hosted job posting (or any page) and the same-host pages
// it links to, up to MaxDepth links away.
type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
	logger   *zap.Logger
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth < 0 {
		config.MaxDepth = 0
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsedURL.Scheme)
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	return &Scraper{
		config:   config,
		client:   client,
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
		logger:   config.Logger,
	}, nil
}

// IsURL reports whether path should be scraped rather than read from disk.
func IsURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != s.baseHost {
		return false
	}

	// Skip obvious binary assets
	ext := strings.ToLower(parsedURL.Path)
	for _, skip := range []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".css", ".js", ".zip"} {
		if strings.HasSuffix(ext, skip) {
			return false
		}
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

func cleanContent(content string) string {
	// Remove extra whitespace
	content = strings.Join(strings.Fields(content), " ")

	// Remove common noise
	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.TrimSpace(content)
}

func extractMainContent(doc *goquery.Document) string {
	// Try to find main content area
	selectors := []string{
		"main",
		"article",
		".job-description",
		"#job-description",
		".content",
		"#content",
	}

	doc.Find("script, style, noscript").Remove()

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	// Fallback to body if no main content found
	if content == "" {
		content = doc.Find("body").Text()
	}

	return cleanContent(content)
}

// ExtractContent parses an HTML document and returns its title and main text.
func ExtractContent(r io.Reader) (title string, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", err
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	return title, extractMainContent(doc), nil
}

func (s *Scraper) Scrape(ctx context.Context, url string) ([]models.Document, error) {
	var documents []models.Document
	err := s.scrapeRecursive(ctx, url, 0, &documents)
	return documents, err
}

func (s *Scraper) scrapeRecursive(ctx context.Context, urlStr string, depth int, documents *[]models.Document) error {
	if depth > s.config.MaxDepth || s.visited[urlStr] {
		return nil
	}

	if !s.shouldProcessURL(urlStr) {
		return nil
	}

	s.visited[urlStr] = true
	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	// Apply rate limiting
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	links := collectLinks(doc)
	content := extractMainContent(doc)

	if content != "" {
		if title == "" {
			title = urlStr
		}
		*documents = append(*documents, models.Document{
			ID:      uuid.NewSHA1(uuid.NameSpaceURL, []byte(urlStr)).String(),
			Source:  urlStr,
			Title:   title,
			Content: content,
			Metadata: map[string]interface{}{
				"source":       urlStr,
				"file_name":    title,
				"depth":        depth,
				"contentType":  resp.Header.Get("Content-Type"),
				"lastModified": resp.Header.Get("Last-Modified"),
			},
		})
	}

	base, err := url.Parse(urlStr)
	if err != nil {
		return err
	}

	for _, href := range links {
		link, err := url.Parse(href)
		if err != nil {
			s.logger.Debug("skipping unparsable link", zap.String("href", href), zap.Error(err))
			continue
		}
		// Make sure the URL is absolute
		if !link.IsAbs() {
			link = base.ResolveReference(link)
		}
		link.Fragment = ""

		if err := s.scrapeRecursive(ctx, link.String(), depth+1, documents); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("error scraping linked page", zap.String("url", link.String()), zap.Error(err))
		}
	}

	return nil
}

func collectLinks(doc *goquery.Document) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		if href, ok := selection.Attr("href"); ok {
			links = append(links, href)
		}
	})
	return links
}
