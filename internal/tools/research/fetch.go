package research

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"allycheck/internal/logging"
	"allycheck/internal/tools"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

const (
	defaultUserAgent  = "Mozilla/5.0 (compatible; allycheck/1.0; accessibility audit)"
	defaultMaxBytes   = 4 << 20
	defaultMaxChars   = 50000
	defaultFetchLimit = 30 * time.Second
)

// Fetcher retrieves remote pages for the retrieval and reference tools.
type Fetcher struct {
	Client    *http.Client
	Cache     Cache
	UserAgent string
	MaxBytes  int64 // body read limit
	MaxChars  int   // truncation limit for tool output
}

// NewFetcher returns a Fetcher with defaults and the given cache (may be nil).
func NewFetcher(cache Cache) *Fetcher {
	return &Fetcher{
		Client:    &http.Client{},
		Cache:     cache,
		UserAgent: defaultUserAgent,
		MaxBytes:  defaultMaxBytes,
		MaxChars:  defaultMaxChars,
	}
}

// Page is a fetched document.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Headers     http.Header
	Body        string
}

// Get fetches rawURL. Network failures and 5xx/429 responses are marked
// transient; other non-2xx statuses are permanent.
func (f *Fetcher) Get(ctx context.Context, rawURL string, timeout time.Duration, followRedirects bool) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: must be absolute http or https", rawURL)
	}
	if timeout <= 0 {
		timeout = defaultFetchLimit
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	client := *f.Client
	if !followRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	}

	resp, err := client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, tools.Transient(fmt.Errorf("request to %s timed out after %v", rawURL, timeout))
		}
		return nil, tools.Transient(fmt.Errorf("failed to fetch URL: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, tools.Transient(fmt.Errorf("HTTP %d - %s", resp.StatusCode, rawURL))
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d - %s", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes))
	if err != nil {
		return nil, tools.Transient(fmt.Errorf("failed to read response: %w", err))
	}

	return &Page{
		URL:         resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     resp.Header,
		Body:        string(body),
	}, nil
}

// =============================================================================
// fetch_url
// =============================================================================

type fetchURLArgs struct {
	URL             string  `json:"url"`
	Timeout         float64 `json:"timeout"`
	FollowRedirects *bool   `json:"follow_redirects"`
}

func (a *fetchURLArgs) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("url is required")
	}
	if a.Timeout < 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// FetchURLTool returns the fetch_url tool.
func (f *Fetcher) FetchURLTool() *tools.Tool {
	return tools.NewTyped("fetch_url",
		"Fetch HTML content from a URL for accessibility analysis. Handles redirects, timeouts, and common errors.",
		tools.CategoryRetrieval,
		tools.ToolSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url":              {Type: "string", Description: "The URL to fetch (must be http or https)"},
				"timeout":          {Type: "number", Description: "Request timeout in seconds (default: 30)", Default: 30},
				"follow_redirects": {Type: "boolean", Description: "Whether to follow redirects (default: true)", Default: true},
			},
		},
		f.fetchURL,
	)
}

func (f *Fetcher) fetchURL(ctx context.Context, args fetchURLArgs) (string, error) {
	follow := args.FollowRedirects == nil || *args.FollowRedirects
	timeout := time.Duration(args.Timeout * float64(time.Second))

	logging.ResearchDebug("fetch_url: url=%s timeout=%v follow=%v", args.URL, timeout, follow)
	page, err := f.Get(ctx, args.URL, timeout, follow)
	if err != nil {
		return "", err
	}

	content := truncate(page.Body, f.MaxChars)
	return fmt.Sprintf("Successfully fetched %s\nStatus: %d\nContent-Type: %s\n\nHTML Content:\n%s",
		page.URL, page.StatusCode, orUnknown(page.ContentType), content), nil
}

// =============================================================================
// fetch_url_metadata
// =============================================================================

type metadataArgs struct {
	URL string `json:"url"`
}

func (a *metadataArgs) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return errors.New("url is required")
	}
	return nil
}

// PageMetadata summarizes a page without its body.
type PageMetadata struct {
	URL           string
	StatusCode    int
	ContentType   string
	ContentLength string
	Server        string
	Title         string
	Description   string
	Lang          string
}

// FetchMetadataTool returns the fetch_url_metadata tool.
func (f *Fetcher) FetchMetadataTool() *tools.Tool {
	return tools.NewTyped("fetch_url_metadata",
		"Fetch only metadata (status, title, description, language) without full HTML content",
		tools.CategoryRetrieval,
		tools.ToolSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {Type: "string", Description: "The URL to fetch metadata from"},
			},
		},
		func(ctx context.Context, args metadataArgs) (string, error) {
			page, err := f.Get(ctx, args.URL, 10*time.Second, true)
			if err != nil {
				return "", err
			}
			md := ExtractMetadata(page)
			var sb strings.Builder
			fmt.Fprintf(&sb, "Metadata for %s:\n", args.URL)
			fmt.Fprintf(&sb, "url: %s\n", md.URL)
			fmt.Fprintf(&sb, "status_code: %d\n", md.StatusCode)
			fmt.Fprintf(&sb, "content_type: %s\n", orUnknown(md.ContentType))
			fmt.Fprintf(&sb, "content_length: %s\n", orUnknown(md.ContentLength))
			fmt.Fprintf(&sb, "server: %s\n", orUnknown(md.Server))
			fmt.Fprintf(&sb, "title: %s\n", orMissing(md.Title))
			fmt.Fprintf(&sb, "description: %s\n", orMissing(md.Description))
			fmt.Fprintf(&sb, "lang: %s", orMissing(md.Lang))
			return sb.String(), nil
		},
	)
}

// ExtractMetadata reads the title, meta description and html lang of a page.
func ExtractMetadata(page *Page) PageMetadata {
	md := PageMetadata{
		URL:           page.URL,
		StatusCode:    page.StatusCode,
		ContentType:   page.ContentType,
		ContentLength: page.Headers.Get("Content-Length"),
		Server:        page.Headers.Get("Server"),
	}
	doc, err := html.Parse(strings.NewReader(page.Body))
	if err != nil {
		return md
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "html":
				md.Lang = getAttr(n, "lang")
			case "title":
				if md.Title == "" && n.FirstChild != nil {
					md.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				if strings.EqualFold(getAttr(n, "name"), "description") {
					md.Description = strings.TrimSpace(getAttr(n, "content"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return md
}

// =============================================================================
// HTML → TEXT
// =============================================================================

// htmlToText converts HTML to simplified markdown-like text.
func htmlToText(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}
	var sb strings.Builder
	extractText(doc, &sb, 0)
	return cleanText(sb.String())
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 80 {
		return
	}

	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer":
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString("\n\n" + strings.Repeat("#", int(n.Data[1]-'0')) + " ")
		case "p", "div", "section", "article":
			sb.WriteString("\n\n")
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "pre":
			sb.WriteString("\n\n```\n")
		case "img":
			if alt := getAttr(n, "alt"); alt != "" {
				fmt.Fprintf(sb, "[Image: %s]", alt)
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString("\n\n")
		case "pre":
			sb.WriteString("\n```\n\n")
		}
	}
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func cleanText(s string) string {
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n\n[...truncated...]"
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func orMissing(s string) string {
	if s == "" {
		return "(missing)"
	}
	return s
}
