package loader

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/smallnest/ragpipe/corpus"
	"github.com/smallnest/ragpipe/rag"
)

// HTMLLoader loads web pages from local files or http(s) URLs.
type HTMLLoader struct {
	sources []string
	client  *http.Client
}

var (
	_ rag.DocumentLoader = (*HTMLLoader)(nil)
	_ corpus.Source      = (*HTMLLoader)(nil)
)

// HTMLOption configures an HTMLLoader.
type HTMLOption func(*HTMLLoader)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(c *http.Client) HTMLOption {
	return func(l *HTMLLoader) {
		l.client = c
	}
}

// NewHTMLLoader creates a loader for the given file paths or URLs.
func NewHTMLLoader(sources []string, opts ...HTMLOption) *HTMLLoader {
	l := &HTMLLoader{sources: sources, client: http.DefaultClient}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements rag.DocumentLoader.
func (l *HTMLLoader) Load(ctx context.Context) ([]rag.Document, error) {
	return corpus.Load(ctx, l)
}

// Records implements corpus.Source.
func (l *HTMLLoader) Records(ctx context.Context) ([]corpus.Record, error) {
	records := make([]corpus.Record, 0, len(l.sources))
	for _, src := range l.sources {
		data, pageURL, err := l.read(ctx, src)
		if err != nil {
			return nil, err
		}
		r, err := ParseHTML(bytes.NewReader(data), pageURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", src, err)
		}
		records = append(records, r)
	}
	return records, nil
}

func (l *HTMLLoader) read(ctx context.Context, src string) ([]byte, string, error) {
	if !isRemote(src) {
		data, err := os.ReadFile(src)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read file %s: %w", src, err)
		}
		return data, src, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch %s: status code %d", src, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", src, err)
	}
	return data, src, nil
}

func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

var textPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)

// ParseHTML extracts a corpus record from a page. Relative links and image
// sources are resolved against pageURL when it is an absolute URL. The title
// falls back to the first heading when the page has no <title>.
func ParseHTML(r io.Reader, pageURL string) (corpus.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return corpus.Record{}, err
	}

	base, _ := url.Parse(pageURL)
	if base != nil && !base.IsAbs() {
		base = nil
	}

	rec := corpus.Record{URL: pageURL}

	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			rec.LDJSONScripts = append(rec.LDJSONScripts, text)
		}
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		rec.ImageURLs = append(rec.ImageURLs, resolve(base, s.AttrOr("src", "")))
	})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		rec.PageHrefs = append(rec.PageHrefs, resolve(base, href))
	})
	doc.Find("link").Each(func(_ int, s *goquery.Selection) {
		rec.LinkTags = append(rec.LinkTags, attributes(s))
	})
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		rec.MetaTags = append(rec.MetaTags, attributes(s))
	})

	rec.Content = visibleText(doc)
	return rec, nil
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body")
	body.Find("script, style, noscript, template").Remove()

	markup, err := body.Html()
	if err != nil {
		return ""
	}
	text := html.UnescapeString(textPolicy.Sanitize(markup))
	return strings.Join(strings.Fields(text), " ")
}

func attributes(s *goquery.Selection) rag.Value {
	m := rag.NewMap()
	if len(s.Nodes) > 0 {
		for _, attr := range s.Nodes[0].Attr {
			m.Set(attr.Key, rag.String(attr.Val))
		}
	}
	return rag.MapValue(m)
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
