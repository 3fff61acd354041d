package extractor

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/newscrawl/internal/config"
	"github.com/nao1215/newscrawl/internal/model"
	"golang.org/x/net/publicsuffix"
)

// ErrNotArticle is returned by Extract for hub pages. It is a
// classification result, not a failure.
var ErrNotArticle = errors.New("not an article")

// Extractor classifies pages and pulls article fields out of them.
// It is stateless apart from its logger and safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for extraction warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parse decodes the page body and builds a goquery document.
func Parse(page *model.Page) (*goquery.Document, error) {
	r, err := Decode(page)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", page.URL, err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", page.URL, err)
	}
	return doc, nil
}

// Extract parses the page and returns its article record, or ErrNotArticle
// when the page is a hub.
func (e *Extractor) Extract(page *model.Page, rule config.SiteRule) (*model.ArticleRecord, error) {
	if !page.IsHTML() {
		return nil, ErrNotArticle
	}
	doc, err := Parse(page)
	if err != nil {
		return nil, err
	}
	return e.ExtractDocument(page.URL, doc, rule)
}

// ExtractDocument is Extract on an already parsed document.
// A page is an article iff both the title and the content selector match.
// Every other field is optional and falls back to its zero value.
func (e *Extractor) ExtractDocument(pageURL string, doc *goquery.Document, rule config.SiteRule) (*model.ArticleRecord, error) {
	sel := rule.Selectors
	title := doc.Find(sel.Title)
	content := doc.Find(sel.Content)
	if title.Length() == 0 || content.Length() == 0 {
		return nil, ErrNotArticle
	}

	rec := &model.ArticleRecord{
		URL:     pageURL,
		Source:  Source(pageURL),
		Title:   NormalizeText(title.First().Text()),
		Content: contentText(content.First()),
	}
	if sel.Category != "" {
		rec.Category = NormalizeText(doc.Find(sel.Category).First().Text())
	}
	if sel.Comments != "" {
		rec.Comments = commentCount(doc.Find(sel.Comments).First())
	}
	if sel.Images != "" {
		rec.Images = doc.Find(sel.Images).Length()
	}
	if sel.Date != "" {
		if node := doc.Find(sel.Date).First(); node.Length() > 0 {
			date, ok := dateFrom(node)
			if !ok {
				e.logger.Warn("unparseable article date", "url", pageURL, "site", rule.Label())
			}
			rec.Date = date
		}
	}
	return rec, nil
}

// contentText joins the paragraphs of the container, or uses the container's
// own text when it has none.
func contentText(container *goquery.Selection) string {
	paragraphs := container.Find("p")
	if paragraphs.Length() == 0 {
		return NormalizeText(container.Text())
	}
	parts := make([]string, 0, paragraphs.Length())
	paragraphs.Each(func(_ int, p *goquery.Selection) {
		if text := NormalizeText(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

func commentCount(node *goquery.Selection) int {
	if node.Length() == 0 {
		return 0
	}
	if n, ok := FirstInt(node.Text()); ok {
		return n
	}
	if attr, ok := node.Attr("content"); ok {
		if n, ok := FirstInt(attr); ok {
			return n
		}
	}
	return 0
}

// dateFrom tries the datetime attribute, then the content attribute, then
// the element text.
func dateFrom(node *goquery.Selection) (string, bool) {
	for _, attr := range []string{"datetime", "content"} {
		if v, ok := node.Attr(attr); ok {
			if date, ok := ParseDate(v); ok {
				return date, true
			}
		}
	}
	return ParseDate(node.Text())
}

// Source returns the registered domain of rawURL's host ("zpravy.idnes.cz"
// becomes "idnes.cz"), or the host itself for IP addresses and hosts
// without one.
func Source(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil {
		return host
	}
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	return host
}
