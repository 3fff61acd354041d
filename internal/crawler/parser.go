package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser discovers outgoing links on an HTML page.
type Parser struct {
	// baseURL is the URL relative links resolve against. A <base href>
	// element on the page replaces it.
	baseURL *url.URL
}

// ParseResult is what link discovery found on one page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links are the absolute, de-duplicated href targets of <a> and <area>
	// elements in document order. They are not yet canonicalized.
	Links []string
}

// NewParser creates a parser resolving relative links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML from content and collects its links.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}
	return p.ParseNode(doc), nil
}

// ParseNode collects links from an already parsed document, such as the
// root node of a goquery document.
func (p *Parser) ParseNode(root *html.Node) *ParseResult {
	result := &ParseResult{Links: make([]string, 0)}
	seen := make(map[string]struct{})
	baseSet := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "base":
				if href := getAttr(n, "href"); href != "" && !baseSet {
					if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
						p.baseURL = p.baseURL.ResolveReference(u)
						baseSet = true
					}
				}
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "a", "area":
				if link := p.resolveURL(getAttr(n, "href")); link != "" && !hasNofollow(n) {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						result.Links = append(result.Links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return result
}

// resolveURL resolves href against the base URL. Non-navigational
// references (javascript:, mailto:, tel:, data:, bare fragments) resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// hasNofollow reports whether a link carries rel="nofollow".
func hasNofollow(n *html.Node) bool {
	for _, rel := range strings.Fields(strings.ToLower(getAttr(n, "rel"))) {
		if rel == "nofollow" {
			return true
		}
	}
	return false
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
