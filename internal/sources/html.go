package sources

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// BaseAdapter provides HTML helpers shared by scraping verifiers
type BaseAdapter struct{}

// ParseHTML parses an HTML document
func (b *BaseAdapter) ParseHTML(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// ExtractText extracts whitespace-collapsed text content from a node
func (b *BaseAdapter) ExtractText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch {
		case node.Type == html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteByte(' ')
		case node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style"):
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// HasClass checks if a node has a specific CSS class
func (b *BaseAdapter) HasClass(n *html.Node, className string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, class := range strings.Fields(b.GetAttribute(n, "class")) {
		if class == className {
			return true
		}
	}
	return false
}

// GetAttribute gets an attribute value from a node
func (b *BaseAdapter) GetAttribute(n *html.Node, attrKey string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// IsElement reports whether n is an element with the given tag
func (b *BaseAdapter) IsElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

// FindAll finds all nodes matching a predicate
func (b *BaseAdapter) FindAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return results
}

// FindFirst finds the first node matching a predicate
func (b *BaseAdapter) FindFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	var result *html.Node

	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}

	walk(n)
	return result
}

// Ancestor returns the nearest ancestor element with one of the given tags, or nil
func (b *BaseAdapter) Ancestor(n *html.Node, tags ...string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		for _, tag := range tags {
			if p.Data == tag {
				return p
			}
		}
	}
	return nil
}

// ResolveURL resolves href against base; returns "" when either fails to parse
func (b *BaseAdapter) ResolveURL(base, href string) string {
	bu, err := url.Parse(base)
	if err != nil {
		return ""
	}
	hu, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return bu.ResolveReference(hu).String()
}
