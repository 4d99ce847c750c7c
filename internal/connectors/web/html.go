package web

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// ParseHTML parses body into a node tree. The parser is lenient, so
// malformed markup still yields a usable tree.
func ParseHTML(body string) (*html.Node, error) {
	return html.Parse(strings.NewReader(body))
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// IsElement reports whether n is an element with one of the given tags.
func IsElement(n *html.Node, tags ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, t := range tags {
		if n.Data == t {
			return true
		}
	}
	return false
}

// FindAll returns every descendant of n (n included) matching pred, in
// document order.
func FindAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if pred(c) {
			out = append(out, c)
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return out
}

// FindFirst returns the first descendant of n (n excluded) matching pred.
func FindFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if pred(ch) {
			return ch
		}
		if found := FindFirst(ch, pred); found != nil {
			return found
		}
	}
	return nil
}

// Text returns the trimmed text content of n with internal whitespace
// collapsed.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for ch := c.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Anchor is a link found in a page.
type Anchor struct {
	Node *html.Node
	Href string
	Text string
}

// Anchors returns the a[href] elements under n.
func Anchors(n *html.Node) []Anchor {
	nodes := FindAll(n, func(c *html.Node) bool {
		return IsElement(c, "a") && strings.TrimSpace(Attr(c, "href")) != ""
	})
	out := make([]Anchor, 0, len(nodes))
	for _, a := range nodes {
		out = append(out, Anchor{Node: a, Href: strings.TrimSpace(Attr(a, "href")), Text: Text(a)})
	}
	return out
}

// Resolve joins ref against base. Unparseable input yields "".
func Resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

// Ext returns the lower-case extension of the URL path of raw, dot included.
func Ext(raw string) string {
	u, err := url.Parse(raw)
	p := raw
	if err == nil {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

// BaseName returns the last path element of the URL path of raw.
func BaseName(raw string) string {
	u, err := url.Parse(raw)
	p := raw
	if err == nil {
		p = u.Path
	}
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	return path.Base(p)
}

// ExtSet is a set of allowed extensions, dot included.
type ExtSet map[string]bool

// NewExtSet builds a set from extensions like ".pdf".
func NewExtSet(exts ...string) ExtSet {
	s := make(ExtSet, len(exts))
	for _, e := range exts {
		s[strings.ToLower(e)] = true
	}
	return s
}

// Allows reports whether raw has an allowed extension.
func (s ExtSet) Allows(raw string) bool {
	return s[Ext(raw)]
}
