// Package htmldom wraps golang.org/x/net/html with the parsing, selector,
// and embedded-JSON-harvesting helpers the extraction cascades need, built
// on the teacher's extract/css.go selector engine and domkeeper/internal/
// extract's DOM-walking idiom rather than a hand-rolled tokenizer.
package htmldom

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MaxDocumentBytes is the hard size cap enforced before parsing, matching
// the fetcher's own 10 MB response cap so a document that slipped past it
// (e.g. a synthetic Shopify JSON wrapper) still can't blow up the parser.
const MaxDocumentBytes = 10 * 1024 * 1024

// DomHandle is a queryable parsed document.
type DomHandle struct {
	root *html.Node
	// empty reports whether parsing failed or the input was truncated to
	// nothing usable; query methods on an empty handle return zero values
	// rather than panicking.
	empty bool
}

// LoadOptions controls LoadDOM behaviour.
type LoadOptions struct {
	// StripScriptsAndStyles removes <script> and <style> subtrees from the
	// parsed tree, shrinking memory once embedded JSON has already been
	// harvested from the raw string.
	StripScriptsAndStyles bool
}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// LoadDOM normalizes raw HTML (line endings, collapsed blank-line runs),
// enforces the size cap, and parses it into a DomHandle. Malformed input
// never returns an error: it yields an empty handle whose query methods are
// all safe no-ops, matching the contract that a parse failure degrades
// extraction gracefully rather than aborting the whole check.
func LoadDOM(rawHTML []byte, opts LoadOptions) *DomHandle {
	if len(rawHTML) > MaxDocumentBytes {
		rawHTML = rawHTML[:MaxDocumentBytes]
	}

	normalized := normalizeNewlines(rawHTML)
	normalized = blankLinesRe.ReplaceAll(normalized, []byte("\n\n"))

	doc, err := html.Parse(bytes.NewReader(normalized))
	if err != nil || doc == nil {
		return &DomHandle{empty: true}
	}

	h := &DomHandle{root: doc}
	if opts.StripScriptsAndStyles {
		stripTags(doc, atom.Script, atom.Style)
	}
	return h
}

func normalizeNewlines(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	b = bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
	return b
}

func stripTags(n *html.Node, tags ...atom.Atom) {
	var doomed []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, t := range tags {
				if n.DataAtom == t {
					doomed = append(doomed, n)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	for _, d := range doomed {
		if d.Parent != nil {
			d.Parent.RemoveChild(d)
		}
	}
}

// IsEmpty reports whether parsing failed and every query method will
// return zero values.
func (h *DomHandle) IsEmpty() bool { return h == nil || h.empty }

// Title returns the document <title> text, or "" if absent.
func (h *DomHandle) Title() string {
	if h.IsEmpty() {
		return ""
	}
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			if n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(h.root)
	return title
}

// CollectText returns all visible text under n, skipping script/style/
// noscript subtrees, space-joined.
func CollectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// Render serializes a node subtree back to an HTML string.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	html.Render(&buf, n)
	return buf.String()
}

// Root exposes the raw *html.Node tree for callers that need it directly
// (e.g. strategy code walking <img> inventories by hand).
func (h *DomHandle) Root() *html.Node {
	if h.IsEmpty() {
		return nil
	}
	return h.root
}
