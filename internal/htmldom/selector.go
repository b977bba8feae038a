package htmldom

import (
	"strings"

	"golang.org/x/net/html"
)

// Select returns the first node matching selector, or nil on no match or an
// empty handle. Selector errors (an unparseable pattern) are swallowed and
// simply match nothing, per the Parser's "selector-error swallow" contract.
func (h *DomHandle) Select(selector string) *html.Node {
	all := h.SelectAll(selector)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// SelectAll returns every node matching a simple CSS selector. Supports the
// subset lifted from the teacher's extract/css.go: tag, .class, #id,
// tag.class, tag#id, tag[attr], tag[attr=val], and descendant combinators
// separated by spaces.
func (h *DomHandle) SelectAll(selector string) []*html.Node {
	if h.IsEmpty() {
		return nil
	}
	return querySelectorAll(h.root, selector)
}

func querySelectorAll(doc *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil
	}
	matches := matchSimple(doc, parts[0])
	for i := 1; i < len(parts); i++ {
		var next []*html.Node
		for _, parent := range matches {
			next = append(next, matchSimple(parent, parts[i])...)
		}
		matches = next
	}
	return matches
}

func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	var results []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if matchesSelector(n, m) {
			results = append(results, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return results
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
}

func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector
	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
		} else {
			s.attrKey = attrPart
		}
	}
	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}
	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}
	s.tag = sel
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && s.tag != "*" && n.Data != s.tag {
		return false
	}
	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}
	if s.class != "" {
		found := false
		for _, c := range strings.Fields(Attr(n, "class")) {
			if c == s.class {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if s.attrKey != "" {
		val, ok := AttrOK(n, s.attrKey)
		if !ok {
			return false
		}
		if s.attrVal != "" && val != s.attrVal {
			return false
		}
	}
	return true
}

// Attr returns the value of attribute key on n, or "" if absent — a
// null-safe getter matching the Parser contract's "attribute getters
// return null, not undefined, on miss".
func Attr(n *html.Node, key string) string {
	v, _ := AttrOK(n, key)
	return v
}

// AttrOK returns the value of attribute key on n and whether it was present.
func AttrOK(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// MetaContent returns the content attribute of the first
// <meta name="name"> or <meta property="name"> tag found, or "".
func (h *DomHandle) MetaContent(name string) string {
	if h.IsEmpty() {
		return ""
	}
	for _, m := range h.SelectAll("meta") {
		if Attr(m, "name") == name || Attr(m, "property") == name {
			return Attr(m, "content")
		}
	}
	return ""
}

// FirstText returns the collected text of the first node matching selector.
func (h *DomHandle) FirstText(selector string) string {
	n := h.Select(selector)
	if n == nil {
		return ""
	}
	return CollectText(n)
}
