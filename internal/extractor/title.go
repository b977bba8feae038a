package extractor

import (
	"strings"

	"github.com/lattani/trackwright/internal/htmldom"
	"github.com/lattani/trackwright/internal/jsonval"
)

var titleSelectors = []string{
	".product-title", ".product__title", "[itemprop=name]", "h1.product-title",
}

// extractTitle walks the title waterfall: JSON-LD Product.name, Shopify
// product.title, any untyped top-level "title" field, og:title, twitter:title,
// product-specific selectors, the first <h1>, meta[name=title], and finally
// the document <title> split on its first "|" or "-" separator.
func extractTitle(dom *htmldom.DomHandle, blobs []jsonval.Value) (string, []string) {
	var notes []string

	for _, blob := range blobs {
		if typ, ok := blob.Field("@type").AsString(); ok && strings.EqualFold(typ, "product") {
			if name, ok := blob.Field("name").AsString(); ok && strings.TrimSpace(name) != "" {
				return strings.TrimSpace(name), notes
			}
		}
	}
	notes = append(notes, "title: no JSON-LD Product.name")

	for _, blob := range blobs {
		if title, ok := blob.Get("product", "title").AsString(); ok && strings.TrimSpace(title) != "" {
			return strings.TrimSpace(title), notes
		}
	}
	notes = append(notes, "title: no shopify product.title")

	for _, blob := range blobs {
		if blob.Field("@type").IsNull() {
			if title, ok := blob.Field("title").AsString(); ok && strings.TrimSpace(title) != "" {
				return strings.TrimSpace(title), notes
			}
		}
	}
	notes = append(notes, "title: no untyped json title field")

	if dom == nil || dom.IsEmpty() {
		notes = append(notes, "title: empty dom")
		return "", notes
	}

	if og := dom.MetaContent("og:title"); strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og), notes
	}
	notes = append(notes, "title: no og:title")

	if tw := dom.MetaContent("twitter:title"); strings.TrimSpace(tw) != "" {
		return strings.TrimSpace(tw), notes
	}
	notes = append(notes, "title: no twitter:title")

	for _, sel := range titleSelectors {
		if text := strings.TrimSpace(dom.FirstText(sel)); text != "" {
			return text, notes
		}
	}
	notes = append(notes, "title: no product-title selector match")

	if h1 := strings.TrimSpace(dom.FirstText("h1")); h1 != "" {
		return h1, notes
	}
	notes = append(notes, "title: no h1")

	if meta := dom.MetaContent("title"); strings.TrimSpace(meta) != "" {
		return strings.TrimSpace(meta), notes
	}
	notes = append(notes, "title: no meta[name=title]")

	if docTitle := strings.TrimSpace(dom.Title()); docTitle != "" {
		return firstTitleSegment(docTitle), notes
	}
	notes = append(notes, "title: no document title")

	return "", notes
}

// firstTitleSegment splits a document <title> like "Widget | Acme Store" or
// "Widget - Acme Store" and returns the first segment, trimmed.
func firstTitleSegment(title string) string {
	for _, sep := range []string{"|", "-"} {
		if idx := strings.Index(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return title
}

// extractDescription walks meta[name=description] -> og:description ->
// twitter:description.
func extractDescription(dom *htmldom.DomHandle) (string, []string) {
	var notes []string
	if dom == nil || dom.IsEmpty() {
		notes = append(notes, "description: empty dom")
		return "", notes
	}

	if desc := dom.MetaContent("description"); strings.TrimSpace(desc) != "" {
		return strings.TrimSpace(desc), notes
	}
	notes = append(notes, "description: no meta[name=description]")

	if og := dom.MetaContent("og:description"); strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og), notes
	}
	notes = append(notes, "description: no og:description")

	if tw := dom.MetaContent("twitter:description"); strings.TrimSpace(tw) != "" {
		return strings.TrimSpace(tw), notes
	}
	notes = append(notes, "description: no twitter:description")

	return "", notes
}
