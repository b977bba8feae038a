package extractor

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/lattani/trackwright/internal/htmldom"
	"github.com/lattani/trackwright/internal/jsonval"
)

var productImageSelectors = []string{
	".product-image img", ".product__image img", "[itemprop=image]",
}

// extractImages accumulates an ordered set of image URLs from every source
// the waterfall names, normalizes protocol-relative URLs to https, drops
// anything that isn't http(s) or root-relative, and caps the result at
// MaxImages.
func extractImages(dom *htmldom.DomHandle, blobs []jsonval.Value) ([]string, []string) {
	var notes []string
	seen := map[string]bool{}
	var out []string

	add := func(raw string) {
		url := normalizeImageURL(raw)
		if url == "" || seen[url] {
			return
		}
		seen[url] = true
		out = append(out, url)
	}

	if dom != nil && !dom.IsEmpty() {
		add(dom.MetaContent("og:image"))
		add(dom.MetaContent("twitter:image"))
	}

	for _, blob := range blobs {
		collectJSONImages(blob, add)
	}

	if dom == nil || dom.IsEmpty() {
		notes = append(notes, "images: empty dom")
		if len(out) > MaxImages {
			out = out[:MaxImages]
		}
		return out, notes
	}

	for _, sel := range productImageSelectors {
		for _, img := range dom.SelectAll(sel) {
			addImgNode(img, add)
		}
	}

	for _, img := range dom.SelectAll("img") {
		addImgNode(img, add)
	}

	if len(out) > MaxImages {
		notes = append(notes, "images: truncated to cap")
		out = out[:MaxImages]
	}
	return out, notes
}

func addImgNode(img *html.Node, add func(string)) {
	add(htmldom.Attr(img, "src"))
	add(htmldom.Attr(img, "data-src"))
	for _, candidate := range parseSrcset(htmldom.Attr(img, "srcset")) {
		add(candidate)
	}
}

// parseSrcset splits a srcset attribute's comma-separated candidates and
// strips each one's trailing descriptor (e.g. "800w" or "2x").
func parseSrcset(srcset string) []string {
	if srcset == "" {
		return nil
	}
	var urls []string
	for _, part := range strings.Split(srcset, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) > 0 {
			urls = append(urls, fields[0])
		}
	}
	return urls
}

// collectJSONImages walks a single JSON blob for every shape the waterfall
// names: a top-level/Product `image` field (string, array of strings, or
// array/single of {url|contentUrl|src|originalSrc} objects), a nested
// product.image(s), and a Shopify product.images array.
func collectJSONImages(blob jsonval.Value, add func(string)) {
	collectImageField(blob.Field("image"), add)
	collectImageField(blob.Get("product", "image"), add)
	collectImageField(blob.Get("product", "images"), add)
	collectImageField(blob.Field("images"), add)
}

func collectImageField(v jsonval.Value, add func(string)) {
	if v.IsNull() {
		return
	}
	if s, ok := v.AsString(); ok {
		add(s)
		return
	}
	if arr, ok := v.AsArray(); ok {
		for _, item := range arr {
			collectImageField(item, add)
		}
		return
	}
	for _, key := range []string{"url", "contentUrl", "src", "originalSrc"} {
		if s, ok := v.Field(key).AsString(); ok {
			add(s)
		}
	}
}

// normalizeImageURL resolves protocol-relative URLs to https and drops
// anything that isn't http(s) or root-relative, matching the policy that
// relative-path resolution is left to downstream consumers.
func normalizeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "/") {
		return raw
	}
	return ""
}
