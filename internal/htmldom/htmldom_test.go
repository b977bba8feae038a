package htmldom

import (
	"strings"
	"testing"
)

var testProductHTML = []byte(`<!DOCTYPE html>
<html>
<head>
<title>Blue Widget | Acme Store</title>
<meta name="description" content="A fine blue widget">
<meta property="og:title" content="Blue Widget">
<script type="application/ld+json">
{"@type":"Product","name":"Blue Widget","offers":{"price":"29.99","priceCurrency":"USD","availability":"https://schema.org/InStock"}}
</script>
<script type="application/json" id="product-json">
{"product":{"title":"Blue Widget","variants":[{"sku":"BW-1","price":"29.99"}]}}
</script>
</head>
<body>
<main class="product">
<h1 class="product-title">Blue Widget</h1>
<div id="price" data-price="29.99">$29.99</div>
<div class="availability">In Stock</div>
</main>
</body>
</html>`)

func TestLoadDOM_TitleAndMeta(t *testing.T) {
	h := LoadDOM(testProductHTML, LoadOptions{})
	if h.IsEmpty() {
		t.Fatal("expected a non-empty handle")
	}
	if got := h.Title(); got != "Blue Widget | Acme Store" {
		t.Errorf("Title() = %q", got)
	}
	if got := h.MetaContent("description"); got != "A fine blue widget" {
		t.Errorf("MetaContent(description) = %q", got)
	}
	if got := h.MetaContent("og:title"); got != "Blue Widget" {
		t.Errorf("MetaContent(og:title) = %q", got)
	}
}

func TestLoadDOM_MalformedInputIsSafeToQuery(t *testing.T) {
	h := LoadDOM([]byte{0x00, 0xff, 0xfe}, LoadOptions{})
	// golang.org/x/net/html tolerates almost anything, but the handle must
	// never panic on subsequent queries either way.
	_ = h.Title()
	_ = h.SelectAll("div")
}

func TestLoadDOM_EnforcesSizeCap(t *testing.T) {
	huge := make([]byte, MaxDocumentBytes+1000)
	for i := range huge {
		huge[i] = 'a'
	}
	h := LoadDOM(huge, LoadOptions{})
	if h.IsEmpty() {
		t.Fatal("oversized input should still parse a truncated document, not go empty")
	}
}

func TestSelectAll_ClassAndAttr(t *testing.T) {
	h := LoadDOM(testProductHTML, LoadOptions{})

	title := h.Select(".product-title")
	if title == nil || CollectText(title) != "Blue Widget" {
		t.Fatalf("select .product-title: got %v", title)
	}

	priceNode := h.Select("div#price")
	if priceNode == nil {
		t.Fatal("select div#price: no match")
	}
	if Attr(priceNode, "data-price") != "29.99" {
		t.Errorf("data-price attr: got %q", Attr(priceNode, "data-price"))
	}

	if got := Attr(priceNode, "nonexistent"); got != "" {
		t.Errorf("missing attr should return empty string, got %q", got)
	}
}

func TestExtractEmbeddedJSON(t *testing.T) {
	blobs := ExtractEmbeddedJSON(testProductHTML)
	if len(blobs) != 2 {
		t.Fatalf("got %d blobs, want 2", len(blobs))
	}

	foundLD, foundAppJSON := false, false
	for _, b := range blobs {
		if name, ok := b.Get("name").AsString(); ok && name == "Blue Widget" {
			foundLD = true
		}
		if title, ok := b.Get("product", "title").AsString(); ok && title == "Blue Widget" {
			foundAppJSON = true
		}
	}
	if !foundLD {
		t.Error("expected to find the JSON-LD Product blob")
	}
	if !foundAppJSON {
		t.Error("expected to find the application/json product blob")
	}
}

func TestExtractEmbeddedJSON_LDArrayFlattened(t *testing.T) {
	raw := []byte(`<script type="application/ld+json">[{"@type":"Product","name":"A"},{"@type":"Product","name":"B"}]</script>`)
	blobs := ExtractEmbeddedJSON(raw)
	if len(blobs) != 2 {
		t.Fatalf("got %d blobs, want 2 (array flattened)", len(blobs))
	}
}

func TestExtractEmbeddedJSON_NextData(t *testing.T) {
	raw := []byte(`<script>__NEXT_DATA__ = {"props":{"pageProps":{"title":"X"}}};</script>`)
	blobs := ExtractEmbeddedJSON(raw)
	if len(blobs) != 1 {
		t.Fatalf("got %d blobs, want 1", len(blobs))
	}
	if v, ok := blobs[0].Get("props", "pageProps", "title").AsString(); !ok || v != "X" {
		t.Errorf("__NEXT_DATA__ not parsed correctly: %+v", blobs[0])
	}
}

func TestExtractEmbeddedJSON_SkipsFunctionScripts(t *testing.T) {
	raw := []byte(`<script>function init() { return {a: 1, b: 2, c: 3, d: 4, e: 5}; }</script>`)
	blobs := ExtractEmbeddedJSON(raw)
	if len(blobs) != 0 {
		t.Fatalf("expected function-prefixed scripts to be skipped, got %d blobs", len(blobs))
	}
}

func TestExtractPriceLikeStrings(t *testing.T) {
	got := ExtractPriceLikeStrings("Now only $29.99, was $39.99!")
	if len(got) < 2 {
		t.Fatalf("got %v, want at least 2 price-like matches", got)
	}
}

func TestExtractStockLikeStrings(t *testing.T) {
	got := ExtractStockLikeStrings("Currently In Stock. Only 3 left! Hurry before it's Sold Out.")
	if len(got) < 3 {
		t.Fatalf("got %v, want at least 3 stock-like matches", got)
	}
}

func TestNormalizeText(t *testing.T) {
	got := NormalizeText("  Hello,   WORLD!! \n\n")
	want := "hello world"
	if got != want {
		t.Errorf("NormalizeText = %q, want %q", got, want)
	}
}

func TestCollectText_SkipsScriptAndStyle(t *testing.T) {
	h := LoadDOM(testProductHTML, LoadOptions{})
	text := CollectText(h.Root())
	if strings.Contains(text, "schema.org") {
		t.Error("CollectText should not include <script> body content")
	}
}
