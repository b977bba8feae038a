package strategy

import (
	"context"
	"testing"

	"github.com/lattani/trackwright/internal/htmldom"
)

func cascadeInput(t *testing.T, rawHTML string) *CascadeInput {
	t.Helper()
	blobs := htmldom.ExtractEmbeddedJSON([]byte(rawHTML))
	dom := htmldom.LoadDOM([]byte(rawHTML), htmldom.LoadOptions{})
	return &CascadeInput{DOM: dom, RawHTML: []byte(rawHTML), JSONBlobs: blobs}
}

func TestPriceCascade_PrefersJSONOverDOM(t *testing.T) {
	html := `<html><body>
<script type="application/ld+json">{"@type":"Product","offers":{"price":"29.99","priceCurrency":"USD"}}</script>
<div class="price">$39.99</div>
</body></html>`
	in := cascadeInput(t, html)

	res, _ := PriceCascade().Run(context.Background(), in)
	if res == nil {
		t.Fatal("expected a price result")
	}
	if res.Strategy != "json_price" {
		t.Errorf("expected json_price to win, got %s", res.Strategy)
	}
	cand := res.Value.(PriceCandidate)
	if cand.Amount != 29.99 || cand.Currency != "USD" {
		t.Errorf("got %+v", cand)
	}
}

func TestPriceCascade_FallsBackToDOM(t *testing.T) {
	html := `<html><body><div class="product-price">$19.99</div></body></html>`
	in := cascadeInput(t, html)

	res, _ := PriceCascade().Run(context.Background(), in)
	if res == nil || res.Strategy != "dom_price" {
		t.Fatalf("expected dom_price to win, got %+v", res)
	}
}

func TestPriceCascade_FallsBackToHeuristic(t *testing.T) {
	html := `<html><body><p>Now only $24.99 while supplies last.</p></body></html>`
	in := cascadeInput(t, html)

	res, _ := PriceCascade().Run(context.Background(), in)
	if res == nil || res.Strategy != "heuristic_price" {
		t.Fatalf("expected heuristic_price to win, got %+v", res)
	}
}

func TestStockCascade_NotifyMeOverridesWithoutActiveCTA(t *testing.T) {
	html := `<html><body>
<button>Notify Me</button>
<p>Currently out of stock</p>
</body></html>`
	in := cascadeInput(t, html)

	res, _ := StockCascade().Run(context.Background(), in)
	if res == nil || res.Strategy != "notify_me" || res.Value != StockOutOfStock {
		t.Fatalf("expected notify_me out_of_stock, got %+v", res)
	}
}

func TestStockCascade_ActiveCTARaisesThreshold(t *testing.T) {
	html := `<html><body>
<button>Notify Me</button>
<button>Add to Cart</button>
</body></html>`
	in := cascadeInput(t, html)

	res, notes := StockCascade().Run(context.Background(), in)
	if res != nil && res.Strategy == "notify_me" {
		t.Fatalf("expected notify_me to defer with an active CTA present, got %+v (notes=%v)", res, notes)
	}
}

func TestStockCascade_JSONSchemaAvailability(t *testing.T) {
	html := `<html><body>
<script type="application/ld+json">{"@type":"Product","offers":{"availability":"https://schema.org/InStock"}}</script>
</body></html>`
	in := cascadeInput(t, html)

	res, _ := StockCascade().Run(context.Background(), in)
	if res == nil || res.Strategy != "json_stock" || res.Value != StockInStock {
		t.Fatalf("expected json_stock in_stock, got %+v", res)
	}
}

func TestStockCascade_HeuristicFallback(t *testing.T) {
	html := `<html><body><p>This item is Sold Out right now.</p></body></html>`
	in := cascadeInput(t, html)

	res, _ := StockCascade().Run(context.Background(), in)
	if res == nil || res.Value != StockOutOfStock {
		t.Fatalf("expected an out_of_stock result, got %+v", res)
	}
}

func TestExtractVariants_CrossProductsDOMOptions(t *testing.T) {
	html := `<html><body>
<select name="size"><option>S</option><option>M</option></select>
<select name="color"><option>Red</option><option>Blue</option></select>
</body></html>`
	in := cascadeInput(t, html)

	shells, _ := ExtractVariants(in)
	if len(shells) != 4 {
		t.Fatalf("expected 4 cross-producted shells, got %d: %+v", len(shells), shells)
	}
}

func TestExtractVariants_PrefersJSONVariants(t *testing.T) {
	html := `<html><body>
<script type="application/json">{"product":{"variants":[{"option1":"Small","price":"9.99"},{"option1":"Large","price":"12.99"}]}}</script>
</body></html>`
	in := cascadeInput(t, html)

	shells, _ := ExtractVariants(in)
	if len(shells) != 2 {
		t.Fatalf("expected 2 json-sourced shells, got %d", len(shells))
	}
	if shells[0].Price == nil || shells[0].Price.Amount != 9.99 {
		t.Errorf("expected the first shell to carry its own price, got %+v", shells[0])
	}
}

func TestDynamicIndicators_FlagsSPAShell(t *testing.T) {
	html := `<html><body><div id="root"></div><script src="/a.js"></script><script src="/b.js"></script><script>window.__NEXT_DATA__ = {};</script></body></html>`
	dom := htmldom.LoadDOM([]byte(html), htmldom.LoadOptions{})

	dynamic, indicators := DynamicIndicators([]byte(html), dom)
	if !dynamic {
		t.Errorf("expected an SPA shell to be flagged dynamic, indicators=%v", indicators)
	}
}

func TestDynamicIndicators_StaticPageNotFlagged(t *testing.T) {
	html := `<html><body><article><h1>Title</h1><p>` + longParagraph() + `</p></article></body></html>`
	dom := htmldom.LoadDOM([]byte(html), htmldom.LoadOptions{})

	dynamic, indicators := DynamicIndicators([]byte(html), dom)
	if dynamic {
		t.Errorf("expected a static article page not to be flagged dynamic, indicators=%v", indicators)
	}
}

func longParagraph() string {
	s := ""
	for i := 0; i < 20; i++ {
		s += "This is a long paragraph with plenty of real visible text content. "
	}
	return s
}
