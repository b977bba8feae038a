package strategy

import (
	"context"
	"strings"

	"github.com/lattani/trackwright/internal/htmldom"
	"github.com/lattani/trackwright/internal/jsonval"
	"golang.org/x/net/html"
)

// Stock status enum values. Every strategy that emits a stock Result uses
// one of these exact strings as its Value.
const (
	StockInStock    = "in_stock"
	StockOutOfStock = "out_of_stock"
	StockLowStock   = "low_stock"
	StockBackorder  = "backorder"
	StockPreorder   = "preorder"
	StockUnknown    = "unknown"
)

// StockCascade returns the five stock strategies in the spec's fixed
// precedence order: NotifyMe first (it overrides an apparently-purchasable
// page), then JSON, DOM, button, and finally heuristic text matching.
func StockCascade() *Cascade {
	return &Cascade{Strategies: []Strategy{
		notifyMeStrategy{},
		jsonStockStrategy{},
		domStockStrategy{},
		buttonStockStrategy{},
		heuristicStockStrategy{},
	}}
}

var notifyPhrases = []string{
	"notify me", "get notified", "email me when available", "waitlist",
	"remind me",
}

var futureAvailabilityPhrases = []string{
	"currently out of stock", "temporarily out of stock",
	"back in stock", "we'll email you when",
}

var purchaseCTAPhrases = []string{
	"add to cart", "add to bag", "add to basket", "buy now", "purchase",
	"checkout", "shop now", "order now",
}

type notifyMeStrategy struct{}

func (notifyMeStrategy) Name() string { return "notify_me" }

func (s notifyMeStrategy) Extract(ctx context.Context, in *CascadeInput) (*Result, []string) {
	if in.DOM == nil || in.DOM.IsEmpty() {
		return nil, []string{"notify_me: empty dom"}
	}

	var score float64
	var matched string

	for _, n := range interactiveElements(in.DOM.Root()) {
		text := strings.ToLower(htmldom.CollectText(n))
		if containsAny(text, notifyPhrases) {
			weight := 25.0
			switch n.DataAtom.String() {
			case "button":
				weight = 30
			case "form":
				weight = 28
			}
			score += weight
			matched = text
		}
	}

	bodyText := strings.ToLower(htmldom.CollectText(in.DOM.Root()))
	if containsAny(bodyText, futureAvailabilityPhrases) {
		score += 20
		if matched == "" {
			matched = "future availability copy"
		}
	}

	threshold := 20.0
	active := hasActivePurchaseCTA(in.DOM)
	if active {
		score -= 20
		threshold = 40
	}

	if score >= threshold {
		return &Result{Strategy: s.Name(), Value: StockOutOfStock, Score: score, Raw: matched}, nil
	}
	return nil, []string{"notify_me: below threshold"}
}

func interactiveElements(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom.String() {
			case "button", "a", "input", "form":
				out = append(out, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func hasActivePurchaseCTA(dom *htmldom.DomHandle) bool {
	for _, n := range interactiveElements(dom.Root()) {
		text := strings.ToLower(htmldom.CollectText(n))
		if !containsAny(text, purchaseCTAPhrases) {
			continue
		}
		if isDisabled(n) {
			continue
		}
		return true
	}
	return false
}

func isDisabled(n *html.Node) bool {
	if _, ok := htmldom.AttrOK(n, "disabled"); ok {
		return true
	}
	if htmldom.Attr(n, "aria-disabled") == "true" {
		return true
	}
	if htmldom.Attr(n, "data-disabled") == "true" {
		return true
	}
	for _, c := range strings.Fields(htmldom.Attr(n, "class")) {
		if c == "disabled" {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// schemaAvailability maps schema.org availability IRIs (suffix-matched) to
// a stock status.
var schemaAvailability = map[string]string{
	"instock":   StockInStock,
	"outofstock": StockOutOfStock,
	"preorder":  StockPreorder,
	"backorder": StockBackorder,
	"presale":   StockPreorder,
}

// stockTextMapping maps substrings to a stock status, checked in order (so
// more specific phrases like "sold out" should precede generic ones).
var stockTextMapping = []struct {
	substr string
	status string
}{
	{"sold out", StockOutOfStock},
	{"out of stock", StockOutOfStock},
	{"unavailable", StockOutOfStock},
	{"backorder", StockBackorder},
	{"preorder", StockPreorder},
	{"pre-order", StockPreorder},
	{"low stock", StockLowStock},
	{"in stock", StockInStock},
}

func statusFromText(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, m := range stockTextMapping {
		if strings.Contains(lower, m.substr) {
			return m.status, true
		}
	}
	return "", false
}

func statusFromQuantity(n float64) string {
	switch {
	case n <= 0:
		return StockOutOfStock
	case n <= 4:
		return StockLowStock
	default:
		return StockInStock
	}
}

type jsonStockStrategy struct{}

func (jsonStockStrategy) Name() string { return "json_stock" }

func (s jsonStockStrategy) Extract(ctx context.Context, in *CascadeInput) (*Result, []string) {
	var found *Result

	emit := func(status, raw string, score float64) {
		if found == nil || score > found.Score {
			found = &Result{Strategy: s.Name(), Value: status, Score: score, Raw: raw}
		}
	}

	for _, blob := range in.JSONBlobs {
		blob.Walk(10, func(path []string, v jsonval.Value) bool {
			switch v.Kind() {
			case jsonval.KindBool:
				if len(path) == 0 {
					return true
				}
				key := strings.ToLower(path[len(path)-1])
				if !strings.Contains(key, "stock") && !strings.Contains(key, "available") {
					return true
				}
				b, _ := v.AsBool()
				if b {
					emit(StockInStock, "bool:true", 5)
				} else {
					emit(StockOutOfStock, "bool:false", 5)
				}
			case jsonval.KindNumber:
				if len(path) == 0 {
					return true
				}
				key := strings.ToLower(path[len(path)-1])
				if !strings.Contains(key, "quantity") && !strings.Contains(key, "stock_level") {
					return true
				}
				n, _ := v.AsNumber()
				emit(statusFromQuantity(n), "qty", 6)
			case jsonval.KindString:
				str, _ := v.AsString()
				lowerStr := strings.ToLower(str)
				for suffix, status := range schemaAvailability {
					if strings.HasSuffix(lowerStr, suffix) {
						emit(status, str, 10)
						return true
					}
				}
				if status, ok := statusFromText(str); ok {
					emit(status, str, 4)
				}
			case jsonval.KindObject:
				if offers := v.Field("offers"); !offers.IsNull() {
					walkOffersAvailability(offers, emit)
				}
				if avail := v.Field("availability"); !avail.IsNull() {
					if str, ok := avail.AsString(); ok {
						lowerStr := strings.ToLower(str)
						for suffix, status := range schemaAvailability {
							if strings.HasSuffix(lowerStr, suffix) {
								emit(status, str, 10)
							}
						}
					}
				}
			}
			return true
		})
	}

	if found == nil {
		return nil, []string{"json_stock: no candidate found"}
	}
	return found, nil
}

func walkOffersAvailability(offers jsonval.Value, emit func(status, raw string, score float64)) {
	items := []jsonval.Value{offers}
	if arr, ok := offers.AsArray(); ok {
		items = arr
	}
	for _, item := range items {
		if avail := item.Field("availability"); !avail.IsNull() {
			if str, ok := avail.AsString(); ok {
				lowerStr := strings.ToLower(str)
				for suffix, status := range schemaAvailability {
					if strings.HasSuffix(lowerStr, suffix) {
						emit(status, str, 10)
					}
				}
			}
		}
		if qty := item.Field("inventoryQuantity"); !qty.IsNull() {
			if n, ok := qty.AsNumber(); ok {
				emit(statusFromQuantity(n), "qty", 6)
			}
		}
	}
}

var stockSelectors = []string{
	".stock", "#stock", ".availability", "[data-stock]",
	"[data-availability]", "[data-inventory]",
}

type domStockStrategy struct{}

func (domStockStrategy) Name() string { return "dom_stock" }

func (s domStockStrategy) Extract(ctx context.Context, in *CascadeInput) (*Result, []string) {
	if in.DOM == nil || in.DOM.IsEmpty() {
		return nil, []string{"dom_stock: empty dom"}
	}

	var best *Result
	consider := func(raw string, selectorScore float64) {
		status, ok := statusFromText(raw)
		if !ok {
			return
		}
		score := selectorScore
		if best == nil || score > best.Score {
			best = &Result{Strategy: s.Name(), Value: status, Score: score, Raw: raw}
		}
	}

	for _, sel := range stockSelectors {
		for _, n := range in.DOM.SelectAll(sel) {
			consider(htmldom.CollectText(n), 10)
			for _, attr := range []string{"data-stock", "data-availability", "data-inventory"} {
				if v, ok := htmldom.AttrOK(n, attr); ok {
					consider(v, 12)
				}
			}
		}
	}

	if best == nil {
		return nil, []string{"dom_stock: no candidate found"}
	}
	return best, nil
}

type buttonStockStrategy struct{}

func (buttonStockStrategy) Name() string { return "button_stock" }

func (s buttonStockStrategy) Extract(ctx context.Context, in *CascadeInput) (*Result, []string) {
	if in.DOM == nil || in.DOM.IsEmpty() {
		return nil, []string{"button_stock: empty dom"}
	}

	var inScore, outScore float64
	for _, n := range interactiveElements(in.DOM.Root()) {
		text := strings.ToLower(htmldom.CollectText(n))
		disabled := isDisabled(n)

		if containsAny(text, purchaseCTAPhrases) {
			if disabled {
				outScore += 15
			} else {
				inScore += 10
			}
		}
		if status, ok := statusFromText(text); ok && status == StockOutOfStock {
			if disabled {
				outScore += 10
			} else {
				outScore += 5
			}
		}
	}

	switch {
	case inScore == 0 && outScore == 0:
		return nil, []string{"button_stock: no candidate found"}
	case outScore > inScore:
		return &Result{Strategy: s.Name(), Value: StockOutOfStock, Score: outScore, Raw: "button text"}, nil
	default:
		return &Result{Strategy: s.Name(), Value: StockInStock, Score: inScore, Raw: "button text"}, nil
	}
}

type heuristicStockStrategy struct{}

func (heuristicStockStrategy) Name() string { return "heuristic_stock" }

func (s heuristicStockStrategy) Extract(ctx context.Context, in *CascadeInput) (*Result, []string) {
	matches := htmldom.ExtractStockLikeStrings(string(in.RawHTML))
	if len(matches) == 0 {
		return nil, []string{"heuristic_stock: no candidate found"}
	}
	for _, m := range matches {
		if status, ok := statusFromText(m); ok {
			return &Result{Strategy: s.Name(), Value: status, Score: 1, Raw: m}, nil
		}
	}
	return nil, []string{"heuristic_stock: no parseable candidate"}
}
