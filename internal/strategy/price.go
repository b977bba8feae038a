package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/lattani/trackwright/internal/htmldom"
	"github.com/lattani/trackwright/internal/jsonval"
)

// PriceCandidate is the Value carried by a winning price Result.
type PriceCandidate struct {
	Amount   float64
	Currency string
}

// PriceCascade returns the three price strategies in the spec's fixed
// precedence order: JSON, then DOM, then heuristic text matching.
func PriceCascade() *Cascade {
	return &Cascade{Strategies: []Strategy{
		jsonPriceStrategy{},
		domPriceStrategy{},
		heuristicPriceStrategy{},
	}}
}

var priceKeyHints = []string{
	"price", "price_amount", "pricevalue", "amount", "cost", "value",
	"current_price", "sale_price", "regular_price", "final_price",
}

type jsonPriceStrategy struct{}

func (jsonPriceStrategy) Name() string { return "json_price" }

func (s jsonPriceStrategy) Extract(ctx context.Context, in *CascadeInput) (*Result, []string) {
	var best *Result
	var bestScore float64 = -1
	var notes []string

	consider := func(amount float64, currency string, score float64, raw string) {
		if amount < minPlausibleAmount || amount > maxPlausibleAmount {
			return
		}
		if score > bestScore {
			bestScore = score
			best = &Result{
				Strategy: s.Name(),
				Value:    PriceCandidate{Amount: amount, Currency: currency},
				Score:    score,
				Raw:      raw,
			}
		}
	}

	for _, blob := range in.JSONBlobs {
		blob.Walk(10, func(path []string, v jsonval.Value) bool {
			if v.Kind() == jsonval.KindObject {
				for _, k := range v.Keys() {
					lower := strings.ToLower(k)
					if !hasAnyHint(lower, priceKeyHints) {
						continue
					}
					field := v.Field(k)
					amount, ok := numberFromValue(field)
					if !ok {
						continue
					}
					score := 5.0
					currency, hasCurrency := findSiblingCurrency(v)
					if hasCurrency {
						score += 10
					}
					if amount >= 0.01 && amount <= 100000 {
						score += 5
					}
					if strings.Contains(lower, "current") || strings.Contains(lower, "sale") {
						score += 3
					}
					consider(amount, currency, score, fmt.Sprintf("%v=%v", k, amount))
				}

				if offers := v.Field("offers"); !offers.IsNull() {
					walkOffers(offers, func(amount float64, currency string) {
						score := 2.0
						if currency != "" {
							score += 10
						}
						if amount >= 0.01 && amount <= 100000 {
							score += 5
						}
						consider(amount, currency, score, "offers")
					})
				}
			}
			return true
		})
	}

	if best == nil {
		notes = append(notes, "json_price: no candidate found")
		return nil, notes
	}
	return best, notes
}

func hasAnyHint(lower string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

func numberFromValue(v jsonval.Value) (float64, bool) {
	if n, ok := v.AsNumber(); ok {
		return n, true
	}
	if str, ok := v.AsString(); ok {
		return parseAmount(str)
	}
	return 0, false
}

func findSiblingCurrency(obj jsonval.Value) (string, bool) {
	for _, key := range []string{"priceCurrency", "currency", "currencyCode"} {
		if v := obj.Field(key); !v.IsNull() {
			if s, ok := v.AsString(); ok && s != "" {
				return strings.ToUpper(s), true
			}
		}
	}
	return "", false
}

func walkOffers(offers jsonval.Value, fn func(amount float64, currency string)) {
	items := []jsonval.Value{offers}
	if arr, ok := offers.AsArray(); ok {
		items = arr
	}
	for _, item := range items {
		var amount float64
		var ok bool
		for _, key := range []string{"price", "priceAmount"} {
			if v := item.Field(key); !v.IsNull() {
				if amount, ok = numberFromValue(v); ok {
					break
				}
			}
		}
		if !ok {
			continue
		}
		currency, _ := findSiblingCurrency(item)
		fn(amount, currency)
	}
}

var priceSelectors = []string{
	".price", "#price", ".current-price", ".sale-price", ".product-price",
	"[data-price]",
}

type domPriceStrategy struct{}

func (domPriceStrategy) Name() string { return "dom_price" }

func (s domPriceStrategy) Extract(ctx context.Context, in *CascadeInput) (*Result, []string) {
	if in.DOM == nil || in.DOM.IsEmpty() {
		return nil, []string{"dom_price: empty dom"}
	}

	var best *Result
	var bestScore float64 = -1

	consider := func(raw string, score float64) {
		amount, ok := parseAmount(raw)
		if !ok {
			return
		}
		currency, _ := detectCurrency(raw)
		if currency != "" {
			score += 8
		}
		if isPlausiblePrice(amount) {
			score += 5
		}
		if score > bestScore {
			bestScore = score
			best = &Result{
				Strategy: s.Name(),
				Value:    PriceCandidate{Amount: amount, Currency: currency},
				Score:    score,
				Raw:      raw,
			}
		}
	}

	for _, sel := range priceSelectors {
		for _, n := range in.DOM.SelectAll(sel) {
			if v, ok := htmldom.AttrOK(n, "data-price"); ok {
				consider(v, 12)
			}
			consider(htmldom.CollectText(n), 10)
		}
	}

	if amt := in.DOM.MetaContent("product:price:amount"); amt != "" {
		currency := in.DOM.MetaContent("product:price:currency")
		if amount, ok := parseAmount(amt); ok {
			score := 15.0
			if currency != "" {
				score += 8
			}
			if score > bestScore {
				bestScore = score
				best = &Result{
					Strategy: s.Name(),
					Value:    PriceCandidate{Amount: amount, Currency: strings.ToUpper(currency)},
					Score:    score,
					Raw:      amt,
				}
			}
		}
	}

	if best == nil {
		return nil, []string{"dom_price: no candidate found"}
	}
	return best, nil
}

type heuristicPriceStrategy struct{}

func (heuristicPriceStrategy) Name() string { return "heuristic_price" }

func (s heuristicPriceStrategy) Extract(ctx context.Context, in *CascadeInput) (*Result, []string) {
	candidates := htmldom.ExtractPriceLikeStrings(string(in.RawHTML))
	var best *Result
	var bestScore float64 = -1

	for _, raw := range candidates {
		amount, ok := parseAmount(raw)
		if !ok || !isPlausiblePrice(amount) {
			continue
		}
		score := 1.0
		currency, hasCurrency := detectCurrency(raw)
		if hasCurrency {
			score += 5
		}
		if strings.Contains(raw, ".") {
			score += 2
		}
		if score > bestScore {
			bestScore = score
			best = &Result{
				Strategy: s.Name(),
				Value:    PriceCandidate{Amount: amount, Currency: currency},
				Score:    score,
				Raw:      raw,
			}
		}
	}

	if best == nil {
		return nil, []string{"heuristic_price: no candidate found"}
	}
	return best, nil
}
