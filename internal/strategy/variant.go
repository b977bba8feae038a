package strategy

import (
	"strings"

	"github.com/lattani/trackwright/internal/htmldom"
	"github.com/lattani/trackwright/internal/jsonval"
)

// MaxVariants caps the number of variant shells a single extraction run
// ever produces, regardless of how many option combinations the source
// page offers.
const MaxVariants = 100

// VariantShell is a candidate variant before it is reconciled against
// stored state: an attribute set plus whatever per-variant price/stock the
// source page volunteered directly (left nil when only a product-level
// value is known, deferring to ingestion's reconciliation policy).
type VariantShell struct {
	Attributes map[string]string
	Price      *PriceCandidate
	Stock      string
}

// ExtractVariants gathers attribute options from embedded JSON (JSON-LD
// `variants` / Shopify `product.variants`) and from DOM select/radio
// option groups, then cross-products any DOM-only option sets into variant
// shells. JSON-sourced variants are returned as-is (they already carry
// their own per-variant identity) rather than cross-producted again.
func ExtractVariants(in *CascadeInput) ([]VariantShell, []string) {
	var notes []string

	if shells := variantsFromJSON(in.JSONBlobs); len(shells) > 0 {
		return capVariants(shells), notes
	}
	notes = append(notes, "variants: no JSON variant array found")

	if in.DOM == nil || in.DOM.IsEmpty() {
		notes = append(notes, "variants: empty dom")
		return nil, notes
	}

	options := optionGroupsFromDOM(in.DOM)
	if len(options) == 0 {
		notes = append(notes, "variants: no dom option groups found")
		return nil, notes
	}

	shells := crossProduct(options)
	return capVariants(shells), notes
}

func capVariants(shells []VariantShell) []VariantShell {
	if len(shells) > MaxVariants {
		return shells[:MaxVariants]
	}
	return shells
}

// variantsFromJSON looks for a JSON-LD `hasVariant`/`variants` array or a
// Shopify `product.variants` array and turns each element into a
// VariantShell, preferring its own price/availability over anything else.
func variantsFromJSON(blobs []jsonval.Value) []VariantShell {
	var shells []VariantShell

	for _, blob := range blobs {
		for _, key := range []string{"variants", "hasVariant"} {
			arr, ok := blob.Field(key).AsArray()
			if !ok {
				if nested, ok := blob.Get("product", key).AsArray(); ok {
					arr = nested
				} else {
					continue
				}
			}
			for _, item := range arr {
				shells = append(shells, variantShellFromJSONObject(item))
			}
		}
	}
	return shells
}

func variantShellFromJSONObject(item jsonval.Value) VariantShell {
	attrs := map[string]string{}
	for _, key := range []string{"option1", "option2", "option3", "title", "size", "color"} {
		if v := item.Field(key); !v.IsNull() {
			if s, ok := v.AsString(); ok && s != "" {
				attrs[key] = s
			}
		}
	}

	shell := VariantShell{Attributes: attrs}
	if v := item.Field("price"); !v.IsNull() {
		if amount, ok := numberFromValue(v); ok {
			currency, _ := findSiblingCurrency(item)
			shell.Price = &PriceCandidate{Amount: amount, Currency: currency}
		}
	}
	if avail := item.Field("availability"); !avail.IsNull() {
		if s, ok := avail.AsString(); ok {
			lower := strings.ToLower(s)
			for suffix, status := range schemaAvailability {
				if strings.HasSuffix(lower, suffix) {
					shell.Stock = status
				}
			}
		}
	}
	if qty := item.Field("inventory_quantity"); !qty.IsNull() {
		if n, ok := qty.AsNumber(); ok {
			shell.Stock = statusFromQuantity(n)
		}
	}
	return shell
}

// optionGroupsFromDOM collects, for each <select> or named radio-input
// group, the distinct option labels offered — one slice of labels per
// attribute group, keyed by the group's name.
func optionGroupsFromDOM(dom *htmldom.DomHandle) map[string][]string {
	groups := map[string][]string{}

	for _, sel := range dom.SelectAll("select") {
		name := htmldom.Attr(sel, "name")
		if name == "" {
			name = htmldom.Attr(sel, "id")
		}
		if name == "" {
			continue
		}
		for _, opt := range dom.SelectAll("option") {
			if opt.Parent != sel {
				continue
			}
			label := strings.TrimSpace(htmldom.CollectText(opt))
			if label == "" {
				continue
			}
			groups[name] = appendUnique(groups[name], label)
		}
	}

	for _, radio := range dom.SelectAll(`input[type=radio]`) {
		name := htmldom.Attr(radio, "name")
		if name == "" {
			continue
		}
		label := htmldom.Attr(radio, "value")
		if label == "" {
			continue
		}
		groups[name] = appendUnique(groups[name], label)
	}

	return groups
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// crossProduct builds one VariantShell per combination of option values
// across all groups (e.g. {size: [S,M], color: [Red,Blue]} yields 4
// shells).
func crossProduct(groups map[string][]string) []VariantShell {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}

	combos := []map[string]string{{}}
	for _, name := range names {
		values := groups[name]
		var next []map[string]string
		for _, combo := range combos {
			for _, v := range values {
				merged := make(map[string]string, len(combo)+1)
				for k, existing := range combo {
					merged[k] = existing
				}
				merged[name] = v
				next = append(next, merged)
				if len(next) >= MaxVariants {
					break
				}
			}
			if len(next) >= MaxVariants {
				break
			}
		}
		combos = next
	}

	shells := make([]VariantShell, 0, len(combos))
	for _, combo := range combos {
		shells = append(shells, VariantShell{Attributes: combo})
	}
	return shells
}
