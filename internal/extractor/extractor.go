// Package extractor orchestrates a fetched document through DOM loading,
// embedded-JSON harvesting, and every extraction cascade into a single
// ProductSnapshot, the Ingestion layer's sole input.
package extractor

import (
	"context"
	"time"

	"github.com/lattani/trackwright/internal/fetch"
	"github.com/lattani/trackwright/internal/htmldom"
	"github.com/lattani/trackwright/internal/strategy"
)

// MaxDocumentBytes mirrors the fetcher's own cap: whichever HTML the
// extractor picks is truncated to this size before anything downstream
// touches it.
const MaxDocumentBytes = 10 * 1024 * 1024

// MaxImages caps the accumulated image list.
const MaxImages = 10

// ProductSnapshot is the Extractor's sole output: everything Ingestion
// needs to reconcile a product's stored state, plus a diagnostic trail.
type ProductSnapshot struct {
	URL         string
	FinalURL    string
	FetchedAt   time.Time
	Title       string
	Description string
	Images      []string
	Variants    []strategy.VariantShell
	Pricing     *strategy.PriceCandidate
	PricingNote string
	Stock       string
	StockNote   string
	Notes       []string
	Metadata    SnapshotMetadata
}

// SnapshotMetadata carries the dynamic-content diagnostic flag.
type SnapshotMetadata struct {
	IsLikelyDynamic   bool
	DynamicIndicators []string
	JSONBlobsCount    int
}

// Extract turns a fetch.Result into a ProductSnapshot. It never returns an
// error for scrape-level failure — a document that fails to parse yields
// an empty-handle DOM and the waterfalls simply fall through to their
// weakest rung, landing in Notes.
func Extract(ctx context.Context, res *fetch.Result) *ProductSnapshot {
	raw := pickHTML(res)
	if len(raw) > MaxDocumentBytes {
		raw = raw[:MaxDocumentBytes]
	}

	dom := htmldom.LoadDOM(raw, htmldom.LoadOptions{StripScriptsAndStyles: false})
	blobs := htmldom.ExtractEmbeddedJSON(raw)

	in := &strategy.CascadeInput{DOM: dom, RawHTML: raw, JSONBlobs: blobs}

	snap := &ProductSnapshot{
		URL:       res.OriginalURL,
		FinalURL:  res.FinalURL,
		FetchedAt: res.FetchedAt,
	}

	title, titleNotes := extractTitle(dom, blobs)
	snap.Title = title
	snap.Notes = append(snap.Notes, titleNotes...)

	desc, descNotes := extractDescription(dom)
	snap.Description = desc
	snap.Notes = append(snap.Notes, descNotes...)

	images, imageNotes := extractImages(dom, blobs)
	snap.Images = images
	snap.Notes = append(snap.Notes, imageNotes...)

	variants, variantNotes := strategy.ExtractVariants(in)
	snap.Variants = variants
	snap.Notes = append(snap.Notes, variantNotes...)

	priceResult, priceNotes := strategy.PriceCascade().Run(ctx, in)
	snap.Notes = append(snap.Notes, priceNotes...)
	if priceResult != nil {
		cand := priceResult.Value.(strategy.PriceCandidate)
		snap.Pricing = &cand
		snap.PricingNote = priceResult.Strategy
	}

	stockResult, stockNotes := strategy.StockCascade().Run(ctx, in)
	snap.Notes = append(snap.Notes, stockNotes...)
	if stockResult != nil {
		snap.Stock = stockResult.Value.(string)
		snap.StockNote = stockResult.Strategy
	} else {
		snap.Stock = strategy.StockUnknown
	}

	likelyDynamic, indicators := strategy.DynamicIndicators(raw, dom)
	snap.Metadata = SnapshotMetadata{
		IsLikelyDynamic:   likelyDynamic,
		DynamicIndicators: indicators,
		JSONBlobsCount:    len(blobs),
	}

	return snap
}

// pickHTML prefers raw (HTTP-path) HTML over rendered HTML, per the
// Extractor's top-level flow.
func pickHTML(res *fetch.Result) []byte {
	if len(res.RawHTML) > 0 {
		return res.RawHTML
	}
	return res.RenderedHTML
}
