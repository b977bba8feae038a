// Package ingestion reconciles an extracted ProductSnapshot against stored
// state inside a single transaction, recording history on every diff and
// translating diffs into pending notification rows.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lattani/trackwright/internal/extractor"
	"github.com/lattani/trackwright/internal/money"
	"github.com/lattani/trackwright/internal/store"
	"github.com/lattani/trackwright/internal/strategy"
)

// DefaultThresholdPercentage is the price-drop percentage that triggers a
// PRICE notification when a user hasn't set their own threshold.
const DefaultThresholdPercentage = 10.0

// ErrVariantCapReached is returned by reconcileVariant when a product
// already holds strategy.MaxVariants distinct rows and shell would add a
// new one. The per-snapshot cap in ingestTx bounds how many new variants a
// single check can introduce; this bounds the total stored across
// successive checks, since attribute-set drift (size charts changing,
// color names being renamed) can otherwise grow the row count unbounded.
var ErrVariantCapReached = errors.New("ingestion: product already holds the maximum number of variants")

// Result is what one ingest call reconciled: the product, every variant it
// touched, the notifications freshly created as a result, and — per the
// committed Open Question resolution — any product-level price that was
// observed but could not be attributed to a specific existing variant.
type Result struct {
	Product                       *store.Product
	Variants                      []*store.Variant
	Notifications                 []*store.Notification
	ProductLevelPriceUnattributed *strategy.PriceCandidate
}

// Ingest reconciles snap against stored state inside a single transaction:
// find-or-create the product, find-or-create/update each variant, append
// history on every diff, and translate diffs into pending notifications.
// Any failure aborts the whole reconcile with no partial writes.
func Ingest(ctx context.Context, s *store.Store, snap *extractor.ProductSnapshot) (*Result, error) {
	var result *Result
	err := s.WithTx(ctx, func(tx *store.Store) error {
		r, err := ingestTx(ctx, tx, snap)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func ingestTx(ctx context.Context, s *store.Store, snap *extractor.ProductSnapshot) (*Result, error) {
	product, err := reconcileProduct(ctx, s, snap)
	if err != nil {
		return nil, fmt.Errorf("ingestion: reconcile product: %w", err)
	}

	result := &Result{Product: product}

	shells := snap.Variants
	if len(shells) == 0 {
		// A single-SKU page whose DOM never exposed an option group still
		// reconciles one implicit variant carrying the product-level
		// price/stock as its own.
		shells = []strategy.VariantShell{{}}
	}

	for i, shell := range shells {
		if i >= strategy.MaxVariants {
			break
		}
		variant, notifications, unattributedPrice, err := reconcileVariant(ctx, s, product, shell, snap)
		if errors.Is(err, ErrVariantCapReached) {
			// This shell would have created a new row past the cap; other
			// shells in this snapshot may still match existing variants and
			// are worth reconciling, so keep going rather than abort.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ingestion: reconcile variant %d: %w", i, err)
		}
		result.Variants = append(result.Variants, variant)
		result.Notifications = append(result.Notifications, notifications...)
		if unattributedPrice != nil {
			result.ProductLevelPriceUnattributed = unattributedPrice
		}
	}

	return result, nil
}

// reconcileProduct finds a product by URL or canonical URL, updating its
// mutable fields on a hit or inserting a new row on a miss.
func reconcileProduct(ctx context.Context, s *store.Store, snap *extractor.ProductSnapshot) (*store.Product, error) {
	canonicalURL := ""
	if snap.FinalURL != "" && snap.FinalURL != snap.URL {
		canonicalURL = snap.FinalURL
	}

	existing, err := s.FindProductByURL(ctx, snap.URL, canonicalURL)
	if err != nil {
		return nil, err
	}

	mainImage := ""
	if len(snap.Images) > 0 {
		mainImage = snap.Images[0]
	}
	metadata := snapshotMetadataJSON(snap)

	if existing == nil {
		p := &store.Product{
			URL:          snap.URL,
			CanonicalURL: canonicalURL,
			Name:         snap.Title,
			Description:  snap.Description,
			MainImageURL: mainImage,
			Metadata:     metadata,
		}
		if err := s.InsertProduct(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	existing.CanonicalURL = canonicalURL
	existing.Name = snap.Title
	existing.Description = snap.Description
	existing.MainImageURL = mainImage
	existing.Metadata = metadata
	if err := s.UpdateProduct(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func snapshotMetadataJSON(snap *extractor.ProductSnapshot) json.RawMessage {
	meta := map[string]any{
		"is_likely_dynamic":  snap.Metadata.IsLikelyDynamic,
		"dynamic_indicators": snap.Metadata.DynamicIndicators,
		"json_blobs_count":   snap.Metadata.JSONBlobsCount,
		"notes":              snap.Notes,
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return json.RawMessage("{}")
	}
	return encoded
}

// reconcileVariant finds the variant matching shell's natural key (its
// sorted attribute map), inserting or updating it, appending history on any
// price/stock diff, and translating those diffs into notifications. The
// returned *strategy.PriceCandidate is non-nil only when an existing
// variant had no price of its own in this snapshot while the page carried a
// product-level price — the Open Question resolution forbids applying that
// figure to the variant, so it is surfaced for the caller to record
// elsewhere instead.
func reconcileVariant(ctx context.Context, s *store.Store, product *store.Product, shell strategy.VariantShell, snap *extractor.ProductSnapshot) (*store.Variant, []*store.Notification, *strategy.PriceCandidate, error) {
	attributes := canonicalAttributes(shell.Attributes)

	existing, err := s.FindVariantByAttributes(ctx, product.ID, attributes)
	if err != nil {
		return nil, nil, nil, err
	}

	ownPrice, hasOwnPrice, ownCurrency := variantOwnPrice(shell)
	stockStatus := resolveVariantStock(shell, snap)

	if existing == nil {
		count, err := s.CountVariants(ctx, product.ID)
		if err != nil {
			return nil, nil, nil, err
		}
		if count >= strategy.MaxVariants {
			return nil, nil, nil, ErrVariantCapReached
		}

		price, hasPrice, currency := ownPrice, hasOwnPrice, ownCurrency
		if !hasPrice && snap.Pricing != nil {
			// No prior row to protect: a brand-new variant's initial price
			// reasonably defaults to the page's product-level figure.
			if amt, err := money.Parse(fmt.Sprintf("%.2f", snap.Pricing.Amount), snap.Pricing.Currency); err == nil {
				price, hasPrice, currency = amt, true, snap.Pricing.Currency
			}
		}

		v := &store.Variant{
			ProductID:          product.ID,
			Attributes:         attributes,
			Currency:           currency,
			CurrentPrice:       price,
			HasPrice:           hasPrice,
			CurrentStockStatus: stockStatus,
			IsAvailable:        isAvailableStatus(stockStatus),
			LastCheckedAt:      snap.FetchedAt,
		}
		if err := s.InsertVariant(ctx, v); err != nil {
			return nil, nil, nil, err
		}

		if hasPrice {
			if err := s.AppendPriceHistory(ctx, &store.PriceHistoryEntry{
				VariantID: v.ID, RecordedAt: snap.FetchedAt, Price: price, HasPrice: true, Currency: currency,
			}); err != nil {
				return nil, nil, nil, err
			}
		}
		if stockStatus != "" {
			if err := s.AppendStockHistory(ctx, &store.StockHistoryEntry{
				VariantID: v.ID, RecordedAt: snap.FetchedAt, Status: stockStatus,
			}); err != nil {
				return nil, nil, nil, err
			}
		}
		return v, nil, nil, nil
	}

	priceChanged := hasOwnPrice && (!existing.HasPrice || !existing.CurrentPrice.Equal(ownPrice))
	stockChanged := stockStatus != "" && stockStatus != existing.CurrentStockStatus

	oldPrice, oldHasPrice := existing.CurrentPrice, existing.HasPrice
	oldStatus := existing.CurrentStockStatus

	var unattributed *strategy.PriceCandidate
	if hasOwnPrice {
		existing.CurrentPrice = ownPrice
		existing.Currency = ownCurrency
		existing.HasPrice = true
	} else if snap.Pricing != nil {
		// Per the committed Open Question resolution: a product-level-only
		// price never overwrites a variant's stored price.
		unattributed = snap.Pricing
	}
	if stockStatus != "" {
		existing.CurrentStockStatus = stockStatus
		existing.IsAvailable = isAvailableStatus(stockStatus)
	}
	existing.LastCheckedAt = snap.FetchedAt
	if err := s.UpdateVariant(ctx, existing); err != nil {
		return nil, nil, nil, err
	}

	var notifications []*store.Notification
	if priceChanged {
		if err := s.AppendPriceHistory(ctx, &store.PriceHistoryEntry{
			VariantID: existing.ID, RecordedAt: snap.FetchedAt, Price: ownPrice, HasPrice: true, Currency: ownCurrency,
		}); err != nil {
			return nil, nil, nil, err
		}
		notes, err := notifyPriceChange(ctx, s, product, existing, oldPrice, oldHasPrice, ownPrice)
		if err != nil {
			return nil, nil, nil, err
		}
		notifications = append(notifications, notes...)
	}
	if stockChanged {
		if err := s.AppendStockHistory(ctx, &store.StockHistoryEntry{
			VariantID: existing.ID, RecordedAt: snap.FetchedAt, Status: stockStatus,
		}); err != nil {
			return nil, nil, nil, err
		}
		notes, err := notifyStockChange(ctx, s, product, existing, oldStatus, stockStatus)
		if err != nil {
			return nil, nil, nil, err
		}
		notifications = append(notifications, notes...)
	}

	return existing, notifications, unattributed, nil
}

// variantOwnPrice resolves only the price the variant shell itself carried,
// never falling back to the snapshot's product-level price.
func variantOwnPrice(shell strategy.VariantShell) (money.Amount, bool, string) {
	if shell.Price == nil {
		return money.Amount{}, false, ""
	}
	amt, err := money.Parse(fmt.Sprintf("%.2f", shell.Price.Amount), shell.Price.Currency)
	if err != nil {
		return money.Amount{}, false, ""
	}
	return amt, true, shell.Price.Currency
}

func resolveVariantStock(shell strategy.VariantShell, snap *extractor.ProductSnapshot) string {
	if shell.Stock != "" {
		return shell.Stock
	}
	return snap.Stock
}

func isAvailableStatus(status string) bool {
	return status == strategy.StockInStock || status == strategy.StockLowStock || status == strategy.StockPreorder
}

// canonicalAttributes sorts a shell's attribute map into deterministic JSON
// so the natural-key lookup is stable regardless of map iteration order.
func canonicalAttributes(attrs map[string]string) json.RawMessage {
	if len(attrs) == 0 {
		return json.RawMessage("{}")
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]string, len(attrs))
	for _, k := range keys {
		ordered[k] = attrs[k]
	}
	encoded, err := json.Marshal(ordered)
	if err != nil {
		return json.RawMessage("{}")
	}
	return encoded
}

func notifyStockChange(ctx context.Context, s *store.Store, product *store.Product, variant *store.Variant, oldStatus, newStatus string) ([]*store.Notification, error) {
	eventType := store.NotificationStock
	if oldStatus == strategy.StockOutOfStock && newStatus == strategy.StockInStock {
		eventType = store.NotificationRestock
	}

	recipients, err := s.RecipientsFor(ctx, product.ID, variant.ID)
	if err != nil {
		return nil, err
	}

	var notifications []*store.Notification
	for _, r := range recipients {
		n := &store.Notification{
			UserID:    r.UserID,
			ProductID: product.ID,
			VariantID: r.VariantID,
			Type:      eventType,
			Message:   fmt.Sprintf("%s: stock changed from %s to %s", product.Name, oldStatus, newStatus),
			OldStatus: oldStatus,
			NewStatus: newStatus,
		}
		if err := s.InsertNotification(ctx, n); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func notifyPriceChange(ctx context.Context, s *store.Store, product *store.Product, variant *store.Variant, oldPrice money.Amount, hadOldPrice bool, newPrice money.Amount) ([]*store.Notification, error) {
	if !hadOldPrice {
		return nil, nil
	}
	drop := oldPrice.PercentDrop(newPrice)
	if drop <= 0 {
		return nil, nil
	}

	recipients, err := s.RecipientsFor(ctx, product.ID, variant.ID)
	if err != nil {
		return nil, err
	}

	var notifications []*store.Notification
	for _, r := range recipients {
		threshold := r.ThresholdPercentage
		if threshold <= 0 {
			threshold = DefaultThresholdPercentage
		}
		if drop < threshold {
			continue
		}
		n := &store.Notification{
			UserID:      r.UserID,
			ProductID:   product.ID,
			VariantID:   r.VariantID,
			Type:        store.NotificationPrice,
			Message:     fmt.Sprintf("%s: price dropped from %s to %s", product.Name, oldPrice.Decimal(), newPrice.Decimal()),
			OldPrice:    oldPrice,
			HasOldPrice: true,
			NewPrice:    newPrice,
			HasNewPrice: true,
		}
		if err := s.InsertNotification(ctx, n); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}
