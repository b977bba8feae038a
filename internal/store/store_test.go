package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/lattani/trackwright/dbopen"
	"github.com/lattani/trackwright/internal/money"
	. "github.com/lattani/trackwright/internal/store"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenTestDB(t, "store_test", dbopen.WithSchema(Schema))
	return New(db)
}

func TestProductFindOrCreate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Product{URL: "https://example.com/widget", Name: "Widget"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.FindProductByURL(ctx, "https://example.com/widget", "")
	if err != nil {
		t.Fatalf("find by url: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Fatalf("find by url: got %+v", got)
	}

	p.CanonicalURL = "https://example.com/widget-canonical"
	if err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err = s.FindProductByURL(ctx, "https://some-other-url.com/x", "https://example.com/widget-canonical")
	if err != nil {
		t.Fatalf("find by canonical: %v", err)
	}
	if got == nil || got.ID != p.ID {
		t.Fatalf("find by canonical url: got %+v", got)
	}
}

func TestVariantNaturalKeyUniqueness(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Product{URL: "https://example.com/shirt"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	attrs := json.RawMessage(`{"color":"Blue","size":"M"}`)
	v := &Variant{ProductID: p.ID, Attributes: attrs, Currency: "USD", CurrentStockStatus: "in_stock"}
	if err := s.InsertVariant(ctx, v); err != nil {
		t.Fatalf("insert variant: %v", err)
	}

	// Same attribute set, different key order: must resolve to the same row.
	reordered := json.RawMessage(`{"size":"M","color":"Blue"}`)
	found, err := s.FindVariantByAttributes(ctx, p.ID, reordered)
	if err != nil {
		t.Fatalf("find by attributes: %v", err)
	}
	if found == nil || found.ID != v.ID {
		t.Fatalf("expected to find variant %s regardless of key order, got %+v", v.ID, found)
	}

	// A genuinely distinct attribute set must insert as a separate variant.
	other := &Variant{ProductID: p.ID, Attributes: json.RawMessage(`{"color":"Red","size":"M"}`), Currency: "USD"}
	if err := s.InsertVariant(ctx, other); err != nil {
		t.Fatalf("insert distinct variant: %v", err)
	}

	n, err := s.CountVariants(ctx, p.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("CountVariants: got %d, want 2", n)
	}
}

func TestVariantUpdateAndPriceRoundtrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Product{URL: "https://example.com/shoe"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	v := &Variant{ProductID: p.ID, Attributes: json.RawMessage(`{}`), Currency: "USD"}
	if err := s.InsertVariant(ctx, v); err != nil {
		t.Fatalf("insert variant: %v", err)
	}
	if got, err := s.GetVariant(ctx, v.ID); err != nil || got.HasPrice {
		t.Fatalf("expected no price on a freshly inserted variant, got %+v err=%v", got, err)
	}

	amt, err := money.Parse("29.99", "USD")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v.CurrentPrice = amt
	v.HasPrice = true
	v.CurrentStockStatus = "in_stock"
	v.IsAvailable = true
	v.LastCheckedAt = time.Now().UTC()
	if err := s.UpdateVariant(ctx, v); err != nil {
		t.Fatalf("update variant: %v", err)
	}

	got, err := s.GetVariant(ctx, v.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.HasPrice || got.CurrentPrice.Decimal() != "29.99" {
		t.Fatalf("price roundtrip: got %+v", got.CurrentPrice)
	}
	if got.CurrentStockStatus != "in_stock" || !got.IsAvailable {
		t.Fatalf("stock fields: got %+v", got)
	}
}

func TestHistoryIsAppendOnly(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Product{URL: "https://example.com/mug"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	v := &Variant{ProductID: p.ID, Attributes: json.RawMessage(`{}`)}
	if err := s.InsertVariant(ctx, v); err != nil {
		t.Fatalf("insert variant: %v", err)
	}

	amt1, _ := money.Parse("10.00", "USD")
	amt2, _ := money.Parse("8.00", "USD")
	entries := []*PriceHistoryEntry{
		{VariantID: v.ID, Price: amt1, HasPrice: true, Currency: "USD", RecordedAt: time.Now().UTC().Add(-2 * time.Hour)},
		{VariantID: v.ID, Price: amt2, HasPrice: true, Currency: "USD", RecordedAt: time.Now().UTC().Add(-1 * time.Hour)},
	}
	for _, e := range entries {
		if err := s.AppendPriceHistory(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	hist, err := s.PriceHistory(ctx, v.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("got %d history rows, want 2", len(hist))
	}
	if hist[0].Price.Decimal() != "8.00" {
		t.Fatalf("expected newest-first ordering, got %+v", hist[0])
	}
}

func TestProductCascadeDeletesVariantsAndHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Product{URL: "https://example.com/lamp"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	v := &Variant{ProductID: p.ID, Attributes: json.RawMessage(`{}`)}
	if err := s.InsertVariant(ctx, v); err != nil {
		t.Fatalf("insert variant: %v", err)
	}
	amt, _ := money.Parse("5.00", "USD")
	if err := s.AppendPriceHistory(ctx, &PriceHistoryEntry{VariantID: v.ID, Price: amt, HasPrice: true, Currency: "USD"}); err != nil {
		t.Fatalf("append history: %v", err)
	}

	if _, err := s.DB.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, p.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	if got, err := s.GetVariant(ctx, v.ID); err != nil || got != nil {
		t.Fatalf("expected variant to be cascade-deleted, got %+v err=%v", got, err)
	}
	hist, err := s.PriceHistory(ctx, v.ID, 10)
	if err != nil {
		t.Fatalf("history after cascade: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("expected history to be cascade-deleted, got %d rows", len(hist))
	}
}

func TestCheckRunThrottleAnchor(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Product{URL: "https://example.com/bag"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if got, err := s.LastFinishedCheckRun(ctx, p.ID); err != nil || got != nil {
		t.Fatalf("expected no finished check run yet, got %+v err=%v", got, err)
	}

	cr, err := s.StartCheckRun(ctx, p.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cr.Status = CheckRunSuccess
	if err := s.FinishCheckRun(ctx, cr); err != nil {
		t.Fatalf("finish: %v", err)
	}

	got, err := s.LastFinishedCheckRun(ctx, p.ID)
	if err != nil {
		t.Fatalf("last finished: %v", err)
	}
	if got == nil || got.Status != CheckRunSuccess {
		t.Fatalf("got %+v", got)
	}
}

func TestTrackedItemRecipients(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Product{URL: "https://example.com/hat"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	v := &Variant{ProductID: p.ID, Attributes: json.RawMessage(`{}`)}
	if err := s.InsertVariant(ctx, v); err != nil {
		t.Fatalf("insert variant: %v", err)
	}

	u := &User{Email: "shopper@example.com", ThresholdPercentage: 15}
	if err := s.InsertUser(ctx, u); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if err := s.InsertTrackedItem(ctx, &TrackedItem{UserID: u.ID, ProductID: p.ID}); err != nil {
		t.Fatalf("insert tracked item: %v", err)
	}

	recipients, err := s.RecipientsFor(ctx, p.ID, v.ID)
	if err != nil {
		t.Fatalf("recipients: %v", err)
	}
	if len(recipients) != 1 || recipients[0].Email != "shopper@example.com" {
		t.Fatalf("got %+v", recipients)
	}
	if recipients[0].ThresholdPercentage != 15 {
		t.Fatalf("threshold: got %v, want 15", recipients[0].ThresholdPercentage)
	}
}

func TestNotificationLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &Product{URL: "https://example.com/bike"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	u := &User{Email: "rider@example.com"}
	if err := s.InsertUser(ctx, u); err != nil {
		t.Fatalf("insert user: %v", err)
	}

	n := &Notification{UserID: u.ID, ProductID: p.ID, Type: NotificationRestock, OldStatus: "out_of_stock", NewStatus: "in_stock"}
	if err := s.InsertNotification(ctx, n); err != nil {
		t.Fatalf("insert notification: %v", err)
	}

	pending, err := s.PendingNotifications(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Sent {
		t.Fatalf("got %+v", pending)
	}

	if err := s.MarkNotificationSent(ctx, n.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	pending, err = s.PendingNotifications(ctx, 10)
	if err != nil {
		t.Fatalf("pending after send: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending notifications after send, got %d", len(pending))
	}
}
