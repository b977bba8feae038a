package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/lattani/trackwright/dbopen"
	"github.com/lattani/trackwright/internal/config"
	"github.com/lattani/trackwright/internal/fetch"
	"github.com/lattani/trackwright/internal/store"
	"github.com/lattani/trackwright/observability"
)

func noopValidator(_ string) error { return nil }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	db := dbopen.OpenTestDB(t, "scheduler_test", dbopen.WithSchema(store.Schema), dbopen.WithSchema(observability.Schema))
	return store.New(db)
}

func testConfig() config.SchedulerConfig {
	cfg := config.SchedulerConfig{
		MinCheckIntervalMinutes: 30,
		MaxProductsPerRun:       50,
		CheckLockTimeoutSeconds: 5,
		CheckConcurrency:        5,
	}
	return cfg
}

const productPage = `<!DOCTYPE html>
<html><head>
<title>Widget Pro</title>
<script type="application/ld+json">
{"@type":"Product","name":"Widget Pro","offers":{"price":"19.99","priceCurrency":"USD","availability":"https://schema.org/InStock"}}
</script>
</head><body><h1>Widget Pro</h1>
<p>The Widget Pro is a sturdy all-purpose widget with a brushed steel finish and a two-year warranty. It ships in a recyclable box within two business days and fits every standard widget mount sold over the last ten years. Replacement parts are stocked for every model.</p>
</body></html>`

func TestCheckProductWithLock_RunsFetchExtractIngestEndToEnd(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(productPage))
	}))
	defer srv.Close()

	p := &store.Product{URL: srv.URL}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	fetcher := fetch.New(fetch.Config{URLValidator: noopValidator, DisableRender: true})
	sch := New(s, s.Pool(), fetcher, nil, nil, testConfig(), nil)

	if err := sch.checkProductWithLock(ctx, p.ID); err != nil {
		t.Fatalf("checkProductWithLock: %v", err)
	}

	cr, err := s.LastFinishedCheckRun(ctx, p.ID)
	if err != nil {
		t.Fatalf("last finished check run: %v", err)
	}
	if cr == nil || cr.Status != store.CheckRunSuccess {
		t.Fatalf("expected a successful check run, got %+v", cr)
	}
}

func TestCheckProductWithLock_SkipsWhenThrottled(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &store.Product{URL: "https://example.com/widget"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	cr, err := s.StartCheckRun(ctx, p.ID)
	if err != nil {
		t.Fatalf("start check run: %v", err)
	}
	cr.Status = store.CheckRunSuccess
	if err := s.FinishCheckRun(ctx, cr); err != nil {
		t.Fatalf("finish check run: %v", err)
	}

	fetcher := fetch.New(fetch.Config{URLValidator: noopValidator, DisableRender: true})
	cfg := testConfig()
	cfg.MinCheckIntervalMinutes = 60
	sch := New(s, s.Pool(), fetcher, nil, nil, cfg, nil)

	err = sch.checkProductWithLock(ctx, p.ID)
	if err != errThrottled {
		t.Fatalf("expected errThrottled, got %v", err)
	}
}

func TestCheckProductWithLock_RecordsFailedCheckRunOnFetchError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	p := &store.Product{URL: "http://127.0.0.1:1/unreachable"}
	if err := s.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	fetcher := fetch.New(fetch.Config{
		URLValidator:  noopValidator,
		DisableRender: true,
		HTTPTimeout:   200 * time.Millisecond,
		OverallTimeout: time.Second,
	})
	sch := New(s, s.Pool(), fetcher, nil, nil, testConfig(), nil)

	if err := sch.checkProductWithLock(ctx, p.ID); err == nil {
		t.Fatal("expected an error from an unreachable fetch target")
	}

	cr, err := s.LastFinishedCheckRun(ctx, p.ID)
	if err != nil {
		t.Fatalf("last finished check run: %v", err)
	}
	if cr == nil || cr.Status != store.CheckRunFailed || cr.ErrorMessage == "" {
		t.Fatalf("expected a failed check run with an error message, got %+v", cr)
	}
}
