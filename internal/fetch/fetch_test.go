package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func noopValidator(_ string) error { return nil }

var staticProductPage = `<!DOCTYPE html>
<html>
<head><title>Widget</title></head>
<body>
<main>
<h1>Blue Widget</h1>
<p>A fine blue widget, available in three sizes and two finishes. This is enough filler text to clear the structural-completeness and sufficiency thresholds the fetcher enforces before it considers a browser escalation unnecessary.</p>
</main>
</body>
</html>`

func TestFetch_HTTPPathSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(staticProductPage))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator, DisableRender: true})
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch returned an error (should never, for scrape-level failure): %v", err)
	}
	if !res.Success || res.Mode != ModeHTTP {
		t.Fatalf("expected a successful http-mode result, got %+v", res)
	}
	if string(res.RawHTML) != staticProductPage {
		t.Errorf("raw html mismatch")
	}
}

func TestFetch_InsufficientWithRenderDisabledFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="root"></div></body></html>`))
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator, DisableRender: true})
	res, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success || res.Mode != ModeFailed {
		t.Fatalf("expected a failed result, got %+v", res)
	}
}

func TestFetch_BlockedBySSRF(t *testing.T) {
	f := New(Config{})
	res, err := f.Fetch(context.Background(), "http://169.254.169.254/latest/meta-data/")
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected the metadata endpoint to be blocked")
	}
	if !strings.Contains(res.Error, "blocked") {
		t.Errorf("expected a blocked diagnostic, got %q", res.Error)
	}
}

func TestFetch_TooManyRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.String()+"x", http.StatusFound)
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator, DisableRender: true})
	res, err := f.Fetch(context.Background(), srv.URL+"/start")
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if res.Success {
		t.Fatal("expected the redirect loop to fail the http path")
	}
}

func TestFetch_ShopifyProductJSONWrapped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/widget", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><script src="https://cdn.shopify.com/s/foo.js"></script></body></html>`))
	})
	mux.HandleFunc("/products/widget.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"product":{"title":"Blue Widget","variants":[{"price":"29.99"}]}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator, DisableRender: true})
	res, err := f.Fetch(context.Background(), srv.URL+"/products/widget")
	if err != nil {
		t.Fatalf("unexpected go error: %v", err)
	}
	if !res.Success || res.Mode != ModeHTTP {
		t.Fatalf("expected a successful http-mode result from the shopify json endpoint, got %+v", res)
	}
	if !strings.Contains(string(res.RawHTML), `"title":"Blue Widget"`) {
		t.Errorf("expected the synthetic document to embed the product json, got %s", res.RawHTML)
	}
}

func TestHead_ReturnsValidators(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
	}))
	defer srv.Close()

	f := New(Config{URLValidator: noopValidator})
	etag, lastMod, err := f.Head(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if etag != `"abc123"` {
		t.Errorf("etag: got %q", etag)
	}
	if lastMod == "" {
		t.Error("expected a last-modified header")
	}
}
