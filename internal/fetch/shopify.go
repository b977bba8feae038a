package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var shopifyMarkers = []string{
	"cdn.shopify.com",
	"shopify-section",
	"window.shopify",
	"myshopify.com",
}

// looksShopify reports whether url or body carries a Shopify storefront
// signature worth trying the product-JSON endpoint for.
func looksShopify(url string, body []byte) bool {
	if strings.Contains(strings.ToLower(url), "myshopify.com") {
		return true
	}
	lower := bytes.ToLower(body)
	for _, m := range shopifyMarkers {
		if bytes.Contains(lower, []byte(m)) {
			return true
		}
	}
	return false
}

// fetchShopifyProductJSON tries a storefront's product-JSON endpoints
// (`?view=json`, `<url>.json`) and, on success, wraps the JSON payload in
// a synthetic <script type="application/json" id="product-json"> document
// so the rest of the pipeline can treat it exactly like an HTML fetch.
func (f *Fetcher) fetchShopifyProductJSON(ctx context.Context, pageURL string) ([]byte, error) {
	candidates := []string{
		pageURL + ".json",
		appendQuery(pageURL, "view=json"),
	}

	var lastErr error
	for _, candidate := range candidates {
		body, err := f.getJSON(ctx, candidate)
		if err != nil {
			lastErr = err
			continue
		}
		return wrapSyntheticDocument(body), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("fetch: no shopify product-json endpoint succeeded")
	}
	return nil, lastErr
}

func (f *Fetcher) getJSON(ctx context.Context, url string) ([]byte, error) {
	if err := f.cfg.URLValidator(url); err != nil {
		return nil, fmt.Errorf("blocked: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > MaxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d bytes", MaxBodyBytes)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) && !bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
		return nil, fmt.Errorf("response is not JSON")
	}
	return body, nil
}

func appendQuery(url, query string) string {
	if strings.Contains(url, "?") {
		return url + "&" + query
	}
	return url + "?" + query
}

func wrapSyntheticDocument(jsonBody []byte) []byte {
	var sb strings.Builder
	sb.WriteString(`<html><head><script type="application/json" id="product-json">`)
	sb.Write(jsonBody)
	sb.WriteString(`</script></head><body></body></html>`)
	return []byte(sb.String())
}
