package jsonval

import "testing"

func TestParseAndGet(t *testing.T) {
	raw := []byte(`{"product":{"title":"Test Tee","offers":[{"price":"29.99","priceCurrency":"USD"}]}}`)
	v, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	title, ok := v.Get("product", "title").AsString()
	if !ok || title != "Test Tee" {
		t.Errorf("title = %q, %v", title, ok)
	}
	price, ok := v.Get("product", "offers", "0", "price").AsString()
	if !ok || price != "29.99" {
		t.Errorf("price = %q, %v", price, ok)
	}
	if !v.Get("product", "missing").IsNull() {
		t.Error("expected Null for missing field")
	}
}

func TestWalkDepth(t *testing.T) {
	raw := []byte(`{"a":{"b":{"c":{"d":1}}}}`)
	v, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	var maxSeen int
	v.Walk(10, func(path []string, val Value) bool {
		if len(path) > maxSeen {
			maxSeen = len(path)
		}
		return true
	})
	if maxSeen != 4 {
		t.Errorf("expected depth 4, got %d", maxSeen)
	}
}

func TestWalkStopsAtMaxDepth(t *testing.T) {
	raw := []byte(`{"a":{"b":{"c":1}}}`)
	v, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	var paths [][]string
	v.Walk(1, func(path []string, val Value) bool {
		paths = append(paths, path)
		return true
	})
	for _, p := range paths {
		if len(p) > 1 {
			t.Errorf("walk exceeded maxDepth=1: %v", p)
		}
	}
}

func TestAsNumber(t *testing.T) {
	v, err := Parse([]byte(`{"qty":3}`))
	if err != nil {
		t.Fatal(err)
	}
	n, ok := v.Field("qty").AsNumber()
	if !ok || n != 3 {
		t.Errorf("qty = %v, %v", n, ok)
	}
}

func TestArrayIteration(t *testing.T) {
	v, err := Parse([]byte(`[1,2,3]`))
	if err != nil {
		t.Fatal(err)
	}
	arr, ok := v.AsArray()
	if !ok || len(arr) != 3 {
		t.Fatalf("expected array of 3, got %v %v", arr, ok)
	}
}
