package htmldom

import "regexp"

// priceLikeRes are applied in order and every match of every pattern is
// kept, so one price can be reported more than once. Currency-symbol-prefixed
// and decimal-with-2dp forms come before bare whole numbers; no range filter
// is applied here, so SKUs, years, or quantities can match the last pattern.
var priceLikeRes = []*regexp.Regexp{
	regexp.MustCompile(`[$€£¥]\s?\d{1,3}(?:[,.\s]\d{3})*(?:[.,]\d{2})?`),
	regexp.MustCompile(`\d{1,3}(?:[,.\s]\d{3})*[.,]\d{2}\s?[$€£¥]?`),
	regexp.MustCompile(`(?i)\b(?:USD|EUR|GBP|CAD|AUD|JPY)\s?\d{1,3}(?:[,.\s]\d{3})*(?:[.,]\d{2})?`),
	regexp.MustCompile(`\b\d{2,6}\b`),
}

// ExtractPriceLikeStrings returns every substring of s that looks like a
// price, grouped by pattern (most-specific pattern first) and in order of
// appearance within each group.
func ExtractPriceLikeStrings(s string) []string {
	var out []string
	for _, re := range priceLikeRes {
		for _, m := range re.FindAllString(s, -1) {
			out = append(out, m)
		}
	}
	return out
}

var stockPhraseRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bin\s?stock\b`),
	regexp.MustCompile(`(?i)\bout\s?of\s?stock\b`),
	regexp.MustCompile(`(?i)\bsold\s?out\b`),
	regexp.MustCompile(`(?i)\bonly\s+\d+\s+left\b`),
	regexp.MustCompile(`(?i)\bback[\s-]?order(?:ed)?\b`),
	regexp.MustCompile(`(?i)\bpre[\s-]?order\b`),
	regexp.MustCompile(`(?i)\bavailability\s*:\s*\w[\w\s]*`),
	regexp.MustCompile(`(?i)\blow\s?stock\b`),
	regexp.MustCompile(`(?i)\blimited\s+(?:stock|quantity|availability)\b`),
}

// ExtractStockLikeStrings returns every substring of s that looks like a
// stock-availability phrase, grouped by pattern and in order of appearance
// within each group.
func ExtractStockLikeStrings(s string) []string {
	var out []string
	for _, re := range stockPhraseRes {
		out = append(out, re.FindAllString(s, -1)...)
	}
	return out
}
