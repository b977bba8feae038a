package strategy

import (
	"strconv"
	"strings"
)

// currencySymbols maps a leading glyph to its ISO 4217 code.
var currencySymbols = map[string]string{
	"$":  "USD",
	"€":  "EUR",
	"£":  "GBP",
	"¥":  "JPY",
	"₹":  "INR",
	"A$": "AUD",
	"C$": "CAD",
}

var currencyCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "INR": true,
	"AUD": true, "CAD": true, "CHF": true, "CNY": true, "SEK": true,
	"NZD": true, "MXN": true, "BRL": true,
}

const (
	minPlausibleAmount = 0.01
	maxPlausibleAmount = 100000.0
)

// detectCurrency returns the ISO code implied by a currency glyph or code
// found in s, and whether one was found.
func detectCurrency(s string) (string, bool) {
	for glyph, code := range currencySymbols {
		if strings.Contains(s, glyph) {
			return code, true
		}
	}
	upper := strings.ToUpper(s)
	for code := range currencyCodes {
		if strings.Contains(upper, code) {
			return code, true
		}
	}
	return "", false
}

// parseAmount applies the number-parsing policy: strip currency glyphs and
// whitespace; if both ',' and '.' are present, ',' is a thousands
// separator; if only ',', it is a decimal separator; the result must fall
// within [min, max] or it is discarded.
func parseAmount(s string) (float64, bool) {
	cleaned := stripCurrencyGlyphs(s)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")
	switch {
	case hasComma && hasDot:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma && !hasDot:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if amount < minPlausibleAmount || amount > maxPlausibleAmount {
		return 0, false
	}
	return amount, true
}

func stripCurrencyGlyphs(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '$' || r == '€' || r == '£' || r == '¥' || r == '₹':
			continue
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			sb.WriteRune(r)
		case r == ' ':
			continue
		}
	}
	return sb.String()
}

func isPlausiblePrice(amount float64) bool {
	return amount >= 0.1 && amount <= 10000
}
