// Package money implements a fixed-point decimal amount used for every price
// that is compared or stored. Extraction strategies produce candidate amounts
// as float64 (strategy.PriceCandidate); ingestion converts each one to an
// Amount through a two-decimal string before any comparison or storage.
package money

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a fixed-point decimal with 2 fractional digits, stored as an
// int64 count of minor units (cents). The zero value is 0.00 in an empty
// currency, which is never a valid Amount to persist — callers must always
// go through New or Parse.
type Amount struct {
	minor    int64
	Currency string
}

// New builds an Amount directly from minor units (cents).
func New(minorUnits int64, currency string) Amount {
	return Amount{minor: minorUnits, Currency: strings.ToUpper(currency)}
}

// Parse converts a decimal string like "29.99" or "1,234.50" into an Amount.
// It never parses through float64: the integer and fractional parts are
// split and scaled independently. Fractional digits beyond the second are
// truncated, not rounded. Returns an error if s isn't numeric.
func Parse(s, currency string) (Amount, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return Amount{}, fmt.Errorf("money: empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	wv, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	var fv int64
	if hasFrac {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		fv, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return Amount{}, fmt.Errorf("money: parse %q: %w", s, err)
		}
	}
	minor := wv*100 + fv
	if neg {
		minor = -minor
	}
	return Amount{minor: minor, Currency: strings.ToUpper(currency)}, nil
}

// MinorUnits returns the underlying cent count.
func (a Amount) MinorUnits() int64 { return a.minor }

// Decimal renders the amount as a plain "123.45" string, suitable for a
// NUMERIC(12,2) column.
func (a Amount) Decimal() string {
	neg := a.minor < 0
	m := a.minor
	if neg {
		m = -m
	}
	whole := m / 100
	frac := m % 100
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, frac)
}

func (a Amount) String() string {
	return a.Decimal() + " " + a.Currency
}

// Equal compares two amounts by value and currency.
func (a Amount) Equal(b Amount) bool {
	return a.minor == b.minor && a.Currency == b.Currency
}

// PercentDrop returns the percentage drop from a to b (positive when b < a),
// as a float in [0,100]. Used only for threshold comparisons, never stored.
func (a Amount) PercentDrop(b Amount) float64 {
	if a.minor <= 0 {
		return 0
	}
	diff := a.minor - b.minor
	if diff <= 0 {
		return 0
	}
	return float64(diff) / float64(a.minor) * 100
}

// IsZero reports whether the amount has never been set (no currency).
func (a Amount) IsZero() bool { return a.Currency == "" && a.minor == 0 }

// Value implements driver.Valuer for direct use with database/sql.
func (a Amount) Value() (driver.Value, error) {
	return a.Decimal(), nil
}

// Scan implements sql.Scanner, reading a NUMERIC column back as text.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case []byte:
		parsed, err := Parse(string(v), a.Currency)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case string:
		parsed, err := Parse(v, a.Currency)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	default:
		return fmt.Errorf("money: cannot scan %T into Amount", src)
	}
}
