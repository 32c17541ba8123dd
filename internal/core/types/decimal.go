// Package types provides common type aliases and utilities.
package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits kept for line and invoice totals.
const MoneyPlaces int32 = 2

// Round2 rounds half away from zero to MoneyPlaces digits.
func Round2(m decimal.Decimal) decimal.Decimal {
	return m.Round(MoneyPlaces)
}

// ClampZero returns m, or zero when m is negative.
func ClampZero(m decimal.Decimal) decimal.Decimal {
	if m.IsNegative() {
		return decimal.Zero
	}
	return m
}

// ParseDecimal accepts user-entered numbers. Both "1234.5" and "1234,5" are
// accepted, as are surrounding blanks and thin/non-breaking space group
// separators ("1 234,50").
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "'", "").Replace(s)
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse number %q: %w", s, err)
	}
	return d, nil
}

// NullDecimal is a decimal that may be absent (blank input field).
// JSON null and "" decode to an invalid (absent) value.
type NullDecimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

// NewNullDecimal wraps a present value.
func NewNullDecimal(d decimal.Decimal) NullDecimal {
	return NullDecimal{Decimal: d, Valid: true}
}

// OrZero returns the value or zero when absent.
func (n NullDecimal) OrZero() decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	return n.Decimal
}

// MarshalJSON encodes the value as a JSON number, or null when absent.
func (n NullDecimal) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(n.Decimal.String()), nil
}

// UnmarshalJSON accepts a JSON number, a numeric string (comma or dot
// decimal separator), "" or null.
func (n *NullDecimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = NullDecimal{}
		return nil
	}

	raw := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*n = NullDecimal{}
			return nil
		}
		raw = s
	}

	d, err := ParseDecimal(raw)
	if err != nil {
		return err
	}
	*n = NewNullDecimal(d)
	return nil
}

// Value implements driver.Valuer. Absent values are stored as NULL.
func (n NullDecimal) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Decimal.Value()
}

// Scan implements sql.Scanner.
func (n *NullDecimal) Scan(value any) error {
	var d decimal.NullDecimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*n = NullDecimal{Decimal: d.Decimal, Valid: d.Valid}
	return nil
}
