package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a value object for exact monetary and quantity arithmetic.
// It is immutable - all operations return new Amount instances.
//
// Every value entering or leaving the engine is a decimal string such as
// "2.50"; binary floating point never touches the math. Storage and JSON
// round-trips keep full precision; presentation is exactly 2 fractional
// digits, rounded half away from zero.
type Amount struct {
	value decimal.Decimal
}

// Zero is the zero Amount
var Zero = Amount{value: decimal.Zero}

// NewAmount wraps a decimal.Decimal in an Amount
func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: d}
}

// NewAmountFromString parses a decimal string into an Amount
func NewAmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount string %q: %w", s, err)
	}
	return Amount{value: d}, nil
}

// MustAmount parses a decimal string, panicking on malformed input.
// For literals in tests and defaults only.
func MustAmount(s string) Amount {
	a, err := NewAmountFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// NewAmountFromInt creates an Amount from an integer
func NewAmountFromInt(n int64) Amount {
	return Amount{value: decimal.NewFromInt(n)}
}

// Decimal returns the underlying decimal value
func (a Amount) Decimal() decimal.Decimal {
	return a.value
}

// IsZero returns true if the value is zero
func (a Amount) IsZero() bool {
	return a.value.IsZero()
}

// IsPositive returns true if the value is positive
func (a Amount) IsPositive() bool {
	return a.value.IsPositive()
}

// IsNegative returns true if the value is negative
func (a Amount) IsNegative() bool {
	return a.value.IsNegative()
}

// Add returns a + b
func (a Amount) Add(b Amount) Amount {
	return Amount{value: a.value.Add(b.value)}
}

// Sub returns a - b
func (a Amount) Sub(b Amount) Amount {
	return Amount{value: a.value.Sub(b.value)}
}

// Mul returns a × b at full precision
func (a Amount) Mul(b Amount) Amount {
	return Amount{value: a.value.Mul(b.value)}
}

// SafeDiv returns a / b, or zero when b is zero. Division by zero is a
// modeled domain state here (margin on a zero retail price, allocation
// over zero direct spend), never NaN or infinity.
func (a Amount) SafeDiv(b Amount) Amount {
	if b.value.IsZero() {
		return Zero
	}
	return Amount{value: a.value.Div(b.value)}
}

// SafeRatio returns a / b × 100, or zero when b is zero
func (a Amount) SafeRatio(b Amount) Amount {
	if b.value.IsZero() {
		return Zero
	}
	return Amount{value: a.value.Div(b.value).Mul(decimal.NewFromInt(100))}
}

// Percent returns a × p/100 at full precision
func (a Amount) Percent(p Amount) Amount {
	return Amount{value: a.value.Mul(p.value).Div(decimal.NewFromInt(100))}
}

// Neg returns -a
func (a Amount) Neg() Amount {
	return Amount{value: a.value.Neg()}
}

// Round2 returns the value rounded to 2 fractional digits, half away
// from zero
func (a Amount) Round2() Amount {
	return Amount{value: a.value.Round(2)}
}

// Equal reports exact numeric equality
func (a Amount) Equal(b Amount) bool {
	return a.value.Equal(b.value)
}

// LessThan reports a < b
func (a Amount) LessThan(b Amount) bool {
	return a.value.LessThan(b.value)
}

// GreaterThanOrEqual reports a >= b
func (a Amount) GreaterThanOrEqual(b Amount) bool {
	return a.value.GreaterThanOrEqual(b.value)
}

// Cmp compares a and b, returning -1, 0 or 1
func (a Amount) Cmp(b Amount) int {
	return a.value.Cmp(b.value)
}

// StringFixed2 renders the value with exactly 2 fractional digits:
// "123.40", never "123.4". This is the only presentation form the
// engine exposes.
func (a Amount) StringFixed2() string {
	return a.value.StringFixed(2)
}

// String returns the full-precision string form
func (a Amount) String() string {
	return a.value.String()
}

// MarshalJSON renders the amount as a full-precision JSON string. Stored
// documents must round-trip exactly; 2-decimal rendering is a presentation
// concern handled by StringFixed2/Fixed2OrNil at the DTO layer.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.value.String())
}

// UnmarshalJSON parses a JSON decimal string
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	a.value = d
	return nil
}

// Value implements driver.Valuer for database storage
func (a Amount) Value() (driver.Value, error) {
	return a.value.String(), nil
}

// Scan implements sql.Scanner for database retrieval
func (a *Amount) Scan(value any) error {
	if value == nil {
		a.value = decimal.Zero
		return nil
	}

	var strVal string
	switch v := value.(type) {
	case string:
		strVal = v
	case []byte:
		strVal = string(v)
	case int64:
		a.value = decimal.NewFromInt(v)
		return nil
	case float64:
		a.value = decimal.NewFromFloat(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", value)
	}

	d, err := decimal.NewFromString(strVal)
	if err != nil {
		return fmt.Errorf("invalid decimal value: %w", err)
	}
	a.value = d
	return nil
}

// SumAmounts adds a slice of Amounts at full precision
func SumAmounts(values []Amount) Amount {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Fixed2OrNil renders a pointer value with 2 fractional digits, or nil
// when the value is absent. Consumers distinguish "zero cost" from
// "unknown cost" by the null, never by an empty string or 0.
func Fixed2OrNil(a *Amount) *string {
	if a == nil {
		return nil
	}
	s := a.StringFixed2()
	return &s
}
