package money

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrInvalidAmount  = errors.New("amount must be a finite number")
)

var hundred = decimal.NewFromInt(100)

// Money is an immutable amount of integer cents.
type Money struct {
	cents int64
}

func FromCents(cents int64) (Money, error) {
	if cents < 0 {
		return Money{}, fmt.Errorf("%w: %d cents", ErrNegativeAmount, cents)
	}
	return Money{cents: cents}, nil
}

// MustFromCents panics on a negative amount. Intended for constants and tests.
func MustFromCents(cents int64) Money {
	m, err := FromCents(cents)
	if err != nil {
		panic(err)
	}
	return m
}

// FromDollars converts a dollar amount to cents, rounding half-up.
func FromDollars(dollars float64) (Money, error) {
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return Money{}, ErrInvalidAmount
	}
	if dollars < 0 {
		return Money{}, fmt.Errorf("%w: %v dollars", ErrNegativeAmount, dollars)
	}
	cents := decimal.NewFromFloat(dollars).Mul(hundred).Round(0)
	return FromCents(cents.IntPart())
}

func Zero() Money {
	return Money{}
}

func (m Money) Cents() int64 {
	return m.cents
}

func (m Money) IsZero() bool {
	return m.cents == 0
}

func (m Money) Add(other Money) Money {
	return Money{cents: m.cents + other.cents}
}

func (m Money) Subtract(other Money) (Money, error) {
	if other.cents > m.cents {
		return Money{}, fmt.Errorf("%w: %d - %d", ErrNegativeAmount, m.cents, other.cents)
	}
	return Money{cents: m.cents - other.cents}, nil
}

// MultiplyByMultiplier returns floor(cents * multiplier). The floor keeps
// every rounding error on the house side.
func (m Money) MultiplyByMultiplier(multiplier float64) Money {
	if multiplier <= 0 || math.IsNaN(multiplier) {
		return Money{}
	}
	return Money{cents: int64(math.Floor(float64(m.cents) * multiplier))}
}

func (m Money) Cmp(other Money) int {
	switch {
	case m.cents < other.cents:
		return -1
	case m.cents > other.cents:
		return 1
	default:
		return 0
	}
}

func (m Money) Equal(other Money) bool       { return m.cents == other.cents }
func (m Money) LessThan(other Money) bool    { return m.cents < other.cents }
func (m Money) GreaterThan(other Money) bool { return m.cents > other.cents }

// ToDisplay renders the amount in dollars with two decimals, e.g. "8.32".
func (m Money) ToDisplay() string {
	return decimal.New(m.cents, -2).StringFixed(2)
}

func (m Money) String() string {
	return m.ToDisplay()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, m.cents, 10), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	cents, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	parsed, err := FromCents(cents)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
