package contract

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the instrument kind of a listed contract.
type Kind string

const (
	Future       Kind = "future"
	Option       Kind = "option"
	FutureOption Kind = "future_option"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case Future, Option, FutureOption:
		return true
	}
	return false
}

// IsOption is true for options on equities/indices and options on futures.
func (k Kind) IsOption() bool {
	return k == Option || k == FutureOption
}

// Right is the option right. Futures carry RightNone.
// The numeric order is the sort order used by candidate sets.
type Right int

const (
	RightNone Right = iota
	Call
	Put
)

func (r Right) String() string {
	switch r {
	case Call:
		return "call"
	case Put:
		return "put"
	default:
		return "none"
	}
}

// ParseRight accepts call/put/none and the C/P shorthand.
func ParseRight(s string) (Right, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return RightNone, true
	case "call", "c":
		return Call, true
	case "put", "p":
		return Put, true
	}
	return RightNone, false
}

// Contract is an immutable listed future or option. SymbolID is unique within a catalog.
// For a future, UnderlyingID is the root (e.g. "ES"); for an option on a future it is
// the SymbolID of that future contract.
type Contract struct {
	SymbolID     string
	UnderlyingID string
	Exchange     string
	Expiry       time.Time // date only, midnight UTC
	Strike       decimal.Decimal
	HasStrike    bool
	Right        Right
	Kind         Kind
}

// Date truncates t to its calendar date at midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysToExpiry is the number of whole calendar days from asOf's date to the expiry date.
func (c Contract) DaysToExpiry(asOf time.Time) int {
	return int(Date(c.Expiry).Sub(Date(asOf)).Hours() / 24)
}

// Expired reports whether the contract expired before asOf's date.
func (c Contract) Expired(asOf time.Time) bool {
	return c.DaysToExpiry(asOf) < 0
}

func (c Contract) String() string {
	s := c.SymbolID + " " + c.Expiry.Format("2006-01-02")
	if c.HasStrike {
		s += " " + c.Strike.String() + " " + c.Right.String()
	}
	return s
}

// Compare orders contracts by expiry, strike (no strike first), right, then SymbolID.
// This is the default candidate ordering and is a total order over unique symbols.
func Compare(a, b Contract) int {
	if c := a.Expiry.Compare(b.Expiry); c != 0 {
		return c
	}
	if c := compareStrike(a, b); c != 0 {
		return c
	}
	if a.Right != b.Right {
		if a.Right < b.Right {
			return -1
		}
		return 1
	}
	return strings.Compare(a.SymbolID, b.SymbolID)
}

func compareStrike(a, b Contract) int {
	switch {
	case !a.HasStrike && !b.HasStrike:
		return 0
	case !a.HasStrike:
		return -1
	case !b.HasStrike:
		return 1
	}
	return a.Strike.Cmp(b.Strike)
}

// CompareStrikeFirst orders by strike (no strike first), then falls back to Compare.
func CompareStrikeFirst(a, b Contract) int {
	if c := compareStrike(a, b); c != 0 {
		return c
	}
	return Compare(a, b)
}

// CompareSymbol orders by SymbolID only.
func CompareSymbol(a, b Contract) int {
	return strings.Compare(a.SymbolID, b.SymbolID)
}
