package chain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/chaingate/internal/contract"
)

// apply runs one stage. Every branch allocates its result; in is never written to.
func (st Stage) apply(in []contract.Contract, asOf time.Time, index int) ([]contract.Contract, error) {
	switch st.Kind {
	case KindExpirationWindow:
		return keep(in, func(c contract.Contract) bool {
			d := c.DaysToExpiry(asOf)
			return d >= st.MinDays && d <= st.MaxDays
		}), nil

	case KindExpirationCycle:
		return keep(in, func(c contract.Contract) bool {
			return slices.Contains(st.Months, int(c.Expiry.Month()))
		}), nil

	case KindStrikeWindow:
		return keep(in, func(c contract.Contract) bool {
			return c.HasStrike &&
				c.Strike.GreaterThanOrEqual(st.MinStrike) &&
				c.Strike.LessThanOrEqual(st.MaxStrike)
		}), nil

	case KindStrikesAround:
		return strikesAround(in, st.Price, st.Below, st.Above), nil

	case KindRights:
		return keep(in, func(c contract.Contract) bool { return c.Right == st.Right }), nil

	case KindKinds:
		return keep(in, func(c contract.Contract) bool { return slices.Contains(st.Kinds, c.Kind) }), nil

	case KindUnderlyings:
		return keep(in, func(c contract.Contract) bool { return slices.Contains(st.Underlyings, c.UnderlyingID) }), nil

	case KindFrontMonth:
		return frontMonth(in, asOf), nil

	case KindDistinctByUnderlyingExpiry:
		return distinctByUnderlyingExpiry(in), nil

	case KindSingleUnderlying:
		if u := underlyings(in); len(u) > 1 {
			return nil, &AmbiguousUnderlyingError{Stage: index, Underlyings: u}
		}
		return slices.Clone(in), nil
	}
	// NewSpec rejects anything else.
	return slices.Clone(in), nil
}

func keep(in []contract.Contract, pred func(contract.Contract) bool) []contract.Contract {
	out := make([]contract.Contract, 0, len(in))
	for _, c := range in {
		if pred(c) {
			out = append(out, c)
		}
	}
	return out
}

// frontMonth keeps, per underlying, the non-expired contract with the nearest expiry.
// Equal expiries go to the lexically smallest SymbolID.
func frontMonth(in []contract.Contract, asOf time.Time) []contract.Contract {
	best := map[string]contract.Contract{}
	for _, c := range in {
		if c.Expired(asOf) {
			continue
		}
		cur, ok := best[c.UnderlyingID]
		if !ok || c.Expiry.Before(cur.Expiry) ||
			(c.Expiry.Equal(cur.Expiry) && c.SymbolID < cur.SymbolID) {
			best[c.UnderlyingID] = c
		}
	}
	return keep(in, func(c contract.Contract) bool {
		b, ok := best[c.UnderlyingID]
		return ok && b.SymbolID == c.SymbolID
	})
}

type underlyingExpiry struct {
	underlying string
	expiry     time.Time
}

func keyOf(c contract.Contract) underlyingExpiry {
	return underlyingExpiry{c.UnderlyingID, contract.Date(c.Expiry.UTC())}
}

// distinctByUnderlyingExpiry keeps the first contract by default ordering per
// (underlying, expiry date) pair.
func distinctByUnderlyingExpiry(in []contract.Contract) []contract.Contract {
	best := map[underlyingExpiry]contract.Contract{}
	for _, c := range in {
		k := keyOf(c)
		cur, ok := best[k]
		if !ok || contract.Compare(c, cur) < 0 {
			best[k] = c
		}
	}
	return keep(in, func(c contract.Contract) bool {
		return best[keyOf(c)].SymbolID == c.SymbolID
	})
}

// strikesAround finds the strike closest to price (the lower one on a tie) among the
// distinct strikes present and keeps below/above neighbours around it.
func strikesAround(in []contract.Contract, price decimal.Decimal, below, above int) []contract.Contract {
	var strikes []decimal.Decimal
	for _, c := range in {
		if !c.HasStrike {
			continue
		}
		if !slices.ContainsFunc(strikes, func(s decimal.Decimal) bool { return s.Equal(c.Strike) }) {
			strikes = append(strikes, c.Strike)
		}
	}
	if len(strikes) == 0 {
		return []contract.Contract{}
	}
	slices.SortFunc(strikes, func(a, b decimal.Decimal) int { return a.Cmp(b) })

	atm := 0
	bestDist := price.Sub(strikes[0]).Abs()
	for i := 1; i < len(strikes); i++ {
		if d := price.Sub(strikes[i]).Abs(); d.LessThan(bestDist) {
			atm, bestDist = i, d
		}
	}
	lo := max(atm-below, 0)
	hi := min(atm+above, len(strikes)-1)
	minStrike, maxStrike := strikes[lo], strikes[hi]

	return keep(in, func(c contract.Contract) bool {
		return c.HasStrike &&
			c.Strike.GreaterThanOrEqual(minStrike) &&
			c.Strike.LessThanOrEqual(maxStrike)
	})
}

// underlyings returns the distinct UnderlyingIDs in sorted order.
func underlyings(in []contract.Contract) []string {
	var out []string
	for _, c := range in {
		if !slices.Contains(out, c.UnderlyingID) {
			out = append(out, c.UnderlyingID)
		}
	}
	slices.Sort(out)
	return out
}
