package margin

import (
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/chaingate/internal/session"
)

// Field names reported by Validate, in the order they are checked.
const (
	FieldInitialIntraday      = "initial_intraday"
	FieldInitialOvernight     = "initial_overnight"
	FieldMaintenanceIntraday  = "maintenance_intraday"
	FieldMaintenanceOvernight = "maintenance_overnight"
)

// Profile holds the per-contract margin figures of a security.
// A zero figure means the instrument is not configured for margin trading,
// not that it trades for free.
type Profile struct {
	InitialIntraday      decimal.Decimal `json:"initial_intraday"`
	InitialOvernight     decimal.Decimal `json:"initial_overnight"`
	MaintenanceIntraday  decimal.Decimal `json:"maintenance_intraday"`
	MaintenanceOvernight decimal.Decimal `json:"maintenance_overnight"`
}

// Result is the outcome of Validate. Field names the first degenerate figure.
type Result struct {
	OK    bool
	Field string
}

func (r Result) String() string {
	if r.OK {
		return "ok"
	}
	return "degenerate(" + r.Field + ")"
}

// Degenerate builds a failed Result for field.
func Degenerate(field string) Result { return Result{Field: field} }

// Validate checks that all four figures are strictly positive. Negative values are
// configuration errors and are reported the same way as zeros.
func Validate(p Profile) Result {
	checks := []struct {
		field string
		v     decimal.Decimal
	}{
		{FieldInitialIntraday, p.InitialIntraday},
		{FieldInitialOvernight, p.InitialOvernight},
		{FieldMaintenanceIntraday, p.MaintenanceIntraday},
		{FieldMaintenanceOvernight, p.MaintenanceOvernight},
	}
	for _, c := range checks {
		if !c.v.IsPositive() {
			return Degenerate(c.field)
		}
	}
	return Result{OK: true}
}

// RequiredInitialMargin is the initial margin to open |quantity| contracts, using the
// overnight figure.
func RequiredInitialMargin(p Profile, quantity decimal.Decimal) decimal.Decimal {
	return quantity.Abs().Mul(p.InitialOvernight)
}

// RequiredInitialMarginAt uses the intraday figure while the exchange is in its
// regular session.
func RequiredInitialMarginAt(p Profile, quantity decimal.Decimal, state session.State) decimal.Decimal {
	if state == session.RegularOpen {
		return quantity.Abs().Mul(p.InitialIntraday)
	}
	return RequiredInitialMargin(p, quantity)
}

// RequiredMaintenanceMargin is zero without a position and grows with |held| once one
// exists, so a pre-trade check reports 0 and a post-fill check reports > 0.
func RequiredMaintenanceMargin(p Profile, held decimal.Decimal) decimal.Decimal {
	if held.IsZero() {
		return decimal.Zero
	}
	return held.Abs().Mul(p.MaintenanceOvernight)
}

// RequiredMaintenanceMarginAt uses the intraday figure while the exchange is in its
// regular session.
func RequiredMaintenanceMarginAt(p Profile, held decimal.Decimal, state session.State) decimal.Decimal {
	if held.IsZero() {
		return decimal.Zero
	}
	if state == session.RegularOpen {
		return held.Abs().Mul(p.MaintenanceIntraday)
	}
	return RequiredMaintenanceMargin(p, held)
}
