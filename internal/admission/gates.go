package admission

import (
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/chaingate/internal/margin"
	"github.com/Rajchodisetti/chaingate/internal/session"
)

// Input is everything a gate may look at for one request.
type Input struct {
	Request  Request
	State    session.State
	Profile  margin.Profile
	Holding  decimal.Decimal
	Extended bool // instrument may trade market orders in extended hours
}

// Gate is one admission check. Evaluate returns ok=false with the rejection reason and
// a short detail when the request must not pass.
type Gate interface {
	Name() string
	Priority() int // lower runs first and decides the reason
	Evaluate(in Input) (ok bool, reason Reason, detail string)
}

// RequestGate rejects requests that cannot be routed at all.
type RequestGate struct{}

func (RequestGate) Name() string  { return "request" }
func (RequestGate) Priority() int { return 1 }

func (RequestGate) Evaluate(in Input) (bool, Reason, string) {
	r := in.Request
	switch {
	case r.SymbolID == "":
		return false, ReasonInvalidRequest, "missing symbol"
	case r.Quantity.IsZero():
		return false, ReasonInvalidRequest, "zero quantity"
	case r.Type.RequiresLimitPrice() && !r.LimitPrice.IsPositive():
		return false, ReasonInvalidRequest, "limit price required"
	case r.Type.RequiresStopPrice() && !r.StopPrice.IsPositive():
		return false, ReasonInvalidRequest, "stop price required"
	}
	if _, _, ok := FIXOrdType(r.Type); !ok {
		return false, ReasonInvalidRequest, "unknown order type " + string(r.Type)
	}
	return true, ReasonNone, ""
}

// MarginGate blocks instruments whose margin profile is not fully configured,
// whatever the session.
type MarginGate struct{}

func (MarginGate) Name() string  { return "margin" }
func (MarginGate) Priority() int { return 2 }

func (MarginGate) Evaluate(in Input) (bool, Reason, string) {
	if res := margin.Validate(in.Profile); !res.OK {
		return false, ReasonMarginUnconfigured, res.String()
	}
	return true, ReasonNone, ""
}

// SessionGate enforces order type legality per session state.
type SessionGate struct{}

func (SessionGate) Name() string  { return "session" }
func (SessionGate) Priority() int { return 3 }

func (SessionGate) Evaluate(in Input) (bool, Reason, string) {
	if Legal(in.Request.Type, in.State, in.Extended) {
		return true, ReasonNone, ""
	}
	return false, ReasonInvalidSession, string(in.Request.Type) + " not allowed while " + in.State.String()
}

// Legal is the order type legality table:
//
//	type                      closed  extended        regular
//	market_on_open/close      no      no              yes
//	limit, stop_limit         yes     yes             yes
//	market, stop_market       no      if eligible     yes
func Legal(t OrderType, state session.State, extendedEligible bool) bool {
	switch t {
	case Limit, StopLimit:
		return true
	case MarketOnOpen, MarketOnClose:
		return state == session.RegularOpen
	case Market, StopMarket:
		switch state {
		case session.RegularOpen:
			return true
		case session.ExtendedOpen:
			return extendedEligible
		}
	}
	return false
}

// DefaultGates returns the standard gate set.
func DefaultGates() []Gate {
	return []Gate{RequestGate{}, MarginGate{}, SessionGate{}}
}
