package admission

import (
	"github.com/quickfixgo/enum"
	"github.com/shopspring/decimal"
)

// Reason explains a rejection. Accepted decisions carry ReasonNone.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInvalidRequest     Reason = "invalid_request"
	ReasonMarginUnconfigured Reason = "margin_unconfigured"
	ReasonInvalidSession     Reason = "invalid_session"
)

func (r Reason) String() string {
	if r == ReasonNone {
		return "accepted"
	}
	return string(r)
}

// Decision is the terminal outcome of one admission request. It is created per
// request and handed to the execution boundary; the controller keeps no copy.
type Decision struct {
	ID        string          `json:"id"`
	SymbolID  string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	Type      OrderType       `json:"type"`
	Session   string          `json:"session"`
	Accepted  bool            `json:"accepted"`
	Reason    Reason          `json:"reason,omitempty"`
	BlockedBy []string        `json:"blocked_by,omitempty"`
	// Detail is the first blocking gate's explanation, e.g. the degenerate margin field.
	Detail string `json:"detail,omitempty"`

	InitialMargin     decimal.Decimal `json:"initial_margin"`
	MaintenanceMargin decimal.Decimal `json:"maintenance_margin"`

	// FIX routing fields, set on accepted decisions only.
	Side        enum.Side        `json:"side,omitempty"`
	OrdType     enum.OrdType     `json:"ord_type,omitempty"`
	TimeInForce enum.TimeInForce `json:"time_in_force,omitempty"`
}
