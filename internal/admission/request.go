package admission

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderType is the order type of a request as submitted by a strategy.
type OrderType string

const (
	Market        OrderType = "market"
	Limit         OrderType = "limit"
	MarketOnOpen  OrderType = "market_on_open"
	MarketOnClose OrderType = "market_on_close"
	StopMarket    OrderType = "stop_market"
	StopLimit     OrderType = "stop_limit"
)

var orderTypeAliases = map[string]OrderType{
	"market":        Market,
	"mkt":           Market,
	"limit":         Limit,
	"lmt":           Limit,
	"marketonopen":  MarketOnOpen,
	"moo":           MarketOnOpen,
	"marketonclose": MarketOnClose,
	"moc":           MarketOnClose,
	"stopmarket":    StopMarket,
	"stop":          StopMarket,
	"stoplimit":     StopLimit,
}

// ParseOrderType accepts snake_case, camelCase and the usual short forms
// (mkt, lmt, moo, moc, stop).
func ParseOrderType(s string) (OrderType, bool) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	t, ok := orderTypeAliases[key]
	return t, ok
}

// RequiresLimitPrice reports whether the type carries a limit price.
func (t OrderType) RequiresLimitPrice() bool { return t == Limit || t == StopLimit }

// RequiresStopPrice reports whether the type carries a stop trigger.
func (t OrderType) RequiresStopPrice() bool { return t == StopMarket || t == StopLimit }

// Request is an order a strategy wants to submit. Quantity is signed: positive buys,
// negative sells. A zero LimitPrice or StopPrice means the price is absent.
type Request struct {
	SymbolID   string          `json:"symbol" yaml:"symbol"`
	Quantity   decimal.Decimal `json:"quantity" yaml:"quantity"`
	Type       OrderType       `json:"type" yaml:"type"`
	LimitPrice decimal.Decimal `json:"limit_price,omitempty" yaml:"limit_price,omitempty"`
	StopPrice  decimal.Decimal `json:"stop_price,omitempty" yaml:"stop_price,omitempty"`
}
