package admission

import (
	"github.com/quickfixgo/enum"
	"github.com/shopspring/decimal"
)

// FIX tag 40 values without a stable constant name across FIX versions.
const (
	ordTypeStop      enum.OrdType = "3"
	ordTypeStopLimit enum.OrdType = "4"
)

// FIXOrdType maps an order type to FIX OrdType (40) and TimeInForce (59). Opening
// and closing auction orders are market orders with an auction time in force.
func FIXOrdType(t OrderType) (enum.OrdType, enum.TimeInForce, bool) {
	switch t {
	case Market:
		return enum.OrdType_MARKET, enum.TimeInForce_DAY, true
	case Limit:
		return enum.OrdType_LIMIT, enum.TimeInForce_DAY, true
	case MarketOnOpen:
		return enum.OrdType_MARKET, enum.TimeInForce_AT_THE_OPENING, true
	case MarketOnClose:
		return enum.OrdType_MARKET, enum.TimeInForce_AT_THE_CLOSE, true
	case StopMarket:
		return ordTypeStop, enum.TimeInForce_DAY, true
	case StopLimit:
		return ordTypeStopLimit, enum.TimeInForce_DAY, true
	}
	return "", "", false
}

// FIXSide maps a signed quantity to FIX Side (54).
func FIXSide(quantity decimal.Decimal) enum.Side {
	if quantity.IsNegative() {
		return enum.Side_SELL
	}
	return enum.Side_BUY
}
