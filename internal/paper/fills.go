package paper

import (
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/chaingate/internal/admission"
	"github.com/Rajchodisetti/chaingate/internal/journal"
)

var bpsDivisor = decimal.NewFromInt(10000)

// FillSimulator stands in for the execution venue during replays. Fills arrive after a
// random latency and at a price slipped against the order's side.
type FillSimulator struct {
	latencyMsMin   int
	latencyMsMax   int
	slippageBpsMin int
	slippageBpsMax int
	rng            *rand.Rand
}

// NewFillSimulator builds a simulator; the same seed replays the same fills.
func NewFillSimulator(latencyMsMin, latencyMsMax, slippageBpsMin, slippageBpsMax int, seed int64) *FillSimulator {
	if latencyMsMax < latencyMsMin {
		latencyMsMax = latencyMsMin
	}
	if slippageBpsMax < slippageBpsMin {
		slippageBpsMax = slippageBpsMin
	}
	return &FillSimulator{
		latencyMsMin:   latencyMsMin,
		latencyMsMax:   latencyMsMax,
		slippageBpsMin: slippageBpsMin,
		slippageBpsMax: slippageBpsMax,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// SimulateFill fills an accepted decision in full against mark. Rejected decisions
// produce no fill. Limit orders never fill through their limit price.
func (fs *FillSimulator) SimulateFill(req admission.Request, d admission.Decision, mark decimal.Decimal, at time.Time) (journal.Fill, bool) {
	if !d.Accepted {
		return journal.Fill{}, false
	}
	latencyMs := fs.latencyMsMin + fs.rng.Intn(fs.latencyMsMax-fs.latencyMsMin+1)
	slippageBps := fs.slippageBpsMin + fs.rng.Intn(fs.slippageBpsMax-fs.slippageBpsMin+1)

	slip := decimal.NewFromInt(1).Add(decimal.NewFromInt(int64(slippageBps)).Div(bpsDivisor))
	buy := req.Quantity.IsPositive()
	price := mark.Mul(slip)
	if !buy {
		price = mark.Div(slip)
	}

	if req.Type.RequiresLimitPrice() && req.LimitPrice.IsPositive() {
		if buy && price.GreaterThan(req.LimitPrice) {
			price = req.LimitPrice
		}
		if !buy && price.LessThan(req.LimitPrice) {
			price = req.LimitPrice
		}
	}

	return journal.Fill{
		DecisionID:  d.ID,
		Symbol:      d.SymbolID,
		Quantity:    req.Quantity,
		Price:       price.Round(4),
		Timestamp:   at.Add(time.Duration(latencyMs) * time.Millisecond),
		LatencyMs:   latencyMs,
		SlippageBps: slippageBps,
	}, true
}
