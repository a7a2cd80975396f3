package admission

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/chaingate/internal/margin"
	"github.com/Rajchodisetti/chaingate/internal/observ"
	"github.com/Rajchodisetti/chaingate/internal/session"
)

// Controller admits or rejects order requests. It holds only immutable
// configuration, so one Controller may serve concurrent callers.
type Controller struct {
	gates    []Gate
	extended map[string]struct{}
}

type Option func(*Controller)

// WithExtendedHours marks symbols (or underlyings) whose market orders may trade in
// the extended session.
func WithExtendedHours(symbols ...string) Option {
	return func(c *Controller) {
		for _, s := range symbols {
			if s = strings.TrimSpace(s); s != "" {
				c.extended[s] = struct{}{}
			}
		}
	}
}

// WithGates replaces the default gate set.
func WithGates(gates ...Gate) Option {
	return func(c *Controller) { c.gates = gates }
}

func NewController(opts ...Option) *Controller {
	c := &Controller{gates: DefaultGates(), extended: map[string]struct{}{}}
	for _, o := range opts {
		o(c)
	}
	gates := make([]Gate, len(c.gates))
	copy(gates, c.gates)
	sort.SliceStable(gates, func(i, j int) bool { return gates[i].Priority() < gates[j].Priority() })
	c.gates = gates
	return c
}

// ExtendedEligible reports whether any of keys (symbol first, then underlying) is
// configured for extended-hours market orders.
func (c *Controller) ExtendedEligible(keys ...string) bool {
	for _, k := range keys {
		if _, ok := c.extended[k]; ok {
			return true
		}
	}
	return false
}

// Admit decides a request synchronously. Every gate is evaluated so BlockedBy lists all
// of them; the highest-priority blocking gate sets Reason. Rejections are ordinary
// decisions, not errors.
func (c *Controller) Admit(req Request, state session.State, profile margin.Profile, holding decimal.Decimal) Decision {
	return c.AdmitFor(req, "", state, profile, holding)
}

// AdmitFor is Admit with the request's underlying, used for the extended-hours
// eligibility lookup when only the underlying is configured.
func (c *Controller) AdmitFor(req Request, underlying string, state session.State, profile margin.Profile, holding decimal.Decimal) Decision {
	start := time.Now()
	in := Input{
		Request:  req,
		State:    state,
		Profile:  profile,
		Holding:  holding,
		Extended: c.ExtendedEligible(req.SymbolID, underlying),
	}

	d := Decision{
		ID:                uuid.NewString(),
		SymbolID:          req.SymbolID,
		Quantity:          req.Quantity,
		Type:              req.Type,
		Session:           state.String(),
		Accepted:          true,
		InitialMargin:     margin.RequiredInitialMarginAt(profile, req.Quantity, state),
		MaintenanceMargin: margin.RequiredMaintenanceMarginAt(profile, holding, state),
	}

	for _, g := range c.gates {
		ok, reason, detail := g.Evaluate(in)
		if ok {
			continue
		}
		if d.Accepted {
			d.Accepted = false
			d.Reason = reason
			d.Detail = detail
		}
		d.BlockedBy = append(d.BlockedBy, g.Name())
	}

	if d.Accepted {
		d.OrdType, d.TimeInForce, _ = FIXOrdType(req.Type)
		d.Side = FIXSide(req.Quantity)
	}

	observ.IncCounter("admission_decisions_total", map[string]string{"reason": d.Reason.String()})
	observ.RecordDuration("admission_duration", time.Since(start), nil)
	observ.Log("admission_decision", map[string]any{
		"id":         d.ID,
		"symbol":     d.SymbolID,
		"type":       string(d.Type),
		"session":    d.Session,
		"accepted":   d.Accepted,
		"reason":     d.Reason.String(),
		"blocked_by": d.BlockedBy,
		"detail":     d.Detail,
	})
	return d
}
