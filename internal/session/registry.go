package session

import "time"

// Registry is an immutable set of calendars keyed by exchange code.
type Registry struct {
	calendars map[string]Calendar
}

// NewRegistry indexes cals by exchange. A later calendar for the same exchange wins.
func NewRegistry(cals ...Calendar) Registry {
	r := Registry{calendars: make(map[string]Calendar, len(cals))}
	for _, c := range cals {
		r.calendars[c.exchange] = c
	}
	return r
}

// Calendar returns the calendar of exchange, if one is registered.
func (r Registry) Calendar(exchange string) (Calendar, bool) {
	c, ok := r.calendars[exchange]
	return c, ok
}

// Classify classifies t for exchange. Unknown exchanges are always Closed.
func (r Registry) Classify(exchange string, t time.Time) State {
	c, ok := r.calendars[exchange]
	if !ok {
		return Closed
	}
	return Classify(c, t)
}
