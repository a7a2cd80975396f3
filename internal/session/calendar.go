package session

import (
	"fmt"
	"strings"
	"time"
)

// State classifies a timestamp against an exchange calendar.
type State int

const (
	Closed State = iota
	RegularOpen
	ExtendedOpen
)

func (s State) String() string {
	switch s {
	case RegularOpen:
		return "regular_open"
	case ExtendedOpen:
		return "extended_open"
	default:
		return "closed"
	}
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
// "24:00" is accepted as end of day.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	layouts := []string{"15:04", "15:04:05"}
	if s == "24:00" {
		return 24 * time.Hour, nil
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid clock %q, want HH:MM", s)
}

// Window is an exchange's daily schedule as offsets from local midnight.
// The regular session is [Open, Close). The extended session is
// [ExtendedOpen, ExtendedClose) and may wrap midnight; it never overlaps the
// regular session for classification purposes. ExtendedOpen == ExtendedClose
// means there is no extended session.
type Window struct {
	Open, Close                 time.Duration
	ExtendedOpen, ExtendedClose time.Duration
}

func (w Window) HasExtended() bool { return w.ExtendedOpen != w.ExtendedClose }

// Wraps reports whether the extended session crosses midnight.
func (w Window) Wraps() bool { return w.HasExtended() && w.ExtendedOpen > w.ExtendedClose }

// IsRegularOpen reports whether the time of day tod falls in the regular session.
func (w Window) IsRegularOpen(tod time.Duration) bool {
	return tod >= w.Open && tod < w.Close
}

// IsExtendedOpen reports whether tod falls in the extended session and outside the
// regular one.
func (w Window) IsExtendedOpen(tod time.Duration) bool {
	if !w.HasExtended() || w.IsRegularOpen(tod) {
		return false
	}
	if w.Wraps() {
		return tod >= w.ExtendedOpen || tod < w.ExtendedClose
	}
	return tod >= w.ExtendedOpen && tod < w.ExtendedClose
}

func (w Window) validate() error {
	day := 24 * time.Hour
	for _, d := range []time.Duration{w.Open, w.Close, w.ExtendedOpen, w.ExtendedClose} {
		if d < 0 || d > day {
			return fmt.Errorf("clock %s out of range", d)
		}
	}
	if w.Open >= w.Close {
		return fmt.Errorf("regular session must open before it closes (%s >= %s)", w.Open, w.Close)
	}
	return nil
}

// Calendar is an exchange's immutable trading calendar.
type Calendar struct {
	exchange    string
	loc         *time.Location
	window      Window
	tradingDays [7]bool
	holidays    map[string]struct{} // YYYY-MM-DD in exchange time
}

// NewCalendar validates the schedule. No trading days means Monday to Friday.
func NewCalendar(exchange string, loc *time.Location, w Window, days []time.Weekday, holidays []time.Time) (Calendar, error) {
	if loc == nil {
		loc = time.UTC
	}
	if err := w.validate(); err != nil {
		return Calendar{}, fmt.Errorf("calendar %s: %w", exchange, err)
	}
	c := Calendar{
		exchange: exchange,
		loc:      loc,
		window:   w,
		holidays: make(map[string]struct{}, len(holidays)),
	}
	if len(days) == 0 {
		days = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	}
	for _, d := range days {
		c.tradingDays[d] = true
	}
	for _, h := range holidays {
		c.holidays[h.Format("2006-01-02")] = struct{}{}
	}
	return c, nil
}

func (c Calendar) Exchange() string { return c.exchange }

// Location is the exchange time zone. The zero Calendar runs on UTC.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c Calendar) Window() Window { return c.window }

// IsTradingDay reports whether the local date of day is a weekday session and not a holiday.
func (c Calendar) IsTradingDay(day time.Time) bool {
	local := day.In(c.Location())
	if !c.tradingDays[local.Weekday()] {
		return false
	}
	_, holiday := c.holidays[local.Format("2006-01-02")]
	return !holiday
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

// Classify maps t to a session state. The evening part of a wrapped extended
// session belongs to the next calendar day, so a Sunday evening open trades as
// Monday and a Friday evening is closed.
func Classify(cal Calendar, t time.Time) State {
	local := t.In(cal.Location())
	tod := timeOfDay(local)

	switch {
	case cal.window.IsRegularOpen(tod):
		if cal.IsTradingDay(local) {
			return RegularOpen
		}
	case cal.window.IsExtendedOpen(tod):
		sessionDay := local
		if cal.window.Wraps() && tod >= cal.window.ExtendedOpen {
			sessionDay = local.AddDate(0, 0, 1)
		}
		if cal.IsTradingDay(sessionDay) {
			return ExtendedOpen
		}
	}
	return Closed
}

// SessionDate is the trading date t belongs to, in exchange time, using the same
// evening rule as Classify. Outside any session it is t's local date.
func SessionDate(cal Calendar, t time.Time) time.Time {
	local := t.In(cal.Location())
	tod := timeOfDay(local)
	if cal.window.IsExtendedOpen(tod) && cal.window.Wraps() && tod >= cal.window.ExtendedOpen {
		local = local.AddDate(0, 0, 1)
	}
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, cal.Location())
}

// NextRegularOpen returns the first regular session open strictly after t, searching
// up to a year ahead. The second result is false if none was found.
func NextRegularOpen(cal Calendar, t time.Time) (time.Time, bool) {
	local := t.In(cal.Location())
	y, m, d := local.Date()
	oh := int(cal.window.Open / time.Hour)
	om := int(cal.window.Open % time.Hour / time.Minute)
	sec := int(cal.window.Open % time.Minute / time.Second)
	for i := 0; i <= 366; i++ {
		// built from wall clock so DST days still open at the listed time
		open := time.Date(y, m, d+i, oh, om, sec, 0, cal.Location())
		if open.After(t) && cal.IsTradingDay(open) {
			return open, true
		}
	}
	return time.Time{}, false
}
