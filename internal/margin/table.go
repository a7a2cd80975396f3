package margin

import "sync/atomic"

// Table maps symbols or underlyings to margin profiles. Lookups never fail: an unknown
// security gets the zero Profile, which Validate reports as degenerate.
type Table struct {
	profiles atomic.Pointer[map[string]Profile]
}

// NewTable builds a table holding a copy of profiles.
func NewTable(profiles map[string]Profile) *Table {
	t := &Table{}
	t.Replace(profiles)
	return t
}

// Replace swaps the whole table, e.g. after a profile refresh.
func (t *Table) Replace(profiles map[string]Profile) {
	m := make(map[string]Profile, len(profiles))
	for k, v := range profiles {
		m[k] = v
	}
	t.profiles.Store(&m)
}

// Lookup returns the first profile found for keys, most specific first
// (e.g. the contract symbol, then its underlying).
func (t *Table) Lookup(keys ...string) (Profile, bool) {
	m := *t.profiles.Load()
	for _, k := range keys {
		if k == "" {
			continue
		}
		if p, ok := m[k]; ok {
			return p, true
		}
	}
	return Profile{}, false
}
