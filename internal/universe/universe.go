package universe

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/Rajchodisetti/chaingate/internal/chain"
	"github.com/Rajchodisetti/chaingate/internal/contract"
	"github.com/Rajchodisetti/chaingate/internal/observ"
	"github.com/Rajchodisetti/chaingate/internal/session"
)

// Config describes one named universe.
type Config struct {
	Name string
	Spec chain.Spec
	// Options, when set, selects an option chain for every contract Spec selects.
	Options *chain.Spec
	// AsOfOffsetDays shifts the selection date relative to the tick time.
	AsOfOffsetDays int
	// OnlyAtMarketOpen limits refreshes to the first regular-session tick of each
	// session day.
	OnlyAtMarketOpen bool
}

// Selection is one published result of a universe.
type Selection struct {
	At         time.Time
	Candidates chain.CandidateSet
	Chains     map[string]chain.CandidateSet // keyed by the selected contract's SymbolID
	CatalogAt  time.Time
}

// Universe owns the steady-state selection loop. It only exists after Initialize has
// run the first selection, so the per-tick path never checks for setup.
type Universe struct {
	cfg      Config
	catalog  *contract.Catalog
	calendar session.Calendar

	current atomic.Pointer[Selection]

	mu          sync.Mutex
	lastSession time.Time
}

// Initialize runs the first selection against the current catalog snapshot.
func Initialize(cfg Config, catalog *contract.Catalog, cal session.Calendar, now time.Time) (*Universe, error) {
	if cfg.Name == "" {
		cfg.Name = cfg.Spec.Name()
	}
	u := &Universe{cfg: cfg, catalog: catalog, calendar: cal}
	if err := u.refresh(now); err != nil {
		return nil, errors.Wrapf(err, "initialize universe %s", cfg.Name)
	}
	if session.Classify(cal, now) == session.RegularOpen {
		u.lastSession = session.SessionDate(cal, now)
	}
	return u, nil
}

func (u *Universe) Name() string { return u.cfg.Name }

// OnTick re-runs the selection when due and reports whether it did. On error the
// previous selection stays current.
func (u *Universe) OnTick(now time.Time) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.cfg.OnlyAtMarketOpen {
		if session.Classify(u.calendar, now) != session.RegularOpen {
			return false, nil
		}
		day := session.SessionDate(u.calendar, now)
		if day.Equal(u.lastSession) {
			return false, nil
		}
		if err := u.refresh(now); err != nil {
			return false, err
		}
		u.lastSession = day
		return true, nil
	}

	if err := u.refresh(now); err != nil {
		return false, err
	}
	return true, nil
}

func (u *Universe) refresh(now time.Time) error {
	snap := u.catalog.Snapshot()
	asOf := now.AddDate(0, 0, u.cfg.AsOfOffsetDays)

	cs, err := chain.Select(snap.Contracts(), u.cfg.Spec, asOf)
	if err != nil {
		observ.IncCounter("universe_refresh_total", map[string]string{"universe": u.cfg.Name, "outcome": "error"})
		return err
	}
	sel := &Selection{At: now, Candidates: cs, CatalogAt: snap.LoadedAt()}
	if u.cfg.Options != nil {
		sel.Chains, err = OptionChains(snap, cs, *u.cfg.Options, asOf)
		if err != nil {
			observ.IncCounter("universe_refresh_total", map[string]string{"universe": u.cfg.Name, "outcome": "error"})
			return err
		}
	}
	u.current.Store(sel)

	observ.IncCounter("universe_refresh_total", map[string]string{"universe": u.cfg.Name, "outcome": "ok"})
	observ.Log("universe_selected", map[string]any{
		"universe":   u.cfg.Name,
		"as_of":      asOf.Format("2006-01-02"),
		"candidates": cs.Symbols(),
		"chains":     len(sel.Chains),
	})
	return nil
}

// Current returns the latest selection. It is never nil after Initialize.
func (u *Universe) Current() *Selection {
	return u.current.Load()
}

// Missing returns the expected symbols that are not in the current selection,
// looking at both the selected contracts and their option chains.
func (u *Universe) Missing(expected ...string) []string {
	sel := u.Current()
	have := make(map[string]struct{})
	for _, s := range sel.Candidates.Symbols() {
		have[s] = struct{}{}
	}
	for _, cs := range sel.Chains {
		for _, s := range cs.Symbols() {
			have[s] = struct{}{}
		}
	}
	var missing []string
	for _, s := range expected {
		if _, ok := have[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}

// Contains reports whether every expected symbol is currently selected.
func (u *Universe) Contains(expected ...string) bool {
	return len(u.Missing(expected...)) == 0
}

// OptionChains selects options for each contract in parents using the options listed on
// it in snap. Parents without listed options are skipped.
func OptionChains(snap *contract.Snapshot, parents chain.CandidateSet, spec chain.Spec, asOf time.Time) (map[string]chain.CandidateSet, error) {
	out := make(map[string]chain.CandidateSet)
	for _, p := range parents.Contracts() {
		listed := snap.ByUnderlying(p.SymbolID)
		if len(listed) == 0 {
			continue
		}
		cs, err := chain.Select(listed, spec, asOf)
		if err != nil {
			return nil, errors.Wrapf(err, "option chain for %s", p.SymbolID)
		}
		out[p.SymbolID] = cs
	}
	return out, nil
}
