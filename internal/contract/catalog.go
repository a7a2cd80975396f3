package contract

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrDuplicateSymbol rejects a catalog listing one SymbolID twice.
var ErrDuplicateSymbol = errors.New("duplicate symbol in catalog")

// Snapshot is an immutable view of the listed contracts at a point in time.
// Nothing hands out its internal slices; callers always receive copies.
type Snapshot struct {
	loadedAt     time.Time
	contracts    []Contract // sorted by SymbolID
	bySymbol     map[string]int
	byUnderlying map[string][]int
}

// NewSnapshot validates uniqueness by SymbolID and indexes the contracts.
func NewSnapshot(contracts []Contract, loadedAt time.Time) (*Snapshot, error) {
	sorted := slices.Clone(contracts)
	slices.SortFunc(sorted, CompareSymbol)

	s := &Snapshot{
		loadedAt:     loadedAt,
		contracts:    sorted,
		bySymbol:     make(map[string]int, len(sorted)),
		byUnderlying: make(map[string][]int),
	}
	for i, c := range sorted {
		if c.SymbolID == "" {
			return nil, errors.Errorf("contract %d has an empty symbol", i)
		}
		if !c.Kind.Valid() {
			return nil, errors.Errorf("contract %s has unknown kind %q", c.SymbolID, c.Kind)
		}
		if _, dup := s.bySymbol[c.SymbolID]; dup {
			return nil, errors.Wrapf(ErrDuplicateSymbol, "symbol %s", c.SymbolID)
		}
		s.bySymbol[c.SymbolID] = i
		s.byUnderlying[c.UnderlyingID] = append(s.byUnderlying[c.UnderlyingID], i)
	}
	return s, nil
}

// LoadedAt is when the snapshot's source was read.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Len is the number of contracts in the snapshot.
func (s *Snapshot) Len() int { return len(s.contracts) }

// Contracts returns a copy of every contract, ordered by SymbolID.
func (s *Snapshot) Contracts() []Contract {
	return slices.Clone(s.contracts)
}

// Get looks a contract up by SymbolID.
func (s *Snapshot) Get(symbolID string) (Contract, bool) {
	i, ok := s.bySymbol[symbolID]
	if !ok {
		return Contract{}, false
	}
	return s.contracts[i], true
}

// ByUnderlying lists the contracts whose UnderlyingID is id, e.g. every option
// listed on one future contract, or every future of a root.
func (s *Snapshot) ByUnderlying(id string) []Contract {
	idx := s.byUnderlying[id]
	out := make([]Contract, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.contracts[i])
	}
	return out
}

// Catalog holds the current snapshot. Replace swaps in a fully built snapshot so
// concurrent readers see either the old or the new one, never a mix.
type Catalog struct {
	current atomic.Pointer[Snapshot]
}

// NewCatalog starts with an empty snapshot.
func NewCatalog() *Catalog {
	c := &Catalog{}
	empty, _ := NewSnapshot(nil, time.Time{})
	c.current.Store(empty)
	return c
}

// Snapshot returns the current snapshot. It is safe to keep and read after a Replace.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// Replace builds a new snapshot from contracts and publishes it.
// On error the previous snapshot stays current.
func (c *Catalog) Replace(contracts []Contract, loadedAt time.Time) (*Snapshot, error) {
	s, err := NewSnapshot(contracts, loadedAt)
	if err != nil {
		return nil, err
	}
	c.current.Store(s)
	return s, nil
}
