package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the signed position in one contract.
type Holding struct {
	Quantity      decimal.Decimal `json:"quantity"`        // positive long, negative short
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"` // zero when flat
	LastFillAt    time.Time       `json:"last_fill_at"`
	Fills         int             `json:"fills"`
}

// State is the persisted ledger.
type State struct {
	Version   int64              `json:"version"` // monotonic, bumped on every save
	UpdatedAt time.Time          `json:"updated_at"`
	Holdings  map[string]Holding `json:"holdings"`
}

// Holdings tracks held quantity per symbol from fills. It feeds the maintenance margin
// figure of admission decisions.
type Holdings struct {
	filePath string
	mu       sync.RWMutex
	state    State
}

// NewHoldings creates an empty ledger persisted at filePath. An empty path keeps it in
// memory only.
func NewHoldings(filePath string) *Holdings {
	return &Holdings{filePath: filePath, state: State{Holdings: map[string]Holding{}}}
}

// Load reads the ledger from disk. A missing file leaves the ledger empty.
func (h *Holdings) Load() error {
	if h.filePath == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read holdings: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to unmarshal holdings: %w", err)
	}
	if st.Holdings == nil {
		st.Holdings = map[string]Holding{}
	}
	h.state = st
	return nil
}

// Save writes the ledger atomically via temp file and rename.
func (h *Holdings) Save() error {
	if h.filePath == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state.Version++
	h.state.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(h.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal holdings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(h.filePath), 0755); err != nil {
		return err
	}
	tmp := h.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp holdings: %w", err)
	}
	if err := os.Rename(tmp, h.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename holdings: %w", err)
	}
	return nil
}

// Quantity returns the held quantity, zero for unknown symbols.
func (h *Holdings) Quantity(symbol string) decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Holdings[symbol].Quantity
}

func (h *Holdings) Get(symbol string) (Holding, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	hd, ok := h.state.Holdings[symbol]
	return hd, ok
}

// Symbols lists symbols with a non-zero position, sorted.
func (h *Holdings) Symbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []string
	for s, hd := range h.state.Holdings {
		if !hd.Quantity.IsZero() {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func (h *Holdings) Version() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.Version
}

// ApplyFill adds a signed fill quantity at price. Adding to a position averages the
// entry price; reducing keeps it; crossing through flat restarts it at price.
func (h *Holdings) ApplyFill(symbol string, quantity, price decimal.Decimal, at time.Time) Holding {
	h.mu.Lock()
	defer h.mu.Unlock()

	hd := h.state.Holdings[symbol]
	prev := hd.Quantity
	next := prev.Add(quantity)

	switch {
	case prev.IsZero() || prev.Sign() == quantity.Sign():
		cost := hd.AvgEntryPrice.Mul(prev).Add(price.Mul(quantity))
		if !next.IsZero() {
			hd.AvgEntryPrice = cost.Div(next)
		}
	case next.IsZero():
		hd.AvgEntryPrice = decimal.Zero
	case next.Sign() != prev.Sign():
		hd.AvgEntryPrice = price
	}
	hd.Quantity = next
	hd.LastFillAt = at
	hd.Fills++
	h.state.Holdings[symbol] = hd
	return hd
}
