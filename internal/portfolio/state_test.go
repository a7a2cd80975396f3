package portfolio

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApplyFill(t *testing.T) {
	at := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		fills   [][2]string // quantity, price
		wantQty string
		wantAvg string
	}{
		{"open long", [][2]string{{"2", "100"}}, "2", "100"},
		{"add to long averages", [][2]string{{"1", "100"}, {"1", "110"}}, "2", "105"},
		{"add to short averages", [][2]string{{"-1", "100"}, {"-3", "120"}}, "-4", "115"},
		{"partial reduce keeps entry", [][2]string{{"3", "100"}, {"-1", "130"}}, "2", "100"},
		{"close flat", [][2]string{{"2", "100"}, {"-2", "90"}}, "0", "0"},
		{"reverse restarts entry", [][2]string{{"1", "100"}, {"-3", "95"}}, "-2", "95"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHoldings("")
			var got Holding
			for _, f := range tt.fills {
				got = h.ApplyFill("ESZ6", d(f[0]), d(f[1]), at)
			}
			assert.True(t, got.Quantity.Equal(d(tt.wantQty)), "qty %s", got.Quantity)
			assert.True(t, got.AvgEntryPrice.Equal(d(tt.wantAvg)), "avg %s", got.AvgEntryPrice)
			assert.Equal(t, len(tt.fills), got.Fills)
			assert.True(t, h.Quantity("ESZ6").Equal(d(tt.wantQty)))
		})
	}
}

func TestHoldings_UnknownSymbolIsFlat(t *testing.T) {
	h := NewHoldings("")
	assert.True(t, h.Quantity("NQZ6").IsZero())
	_, ok := h.Get("NQZ6")
	assert.False(t, ok)
}

func TestHoldings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "holdings.json")
	at := time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

	h := NewHoldings(path)
	require.NoError(t, h.Load(), "missing file is an empty ledger")
	h.ApplyFill("ESZ6", d("2"), d("5000.25"), at)
	h.ApplyFill("NQZ6", d("-1"), d("18000"), at)
	h.ApplyFill("CLZ6", d("1"), d("70"), at)
	h.ApplyFill("CLZ6", d("-1"), d("71"), at)
	require.NoError(t, h.Save())
	assert.Equal(t, int64(1), h.Version())
	assert.NoFileExists(t, path+".tmp")

	loaded := NewHoldings(path)
	require.NoError(t, loaded.Load())
	assert.Equal(t, []string{"ESZ6", "NQZ6"}, loaded.Symbols())
	assert.True(t, loaded.Quantity("NQZ6").Equal(d("-1")))

	es, ok := loaded.Get("ESZ6")
	require.True(t, ok)
	assert.Equal(t, "5000.25", es.AvgEntryPrice.String())
	assert.True(t, es.LastFillAt.Equal(at))
	assert.Equal(t, int64(1), loaded.Version())
}
