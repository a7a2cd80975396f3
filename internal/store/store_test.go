package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/chaingate/internal/contract"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenDSN("sqlite:"+filepath.Join(t.TempDir(), "catalog.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixture() []contract.Contract {
	exp := time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC)
	return []contract.Contract{
		{SymbolID: "ESZ6", UnderlyingID: "ES", Exchange: "CME", Expiry: exp, Kind: contract.Future},
		{SymbolID: "ESH7", UnderlyingID: "ES", Exchange: "CME", Expiry: time.Date(2027, 3, 19, 0, 0, 0, 0, time.UTC), Kind: contract.Future},
		{SymbolID: "ESZ6 C5000.5", UnderlyingID: "ESZ6", Exchange: "CME", Expiry: exp,
			Strike: decimal.RequireFromString("5000.5"), HasStrike: true, Right: contract.Call, Kind: contract.FutureOption},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, fixture()))

	got, err := s.Contracts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"ESH7", "ESZ6", "ESZ6 C5000.5"}, []string{got[0].SymbolID, got[1].SymbolID, got[2].SymbolID})

	opt := got[2]
	assert.True(t, opt.HasStrike)
	assert.Equal(t, "5000.5", opt.Strike.String())
	assert.Equal(t, contract.Call, opt.Right)
	assert.Equal(t, contract.FutureOption, opt.Kind)
	assert.True(t, opt.Expiry.Equal(time.Date(2026, 12, 18, 0, 0, 0, 0, time.UTC)))

	assert.False(t, got[1].HasStrike)
	assert.Equal(t, contract.RightNone, got[1].Right)
}

func TestStore_UpsertUpdatesInPlace(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, fixture()))

	moved := fixture()[0]
	moved.Exchange = "GLOBEX"
	require.NoError(t, s.Upsert(ctx, []contract.Contract{moved}))

	got, err := s.Underlying(ctx, "ES")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ESZ6", got[0].SymbolID)
	assert.Equal(t, "GLOBEX", got[0].Exchange)
}

func TestStore_Deactivate(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, fixture()))
	require.NoError(t, s.Deactivate(ctx, "ESZ6"))

	got, err := s.Contracts(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	for _, c := range got {
		assert.NotEqual(t, "ESZ6", c.SymbolID)
	}
}

func TestStore_FeedsCatalogReloader(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, fixture()))

	cat := contract.NewCatalog()
	r := contract.NewReloader(cat, s, 0)
	snap, err := r.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())
	assert.Len(t, cat.Snapshot().ByUnderlying("ESZ6"), 1)
	assert.Equal(t, "sql:sqlite", s.Name())
}
