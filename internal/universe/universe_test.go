package universe

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/chaingate/internal/chain"
	"github.com/Rajchodisetti/chaingate/internal/contract"
	"github.com/Rajchodisetti/chaingate/internal/session"
)

var est = time.FixedZone("EST", -5*3600)

func date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func future(sym, root string, exp time.Time) contract.Contract {
	return contract.Contract{SymbolID: sym, UnderlyingID: root, Exchange: "CME", Expiry: exp, Kind: contract.Future}
}

func option(sym, parent string, exp time.Time, strike int64, r contract.Right) contract.Contract {
	return contract.Contract{
		SymbolID:     sym,
		UnderlyingID: parent,
		Exchange:     "CME",
		Expiry:       exp,
		Strike:       decimal.NewFromInt(strike),
		HasStrike:    true,
		Right:        r,
		Kind:         contract.FutureOption,
	}
}

func testCatalog(t *testing.T) *contract.Catalog {
	t.Helper()
	cat := contract.NewCatalog()
	_, err := cat.Replace([]contract.Contract{
		future("ESZ6", "ES", date(2026, 12, 18)),
		future("ESH7", "ES", date(2027, 3, 19)),
		future("ESM7", "ES", date(2027, 6, 18)),
		option("ESZ6 C5000", "ESZ6", date(2026, 12, 18), 5000, contract.Call),
		option("ESZ6 P5000", "ESZ6", date(2026, 12, 18), 5000, contract.Put),
		option("ESZ6 C5100", "ESZ6", date(2026, 12, 18), 5100, contract.Call),
		option("ESZ6 C5200", "ESZ6", date(2026, 12, 18), 5200, contract.Call),
	}, date(2026, 10, 18))
	require.NoError(t, err)
	return cat
}

func testCalendar(t *testing.T) session.Calendar {
	t.Helper()
	cal, err := session.NewCalendar("CME", est, session.Window{
		Open:          9*time.Hour + 30*time.Minute,
		Close:         17 * time.Hour,
		ExtendedOpen:  18 * time.Hour,
		ExtendedClose: 9*time.Hour + 30*time.Minute,
	}, nil, nil)
	require.NoError(t, err)
	return cal
}

func frontMonthSpec() chain.Spec {
	return chain.MustSpec("es_front", []chain.Stage{chain.Kinds(contract.Future), chain.FrontMonth()})
}

func TestInitialize_SelectsImmediately(t *testing.T) {
	u, err := Initialize(Config{Spec: frontMonthSpec()}, testCatalog(t), testCalendar(t),
		time.Date(2026, 10, 19, 10, 0, 0, 0, est))
	require.NoError(t, err)

	assert.Equal(t, "es_front", u.Name())
	require.NotNil(t, u.Current())
	assert.Equal(t, []string{"ESZ6"}, u.Current().Candidates.Symbols())
}

func TestInitialize_AmbiguousUnderlying(t *testing.T) {
	cat := testCatalog(t)
	snap := cat.Snapshot()
	all := append(snap.Contracts(), future("NQZ6", "NQ", date(2026, 12, 18)))
	_, err := cat.Replace(all, time.Now())
	require.NoError(t, err)

	spec := chain.MustSpec("one_root", []chain.Stage{chain.Kinds(contract.Future), chain.SingleUnderlying()})
	_, err = Initialize(Config{Spec: spec}, cat, testCalendar(t), time.Date(2026, 10, 19, 10, 0, 0, 0, est))
	require.Error(t, err)
	assert.True(t, errors.Is(err, chain.ErrAmbiguousUnderlying))
}

func TestOnTick_OnlyAtMarketOpen(t *testing.T) {
	cfg := Config{Name: "front", Spec: frontMonthSpec(), OnlyAtMarketOpen: true}
	u, err := Initialize(cfg, testCatalog(t), testCalendar(t), time.Date(2026, 10, 18, 19, 0, 0, 0, est))
	require.NoError(t, err)

	ticks := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 10, 19, 8, 0, 0, 0, est), false},  // overnight session
		{time.Date(2026, 10, 19, 9, 30, 0, 0, est), true},  // first regular tick
		{time.Date(2026, 10, 19, 12, 0, 0, 0, est), false}, // same session
		{time.Date(2026, 10, 19, 19, 0, 0, 0, est), false}, // evening
		{time.Date(2026, 10, 20, 9, 31, 0, 0, est), true},  // next day
		{time.Date(2026, 10, 24, 10, 0, 0, 0, est), false}, // saturday
	}
	for _, tk := range ticks {
		got, err := u.OnTick(tk.at)
		require.NoError(t, err)
		assert.Equal(t, tk.want, got, tk.at.String())
	}
}

func TestInitialize_DuringRegularSessionCountsAsOpenRefresh(t *testing.T) {
	cfg := Config{Spec: frontMonthSpec(), OnlyAtMarketOpen: true}
	u, err := Initialize(cfg, testCatalog(t), testCalendar(t), time.Date(2026, 10, 19, 10, 0, 0, 0, est))
	require.NoError(t, err)

	refreshed, err := u.OnTick(time.Date(2026, 10, 19, 11, 0, 0, 0, est))
	require.NoError(t, err)
	assert.False(t, refreshed)
}

func TestOnTick_SeesCatalogReplace(t *testing.T) {
	cat := testCatalog(t)
	u, err := Initialize(Config{Spec: frontMonthSpec()}, cat, testCalendar(t), time.Date(2026, 10, 19, 10, 0, 0, 0, est))
	require.NoError(t, err)
	before := u.Current()

	_, err = cat.Replace([]contract.Contract{
		future("ESH7", "ES", date(2027, 3, 19)),
		future("ESM7", "ES", date(2027, 6, 18)),
	}, date(2026, 10, 20))
	require.NoError(t, err)

	refreshed, err := u.OnTick(time.Date(2026, 10, 20, 10, 0, 0, 0, est))
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, []string{"ESH7"}, u.Current().Candidates.Symbols())
	assert.Equal(t, date(2026, 10, 20), u.Current().CatalogAt)

	// a selection already handed out is not rewritten
	assert.Equal(t, []string{"ESZ6"}, before.Candidates.Symbols())
}

func TestOnTick_AsOfOffset(t *testing.T) {
	spec := chain.MustSpec("near", []chain.Stage{chain.ExpirationWindow(0, 90)})
	cfg := Config{Spec: spec, AsOfOffsetDays: 100}
	u, err := Initialize(cfg, testCatalog(t), testCalendar(t), time.Date(2026, 10, 19, 10, 0, 0, 0, est))
	require.NoError(t, err)

	// as of 2027-01-27: ESZ6 has expired, ESH7 is 51 days out, ESM7 142
	assert.Equal(t, []string{"ESH7"}, u.Current().Candidates.Symbols())
}

func TestOptionChains(t *testing.T) {
	opts := chain.MustSpec("calls", []chain.Stage{chain.Rights(contract.Call), chain.TopK(2)})
	cfg := Config{Name: "es_options", Spec: chain.MustSpec("futures", []chain.Stage{chain.Kinds(contract.Future)}), Options: &opts}
	u, err := Initialize(cfg, testCatalog(t), testCalendar(t), time.Date(2026, 10, 19, 10, 0, 0, 0, est))
	require.NoError(t, err)

	sel := u.Current()
	assert.Equal(t, []string{"ESZ6", "ESH7", "ESM7"}, sel.Candidates.Symbols())
	require.Len(t, sel.Chains, 1, "only ESZ6 lists options")
	assert.Equal(t, []string{"ESZ6 C5000", "ESZ6 C5100"}, sel.Chains["ESZ6"].Symbols())

	assert.True(t, u.Contains("ESZ6", "ESZ6 C5100"))
	assert.Equal(t, []string{"ESZ6 C5200", "ESZ6 P5000"}, u.Missing("ESZ6 C5200", "ESZ6 P5000", "ESH7"))
}
