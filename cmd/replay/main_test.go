package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajchodisetti/chaingate/internal/config"
	"github.com/Rajchodisetti/chaingate/internal/journal"
	"github.com/Rajchodisetti/chaingate/internal/portfolio"
)

func testConfig(t *testing.T) config.Root {
	t.Helper()
	cfg, err := config.Load("../../config/config.yaml")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Catalog.Path = "../../fixtures/catalog.yaml"
	cfg.Journal.Path = filepath.Join(dir, "journal.jsonl")
	cfg.Paper.HoldingsPath = filepath.Join(dir, "holdings.json")
	cfg.Metrics.Addr = ""
	return cfg
}

func replay(t *testing.T, cfg config.Root, resume bool) []result {
	t.Helper()
	orders, err := loadOrders("../../fixtures/orders.yaml")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, run(cfg, orders, resume, &buf))

	var out []result
	dec := json.NewDecoder(&buf)
	for {
		var r result
		err := dec.Decode(&r)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, r)
	}
	require.Len(t, out, len(orders))
	return out
}

// outcome drops the per-run decision ID so two runs can be compared.
func outcome(r result) string {
	if r.Duplicate {
		return r.At + " duplicate"
	}
	s := fmt.Sprintf("%s %s %t %s", r.At, r.Decision.SymbolID, r.Decision.Accepted, r.Decision.Reason)
	if r.Fill != nil {
		s += fmt.Sprintf(" fill=%s@%s pos=%s", r.Fill.Quantity, r.Fill.Price, r.Position)
	}
	return s
}

func outcomes(rs []result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = outcome(r)
	}
	return out
}

func holdingsAfter(t *testing.T, cfg config.Root) *portfolio.Holdings {
	t.Helper()
	h := portfolio.NewHoldings(cfg.Paper.HoldingsPath)
	require.NoError(t, h.Load())
	return h
}

func TestReplay_Fixtures(t *testing.T) {
	cfg := testConfig(t)
	rs := replay(t, cfg, false)

	assert.False(t, rs[0].Duplicate)
	assert.True(t, rs[1].Duplicate, "resubmitted order inside the dedupe window")

	reasons := map[string]int{}
	for _, r := range rs {
		if r.Decision != nil {
			reasons[r.Decision.Reason.String()]++
		}
	}
	assert.Equal(t, map[string]int{
		"accepted":            5,
		"margin_unconfigured": 1,
		"invalid_session":     2,
		"invalid_request":     1,
	}, reasons)

	h := holdingsAfter(t, cfg)
	assert.True(t, h.Quantity("ESZ6").IsZero(), "bought 2, sold 1 in the evening and 1 on the close")
	assert.True(t, h.Quantity("ESH7").Equal(decimal.NewFromInt(1)))
	assert.True(t, h.Quantity("ESZ6 C6650").Equal(decimal.NewFromInt(3)))
}

func TestReplay_IsRepeatable(t *testing.T) {
	cfg := testConfig(t)
	first := replay(t, cfg, false)
	second := replay(t, cfg, false)

	assert.Equal(t, outcomes(first), outcomes(second))

	jr, err := journal.New(cfg.Journal.Path, cfg.Journal.DedupeWindowSecs)
	require.NoError(t, err)
	decisions, err := jr.Decisions()
	require.NoError(t, err)
	assert.Len(t, decisions, 9, "only the latest run is journaled")

	h := holdingsAfter(t, cfg)
	assert.True(t, h.Quantity("ESH7").Equal(decimal.NewFromInt(1)), "holdings start empty each run")
}

func TestReplay_ResumeDedupesEarlierRun(t *testing.T) {
	cfg := testConfig(t)
	replay(t, cfg, false)
	again := replay(t, cfg, true)

	for _, r := range again {
		assert.True(t, r.Duplicate, r.At)
	}
	h := holdingsAfter(t, cfg)
	assert.True(t, h.Quantity("ESZ6 C6650").Equal(decimal.NewFromInt(3)), "resumed holdings are kept, not doubled")
}
