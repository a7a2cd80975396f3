package chain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Rajchodisetti/chaingate/internal/contract"
)

func TestNewSpec_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
		opts   []Option
	}{
		{"inverted window", []Stage{ExpirationWindow(30, 10)}, nil},
		{"negative window", []Stage{ExpirationWindow(-1, 10)}, nil},
		{"empty cycle", []Stage{ExpirationCycle()}, nil},
		{"month 13", []Stage{ExpirationCycle(3, 13)}, nil},
		{"inverted strikes", []Stage{StrikeWindow(decimal.NewFromInt(10), decimal.NewFromInt(5))}, nil},
		{"no reference price", []Stage{StrikesAround(decimal.Zero, 1, 1)}, nil},
		{"rights none", []Stage{Rights(contract.RightNone)}, nil},
		{"unknown kind", []Stage{Kinds("swap")}, nil},
		{"no underlyings", []Stage{Underlyings()}, nil},
		{"top_k zero", []Stage{TopK(0)}, nil},
		{"top_k not last", []Stage{TopK(3), FrontMonth()}, nil},
		{"unknown stage", []Stage{{Kind: "liquidity"}}, nil},
		{"unknown sort", nil, []Option{WithSort("volume")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpec(tt.name, tt.stages, tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedSpec), err.Error())
		})
	}
}

func TestNewSpec_TopKIsSeparated(t *testing.T) {
	s, err := NewSpec("capped", []Stage{FrontMonth(), TopK(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, s.TopK())
	assert.Len(t, s.Stages(), 1)
	assert.Equal(t, SortByExpiry, s.SortBy())
}

func TestSpec_StagesAreCopies(t *testing.T) {
	months := []int{3, 6}
	s := MustSpec("cycle", []Stage{ExpirationCycle(months...)})
	months[0] = 12
	got := s.Stages()
	got[0].Months[1] = 9
	assert.Equal(t, []int{3, 6}, s.Stages()[0].Months)
}

func parseYAML(t *testing.T, doc string) SpecDef {
	t.Helper()
	var def SpecDef
	require.NoError(t, yaml.Unmarshal([]byte(doc), &def))
	return def
}

func TestParseSpec(t *testing.T) {
	def := parseYAML(t, `
stages:
  - type: underlyings
    underlyings: [ES]
  - type: expiration_window
    min_days: 0
    max_days: 365
  - type: expiration_cycle
    months: [3, 6]
  - type: strikes_around
    price: "5040"
    below: 1
    above: 2
  - type: rights
    right: call
  - type: top_k
    k: 5
sort_by: strike
`)
	s, err := ParseSpec("es_calls", def)
	require.NoError(t, err)
	assert.Equal(t, "es_calls", s.Name())
	assert.Equal(t, SortByStrike, s.SortBy())
	assert.Equal(t, 5, s.TopK())

	stages := s.Stages()
	require.Len(t, stages, 5)
	assert.Equal(t, []string{"ES"}, stages[0].Underlyings)
	assert.Equal(t, 365, stages[1].MaxDays)
	assert.Equal(t, []int{3, 6}, stages[2].Months)
	assert.Equal(t, "5040", stages[3].Price.String())
	assert.Equal(t, 2, stages[3].Above)
	assert.Equal(t, contract.Call, stages[4].Right)
}

func TestParseSpec_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown type", "stages: [{type: most_liquid}]"},
		{"unknown field", "stages: [{type: front_month, liquidity: 10}]"},
		{"field of another stage", "stages: [{type: expiration_window, min_days: 0, max_days: 30, k: 3}]"},
		{"missing max_days", "stages: [{type: expiration_window, min_days: 0}]"},
		{"missing k", "stages: [{type: top_k}]"},
		{"bad strike", `stages: [{type: strike_window, min_strike: "abc", max_strike: "10"}]`},
		{"bad right", "stages: [{type: rights, right: straddle}]"},
		{"bad sort", "stages: []\nsort_by: volume"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSpec(tt.name, parseYAML(t, tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedSpec), err.Error())
		})
	}
}
