package chain

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/Rajchodisetti/chaingate/internal/contract"
	"github.com/Rajchodisetti/chaingate/internal/observ"
)

// CandidateSet is the deduplicated, ordered result of a selection run.
type CandidateSet struct {
	Spec      string
	AsOf      time.Time
	contracts []contract.Contract
}

func (cs CandidateSet) Len() int { return len(cs.contracts) }

// Contracts returns a copy of the ordered candidates.
func (cs CandidateSet) Contracts() []contract.Contract {
	return slices.Clone(cs.contracts)
}

// Symbols returns the candidate SymbolIDs in order.
func (cs CandidateSet) Symbols() []string {
	out := make([]string, len(cs.contracts))
	for i, c := range cs.contracts {
		out[i] = c.SymbolID
	}
	return out
}

// Underlyings returns the distinct underlyings of the candidates, sorted.
func (cs CandidateSet) Underlyings() []string {
	return underlyings(cs.contracts)
}

// Equal compares ordering and identity of two candidate sets.
func (cs CandidateSet) Equal(other CandidateSet) bool {
	return slices.EqualFunc(cs.contracts, other.contracts, func(a, b contract.Contract) bool {
		return a.SymbolID == b.SymbolID
	})
}

type candidateSetJSON struct {
	Spec       string            `json:"spec"`
	AsOf       string            `json:"as_of"`
	Candidates []contract.Record `json:"candidates"`
}

func (cs CandidateSet) MarshalJSON() ([]byte, error) {
	out := candidateSetJSON{
		Spec:       cs.Spec,
		AsOf:       cs.AsOf.Format(time.RFC3339),
		Candidates: make([]contract.Record, len(cs.contracts)),
	}
	for i, c := range cs.contracts {
		out.Candidates[i] = contract.ToRecord(c)
	}
	return json.Marshal(out)
}

// Select runs spec over contracts as of asOf. The input is deduplicated by SymbolID
// (first occurrence wins), each stage receives the previous stage's output, and the
// survivors are sorted and capped. The input slice is never modified.
//
// An empty result is not an error. The only runtime error is ErrAmbiguousUnderlying.
func Select(contracts []contract.Contract, spec Spec, asOf time.Time) (CandidateSet, error) {
	start := time.Now()
	labels := map[string]string{"spec": spec.name}

	cur := dedupe(contracts)
	for i, st := range spec.stages {
		next, err := st.apply(cur, asOf, i)
		if err != nil {
			observ.IncCounter("chain_select_total", map[string]string{"spec": spec.name, "outcome": "ambiguous_underlying"})
			observ.Warn("chain_select_failed", map[string]any{
				"spec":  spec.name,
				"stage": i,
				"error": err.Error(),
			})
			return CandidateSet{}, err
		}
		cur = next
	}

	slices.SortFunc(cur, spec.sortBy.compare())
	if spec.topK > 0 && len(cur) > spec.topK {
		cur = slices.Clone(cur[:spec.topK])
	}

	observ.IncCounter("chain_select_total", map[string]string{"spec": spec.name, "outcome": "ok"})
	observ.SetGauge("chain_candidates", float64(len(cur)), labels)
	observ.RecordDuration("chain_select_duration", time.Since(start), labels)

	return CandidateSet{Spec: spec.name, AsOf: asOf, contracts: cur}, nil
}

func dedupe(in []contract.Contract) []contract.Contract {
	seen := make(map[string]struct{}, len(in))
	out := make([]contract.Contract, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.SymbolID]; ok {
			continue
		}
		seen[c.SymbolID] = struct{}{}
		out = append(out, c)
	}
	return out
}
