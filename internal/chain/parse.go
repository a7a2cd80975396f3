package chain

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/chaingate/internal/contract"
)

// StageDef is the config form of a Stage, tagged by Type. Keys not listed here are
// collected in Extra and make the spec malformed.
type StageDef struct {
	Type        string         `yaml:"type"`
	MinDays     *int           `yaml:"min_days,omitempty"`
	MaxDays     *int           `yaml:"max_days,omitempty"`
	Months      []int          `yaml:"months,omitempty"`
	MinStrike   string         `yaml:"min_strike,omitempty"`
	MaxStrike   string         `yaml:"max_strike,omitempty"`
	Price       string         `yaml:"price,omitempty"`
	Below       *int           `yaml:"below,omitempty"`
	Above       *int           `yaml:"above,omitempty"`
	Right       string         `yaml:"right,omitempty"`
	Kinds       []string       `yaml:"kinds,omitempty"`
	Underlyings []string       `yaml:"underlyings,omitempty"`
	K           *int           `yaml:"k,omitempty"`
	Extra       map[string]any `yaml:",inline"`
}

// SpecDef is the config form of a Spec.
type SpecDef struct {
	Stages []StageDef `yaml:"stages"`
	SortBy string     `yaml:"sort_by,omitempty"`
}

// the keys each stage type may carry besides "type"
var stageFields = map[StageKind][]string{
	KindExpirationWindow:           {"min_days", "max_days"},
	KindExpirationCycle:            {"months"},
	KindStrikeWindow:               {"min_strike", "max_strike"},
	KindStrikesAround:              {"price", "below", "above"},
	KindRights:                     {"right"},
	KindKinds:                      {"kinds"},
	KindUnderlyings:                {"underlyings"},
	KindFrontMonth:                 nil,
	KindDistinctByUnderlyingExpiry: nil,
	KindSingleUnderlying:           nil,
	KindTopK:                       {"k"},
}

// ParseSpec turns a config definition into a validated Spec. Unknown stage types,
// unknown keys, keys that do not belong to the stage type, and missing required
// values are all ErrMalformedSpec.
func ParseSpec(name string, def SpecDef) (Spec, error) {
	stages := make([]Stage, 0, len(def.Stages))
	for i, sd := range def.Stages {
		st, err := parseStage(sd)
		if err != nil {
			return Spec{}, errors.Wrapf(ErrMalformedSpec, "%s: stage %d: %v", name, i, err)
		}
		stages = append(stages, st)
	}
	var opts []Option
	if def.SortBy != "" {
		opts = append(opts, WithSort(SortKey(strings.ToLower(def.SortBy))))
	}
	return NewSpec(name, stages, opts...)
}

func parseStage(sd StageDef) (Stage, error) {
	kind := StageKind(strings.ToLower(strings.TrimSpace(sd.Type)))
	allowed, known := stageFields[kind]
	if !known {
		return Stage{}, errors.Errorf("unknown stage type %q", sd.Type)
	}
	if len(sd.Extra) > 0 {
		keys := make([]string, 0, len(sd.Extra))
		for k := range sd.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return Stage{}, errors.Errorf("unknown field(s) %v", keys)
	}
	for _, f := range sd.present() {
		if !contains(allowed, f) {
			return Stage{}, errors.Errorf("field %q does not apply to %s", f, kind)
		}
	}

	st := Stage{Kind: kind}
	switch kind {
	case KindExpirationWindow:
		if sd.MinDays == nil || sd.MaxDays == nil {
			return st, errors.New("min_days and max_days are required")
		}
		st.MinDays, st.MaxDays = *sd.MinDays, *sd.MaxDays
	case KindExpirationCycle:
		st.Months = sd.Months
	case KindStrikeWindow:
		var err error
		if st.MinStrike, err = parseDecimal("min_strike", sd.MinStrike); err != nil {
			return st, err
		}
		if st.MaxStrike, err = parseDecimal("max_strike", sd.MaxStrike); err != nil {
			return st, err
		}
	case KindStrikesAround:
		var err error
		if st.Price, err = parseDecimal("price", sd.Price); err != nil {
			return st, err
		}
		if sd.Below != nil {
			st.Below = *sd.Below
		}
		if sd.Above != nil {
			st.Above = *sd.Above
		}
	case KindRights:
		r, ok := contract.ParseRight(sd.Right)
		if !ok {
			return st, errors.Errorf("unknown right %q", sd.Right)
		}
		st.Right = r
	case KindKinds:
		for _, k := range sd.Kinds {
			st.Kinds = append(st.Kinds, contract.Kind(strings.ToLower(k)))
		}
	case KindUnderlyings:
		st.Underlyings = sd.Underlyings
	case KindTopK:
		if sd.K == nil {
			return st, errors.New("k is required")
		}
		st.K = *sd.K
	}
	return st, nil
}

// present lists the optional keys set on the definition.
func (sd StageDef) present() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(sd.MinDays != nil, "min_days")
	add(sd.MaxDays != nil, "max_days")
	add(len(sd.Months) > 0, "months")
	add(sd.MinStrike != "", "min_strike")
	add(sd.MaxStrike != "", "max_strike")
	add(sd.Price != "", "price")
	add(sd.Below != nil, "below")
	add(sd.Above != nil, "above")
	add(sd.Right != "", "right")
	add(len(sd.Kinds) > 0, "kinds")
	add(len(sd.Underlyings) > 0, "underlyings")
	add(sd.K != nil, "k")
	return out
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, errors.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "%s", field)
	}
	return d, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
