package chain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/chaingate/internal/contract"
)

var (
	// ErrMalformedSpec is returned while building a Spec; Select never sees one.
	ErrMalformedSpec = errors.New("malformed filter spec")
	// ErrAmbiguousUnderlying is fatal to a Select call whose spec requires a single underlying.
	ErrAmbiguousUnderlying = errors.New("ambiguous underlying")
)

// AmbiguousUnderlyingError lists the distinct underlyings found where one was required.
type AmbiguousUnderlyingError struct {
	Stage       int
	Underlyings []string
}

func (e *AmbiguousUnderlyingError) Error() string {
	return fmt.Sprintf("stage %d: %d underlyings %v, want exactly one", e.Stage, len(e.Underlyings), e.Underlyings)
}

func (e *AmbiguousUnderlyingError) Unwrap() error { return ErrAmbiguousUnderlying }

// StageKind tags a Stage variant.
type StageKind string

const (
	KindExpirationWindow           StageKind = "expiration_window"
	KindExpirationCycle            StageKind = "expiration_cycle"
	KindStrikeWindow               StageKind = "strike_window"
	KindStrikesAround              StageKind = "strikes_around"
	KindRights                     StageKind = "rights"
	KindKinds                      StageKind = "kinds"
	KindUnderlyings                StageKind = "underlyings"
	KindFrontMonth                 StageKind = "front_month"
	KindDistinctByUnderlyingExpiry StageKind = "distinct_by_underlying_expiry"
	KindSingleUnderlying           StageKind = "single_underlying"
	KindTopK                       StageKind = "top_k"
)

// Stage is one step of a filter pipeline. Only the fields relevant to Kind are read.
// Build stages with the constructors below; NewSpec validates them.
type Stage struct {
	Kind StageKind

	MinDays, MaxDays int
	Months           []int

	MinStrike, MaxStrike decimal.Decimal

	Price        decimal.Decimal
	Below, Above int

	Right       contract.Right
	Kinds       []contract.Kind
	Underlyings []string

	K int
}

func ExpirationWindow(minDays, maxDays int) Stage {
	return Stage{Kind: KindExpirationWindow, MinDays: minDays, MaxDays: maxDays}
}

func ExpirationCycle(months ...int) Stage {
	return Stage{Kind: KindExpirationCycle, Months: append([]int(nil), months...)}
}

func StrikeWindow(min, max decimal.Decimal) Stage {
	return Stage{Kind: KindStrikeWindow, MinStrike: min, MaxStrike: max}
}

// StrikesAround keeps the at-the-money strike for price plus below/above distinct strikes.
func StrikesAround(price decimal.Decimal, below, above int) Stage {
	return Stage{Kind: KindStrikesAround, Price: price, Below: below, Above: above}
}

func Rights(r contract.Right) Stage {
	return Stage{Kind: KindRights, Right: r}
}

func Kinds(kinds ...contract.Kind) Stage {
	return Stage{Kind: KindKinds, Kinds: append([]contract.Kind(nil), kinds...)}
}

// Underlyings keeps contracts listed on one of ids, e.g. the futures of one root.
func Underlyings(ids ...string) Stage {
	return Stage{Kind: KindUnderlyings, Underlyings: append([]string(nil), ids...)}
}

func FrontMonth() Stage { return Stage{Kind: KindFrontMonth} }

func DistinctByUnderlyingExpiry() Stage { return Stage{Kind: KindDistinctByUnderlyingExpiry} }

func SingleUnderlying() Stage { return Stage{Kind: KindSingleUnderlying} }

func TopK(k int) Stage { return Stage{Kind: KindTopK, K: k} }

// SortKey selects the candidate ordering.
type SortKey string

const (
	SortByExpiry SortKey = "expiry" // expiry, strike, right, symbol
	SortByStrike SortKey = "strike" // strike, then the expiry order
	SortBySymbol SortKey = "symbol"
)

func (k SortKey) compare() func(a, b contract.Contract) int {
	switch k {
	case SortByStrike:
		return contract.CompareStrikeFirst
	case SortBySymbol:
		return contract.CompareSymbol
	default:
		return contract.Compare
	}
}

// Spec is a validated, immutable filter pipeline.
type Spec struct {
	name   string
	stages []Stage
	sortBy SortKey
	topK   int // 0 = uncapped
}

// Option adjusts a Spec under construction.
type Option func(*Spec)

// WithSort overrides the default expiry ordering.
func WithSort(k SortKey) Option {
	return func(s *Spec) { s.sortBy = k }
}

// NewSpec validates the stages. TopK may appear at most once and only last, since it
// caps the sorted result.
func NewSpec(name string, stages []Stage, opts ...Option) (Spec, error) {
	s := Spec{name: name, sortBy: SortByExpiry}
	for _, o := range opts {
		o(&s)
	}
	switch s.sortBy {
	case SortByExpiry, SortByStrike, SortBySymbol:
	default:
		return Spec{}, errors.Wrapf(ErrMalformedSpec, "%s: unknown sort key %q", name, s.sortBy)
	}

	for i, st := range stages {
		if err := validate(st); err != nil {
			return Spec{}, errors.Wrapf(ErrMalformedSpec, "%s: stage %d (%s): %v", name, i, st.Kind, err)
		}
		if st.Kind == KindTopK {
			if i != len(stages)-1 {
				return Spec{}, errors.Wrapf(ErrMalformedSpec, "%s: stage %d: top_k must be the last stage", name, i)
			}
			s.topK = st.K
			continue
		}
		s.stages = append(s.stages, cloneStage(st))
	}
	return s, nil
}

// MustSpec panics on a malformed spec; for tests and static tables.
func MustSpec(name string, stages []Stage, opts ...Option) Spec {
	s, err := NewSpec(name, stages, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Spec) Name() string    { return s.name }
func (s Spec) SortBy() SortKey { return s.sortBy }
func (s Spec) TopK() int       { return s.topK }

// Stages returns a copy of the filter stages, excluding the final cap.
func (s Spec) Stages() []Stage {
	out := make([]Stage, len(s.stages))
	for i, st := range s.stages {
		out[i] = cloneStage(st)
	}
	return out
}

func cloneStage(st Stage) Stage {
	st.Months = append([]int(nil), st.Months...)
	st.Kinds = append([]contract.Kind(nil), st.Kinds...)
	st.Underlyings = append([]string(nil), st.Underlyings...)
	return st
}

func validate(st Stage) error {
	switch st.Kind {
	case KindExpirationWindow:
		if st.MinDays < 0 || st.MaxDays < st.MinDays {
			return errors.Errorf("window [%d, %d] is empty or negative", st.MinDays, st.MaxDays)
		}
	case KindExpirationCycle:
		if len(st.Months) == 0 {
			return errors.New("no months")
		}
		for _, m := range st.Months {
			if m < 1 || m > 12 {
				return errors.Errorf("month %d out of range", m)
			}
		}
	case KindStrikeWindow:
		if st.MaxStrike.LessThan(st.MinStrike) {
			return errors.Errorf("strike window [%s, %s] is empty", st.MinStrike, st.MaxStrike)
		}
	case KindStrikesAround:
		if st.Below < 0 || st.Above < 0 {
			return errors.New("strike counts must be non-negative")
		}
		if !st.Price.IsPositive() {
			return errors.New("reference price must be positive")
		}
	case KindRights:
		if st.Right != contract.Call && st.Right != contract.Put {
			return errors.Errorf("right must be call or put, got %s", st.Right)
		}
	case KindKinds:
		if len(st.Kinds) == 0 {
			return errors.New("no kinds")
		}
		for _, k := range st.Kinds {
			if !k.Valid() {
				return errors.Errorf("unknown kind %q", k)
			}
		}
	case KindUnderlyings:
		if len(st.Underlyings) == 0 {
			return errors.New("no underlyings")
		}
	case KindFrontMonth, KindDistinctByUnderlyingExpiry, KindSingleUnderlying:
	case KindTopK:
		if st.K <= 0 {
			return errors.Errorf("k must be positive, got %d", st.K)
		}
	default:
		return errors.Errorf("unknown stage kind %q", st.Kind)
	}
	return nil
}
