package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rajchodisetti/chaingate/internal/admission"
	"github.com/Rajchodisetti/chaingate/internal/chain"
)

// Entry types.
const (
	TypeSelection = "selection"
	TypeDecision  = "decision"
	TypeFill      = "fill"
)

// Fill is an execution report for an accepted decision.
type Fill struct {
	DecisionID  string          `json:"decision_id"`
	Symbol      string          `json:"symbol"`
	Quantity    decimal.Decimal `json:"quantity"` // signed, like the request
	Price       decimal.Decimal `json:"price"`
	Timestamp   time.Time       `json:"timestamp"`
	LatencyMs   int             `json:"latency_ms"`
	SlippageBps int             `json:"slippage_bps"`
}

// DecisionRecord is a journaled decision with the key used for deduplication.
type DecisionRecord struct {
	admission.Decision
	IdempotencyKey string `json:"idempotency_key"`
}

// Entry is one JSONL line. Data stays raw until the reader decodes it.
type Entry struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Event time.Time       `json:"event"`
}

// Decode unmarshals the entry payload into v.
func (e Entry) Decode(v any) error { return json.Unmarshal(e.Data, v) }

// Journal is an append-only JSONL log of selections, decisions and fills. It is the
// feed for external assertion tooling.
type Journal struct {
	mu           sync.Mutex
	path         string
	dedupeWindow time.Duration
	now          func() time.Time
}

func New(path string, dedupeWindowSecs int) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return &Journal{
		path:         path,
		dedupeWindow: time.Duration(dedupeWindowSecs) * time.Second,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock makes the journal stamp entries from now, e.g. a replay clock.
func (j *Journal) WithClock(now func() time.Time) *Journal {
	j.now = now
	return j
}

func (j *Journal) Path() string { return j.path }

// Reset removes every entry, e.g. before a replay that must not see an earlier run.
func (j *Journal) Reset() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (j *Journal) WriteSelection(cs chain.CandidateSet) error {
	return j.append(TypeSelection, cs)
}

func (j *Journal) WriteDecision(d admission.Decision, idempotencyKey string) error {
	return j.append(TypeDecision, DecisionRecord{Decision: d, IdempotencyKey: idempotencyKey})
}

func (j *Journal) WriteFill(f Fill) error {
	return j.append(TypeFill, f)
}

func (j *Journal) append(typ string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	line, err := json.Marshal(Entry{Type: typ, Data: data, Event: j.now()})
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// ReadAll returns every well-formed entry in file order. A missing file is an empty
// journal; malformed lines are skipped.
func (j *Journal) ReadAll() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// HasRecentDecision reports whether a decision with idempotencyKey was journaled
// within the dedupe window.
func (j *Journal) HasRecentDecision(idempotencyKey string) (bool, error) {
	entries, err := j.ReadAll()
	if err != nil {
		return false, err
	}
	cutoff := j.now().Add(-j.dedupeWindow)
	for _, e := range entries {
		if e.Type != TypeDecision || e.Event.Before(cutoff) {
			continue
		}
		var rec DecisionRecord
		if err := e.Decode(&rec); err != nil {
			continue
		}
		if rec.IdempotencyKey == idempotencyKey {
			return true, nil
		}
	}
	return false, nil
}

// Decisions returns the journaled decisions in order.
func (j *Journal) Decisions() ([]DecisionRecord, error) {
	return decodeAll[DecisionRecord](j, TypeDecision)
}

// Fills returns the journaled fills in order.
func (j *Journal) Fills() ([]Fill, error) {
	return decodeAll[Fill](j, TypeFill)
}

func decodeAll[T any](j *Journal, typ string) ([]T, error) {
	entries, err := j.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []T
	for _, e := range entries {
		if e.Type != typ {
			continue
		}
		var v T
		if err := e.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %s entry: %w", typ, err)
		}
		out = append(out, v)
	}
	return out, nil
}
