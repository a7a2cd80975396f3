package contract

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Record is the file/wire form of a contract. JSON documents parse too, since
// YAML is a superset.
type Record struct {
	Symbol     string `yaml:"symbol" json:"symbol"`
	Underlying string `yaml:"underlying" json:"underlying"`
	Exchange   string `yaml:"exchange" json:"exchange"`
	Expiry     string `yaml:"expiry" json:"expiry"` // YYYY-MM-DD
	Strike     string `yaml:"strike,omitempty" json:"strike,omitempty"`
	Right      string `yaml:"right,omitempty" json:"right,omitempty"`
	Kind       string `yaml:"kind" json:"kind"`
}

type catalogFile struct {
	Contracts []Record `yaml:"contracts"`
}

// FromRecord converts and validates one record.
func FromRecord(r Record) (Contract, error) {
	c := Contract{
		SymbolID:     strings.TrimSpace(r.Symbol),
		UnderlyingID: strings.TrimSpace(r.Underlying),
		Exchange:     strings.TrimSpace(r.Exchange),
		Kind:         Kind(strings.ToLower(strings.TrimSpace(r.Kind))),
	}
	if c.SymbolID == "" {
		return c, errors.New("symbol is required")
	}
	if !c.Kind.Valid() {
		return c, errors.Errorf("%s: unknown kind %q", c.SymbolID, r.Kind)
	}
	exp, err := time.Parse("2006-01-02", strings.TrimSpace(r.Expiry))
	if err != nil {
		return c, errors.Wrapf(err, "%s: expiry", c.SymbolID)
	}
	c.Expiry = Date(exp)

	right, ok := ParseRight(r.Right)
	if !ok {
		return c, errors.Errorf("%s: unknown right %q", c.SymbolID, r.Right)
	}
	c.Right = right

	if s := strings.TrimSpace(r.Strike); s != "" {
		strike, err := decimal.NewFromString(s)
		if err != nil {
			return c, errors.Wrapf(err, "%s: strike", c.SymbolID)
		}
		c.Strike = strike
		c.HasStrike = true
	}

	if c.Kind.IsOption() && (!c.HasStrike || c.Right == RightNone) {
		return c, errors.Errorf("%s: options need a strike and a right", c.SymbolID)
	}
	if c.Kind == Future && (c.HasStrike || c.Right != RightNone) {
		return c, errors.Errorf("%s: futures carry no strike or right", c.SymbolID)
	}
	return c, nil
}

// ToRecord is the inverse of FromRecord.
func ToRecord(c Contract) Record {
	r := Record{
		Symbol:     c.SymbolID,
		Underlying: c.UnderlyingID,
		Exchange:   c.Exchange,
		Expiry:     c.Expiry.Format("2006-01-02"),
		Kind:       string(c.Kind),
	}
	if c.HasStrike {
		r.Strike = c.Strike.String()
	}
	if c.Right != RightNone {
		r.Right = c.Right.String()
	}
	return r
}

// Decode reads a catalog document of the form `contracts: [...]`.
func Decode(r io.Reader) ([]Contract, error) {
	var f catalogFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "decode catalog")
	}
	out := make([]Contract, 0, len(f.Contracts))
	for i, rec := range f.Contracts {
		c, err := FromRecord(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "contract #%d", i)
		}
		out = append(out, c)
	}
	return out, nil
}

// LoadFile reads a catalog file from disk.
func LoadFile(path string) ([]Contract, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer f.Close()
	return Decode(f)
}
