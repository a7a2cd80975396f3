package contract

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/chaingate/internal/observ"
)

var ErrRefreshThrottled = errors.New("catalog refresh throttled")

// Source produces a full contract universe, e.g. a file or a database table.
type Source interface {
	Name() string
	Contracts(ctx context.Context) ([]Contract, error)
}

// FileSource reads the universe from a YAML/JSON catalog file on every call.
type FileSource struct {
	Path string
}

func (f FileSource) Name() string { return "file:" + f.Path }

func (f FileSource) Contracts(ctx context.Context) ([]Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadFile(f.Path)
}

// Reloader refreshes a Catalog wholesale from a Source, at most at the configured rate.
type Reloader struct {
	catalog *Catalog
	source  Source
	limiter *rate.Limiter
	now     func() time.Time
}

// NewReloader allows perMinute refreshes per minute with a burst of one.
// perMinute <= 0 disables throttling.
func NewReloader(catalog *Catalog, source Source, perMinute int) *Reloader {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	return &Reloader{
		catalog: catalog,
		source:  source,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// WithClock drives throttling and snapshot timestamps from now, e.g. a replay clock.
func (r *Reloader) WithClock(now func() time.Time) *Reloader {
	r.now = now
	return r
}

// Reload fetches the universe and swaps it in. A throttled call returns
// ErrRefreshThrottled and leaves the current snapshot untouched.
func (r *Reloader) Reload(ctx context.Context) (*Snapshot, error) {
	labels := map[string]string{"source": r.source.Name()}
	if !r.limiter.AllowN(r.now(), 1) {
		observ.IncCounter("catalog_refresh_total", withOutcome(labels, "throttled"))
		return nil, ErrRefreshThrottled
	}

	contracts, err := r.source.Contracts(ctx)
	if err != nil {
		observ.IncCounter("catalog_refresh_total", withOutcome(labels, "source_error"))
		return nil, errors.Wrapf(err, "load from %s", r.source.Name())
	}
	snap, err := r.catalog.Replace(contracts, r.now())
	if err != nil {
		observ.IncCounter("catalog_refresh_total", withOutcome(labels, "invalid"))
		return nil, err
	}

	observ.IncCounter("catalog_refresh_total", withOutcome(labels, "ok"))
	observ.SetGauge("catalog_contracts", float64(snap.Len()), labels)
	observ.Log("catalog_refreshed", map[string]any{
		"source":    r.source.Name(),
		"contracts": snap.Len(),
	})
	return snap, nil
}

func withOutcome(labels map[string]string, outcome string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out["outcome"] = outcome
	return out
}
