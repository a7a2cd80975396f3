package observ

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registry lazily creates one vector per metric name. The label names of the
// first observation fix the vector's shape; later calls with a different label
// set are counted as mismatches and dropped.
type registry struct {
	mu       sync.Mutex
	reg      *prometheus.Registry
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
	hist     map[string]*prometheus.HistogramVec
	shapes   map[string][]string
}

var reg = newRegistry()

func newRegistry() *registry {
	r := &registry{
		reg:      prometheus.NewRegistry(),
		counters: map[string]*prometheus.CounterVec{},
		gauges:   map[string]*prometheus.GaugeVec{},
		hist:     map[string]*prometheus.HistogramVec{},
		shapes:   map[string][]string{},
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

var mismatches = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "observ_label_mismatch_total",
	Help: "Metric observations dropped because their label set changed",
})

func init() {
	reg.reg.MustRegister(mismatches)
}

// labelNames returns the label keys in stable order.
func labelNames(lbl map[string]string) []string {
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sameShape(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// shape must be called with r.mu held.
func (r *registry) shape(name string, labels map[string]string) ([]string, bool) {
	keys := labelNames(labels)
	if known, ok := r.shapes[name]; ok {
		if !sameShape(known, keys) {
			mismatches.Inc()
			return nil, false
		}
		return known, true
	}
	r.shapes[name] = keys
	return keys, true
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1.0)
}

func IncCounterBy(name string, labels map[string]string, value float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	keys, ok := reg.shape(name, labels)
	if !ok {
		return
	}
	v, exists := reg.counters[name]
	if !exists {
		v = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, keys)
		if err := reg.reg.Register(v); err != nil {
			mismatches.Inc()
			return
		}
		reg.counters[name] = v
	}
	v.With(labels).Add(value)
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	keys, ok := reg.shape(name, labels)
	if !ok {
		return
	}
	v, exists := reg.gauges[name]
	if !exists {
		v = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, keys)
		if err := reg.reg.Register(v); err != nil {
			mismatches.Inc()
			return
		}
		reg.gauges[name] = v
	}
	v.With(labels).Set(value)
}

func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	keys, ok := reg.shape(name, labels)
	if !ok {
		return
	}
	v, exists := reg.hist[name]
	if !exists {
		v = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 16),
		}, keys)
		if err := reg.reg.Register(v); err != nil {
			mismatches.Inc()
			return
		}
		reg.hist[name] = v
	}
	v.With(labels).Observe(value)
}

// RecordDuration records a duration metric in milliseconds
func RecordDuration(name string, duration time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(duration.Microseconds())/1000.0, labels)
}

// Gatherer exposes the registry, mostly for tests.
func Gatherer() prometheus.Gatherer {
	return reg.reg
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(reg.reg, promhttp.HandlerOpts{})
}

// Health is a plain liveness probe.
func Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}
