package observ

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_WritesOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Log("admission_decision", map[string]any{"symbol": "ESZ6", "accepted": true})
	Warn("chain_select_failed", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "admission_decision", first["event"])
	assert.Equal(t, "ESZ6", first["symbol"])
	assert.Equal(t, true, first["accepted"])
	assert.Equal(t, "info", first["level"])
	_, err := time.Parse(time.RFC3339Nano, first["ts"].(string))
	assert.NoError(t, err)

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "warn", second["level"])
}

func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := len(m.GetLabel()) == len(labels)
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					match = false
				}
			}
			if match {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestIncCounter(t *testing.T) {
	labels := map[string]string{"reason": "invalid_session"}
	IncCounter("observ_test_decisions_total", labels)
	IncCounterBy("observ_test_decisions_total", labels, 2)
	assert.Equal(t, 3.0, counterValue(t, "observ_test_decisions_total", labels))
}

func TestLabelMismatchIsDropped(t *testing.T) {
	IncCounter("observ_test_shape_total", map[string]string{"a": "1"})
	before := counterValue(t, "observ_label_mismatch_total", nil)

	IncCounter("observ_test_shape_total", map[string]string{"b": "1"})

	assert.Equal(t, before+1, counterValue(t, "observ_label_mismatch_total", nil))
	assert.Equal(t, 1.0, counterValue(t, "observ_test_shape_total", map[string]string{"a": "1"}))
}

func TestSetGauge(t *testing.T) {
	SetGauge("observ_test_candidates", 4, map[string]string{"spec": "front"})
	SetGauge("observ_test_candidates", 2, map[string]string{"spec": "front"})
	assert.Equal(t, 2.0, counterValue(t, "observ_test_candidates", map[string]string{"spec": "front"}))
}

func TestHandler(t *testing.T) {
	RecordDuration("observ_test_select", 1500*time.Microsecond, nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "observ_test_select_ms_bucket")

	rec = httptest.NewRecorder()
	Health().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "ok", rec.Body.String())
}
