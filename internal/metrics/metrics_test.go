package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CommandExecuted("toggle", nil)
	m.CommandExecuted("toggle", nil)
	m.CommandExecuted("set_brightness", errors.New("boom"))
	m.Published(nil)
	m.Evicted([]string{"on", "brightness", "on"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("toggle", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("set_brightness", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.publishes.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.evictions.WithLabelValues("on")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveResolve(3 * time.Millisecond)
	m.CommandExecuted("toggle", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{"homebase_commands_total", "homebase_resolve_seconds_count", "go_goroutines"} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
