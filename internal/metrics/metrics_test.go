package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	return reg
}

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := freshRegistry(t)
	// idempotent: calling again should be no-op
	require.NoError(t, Register(reg))

	IncRecord("a")
	IncRecord("a")
	ObserveBatch("a", 2)
	IncSinkFailure("a")
	IncStart("a")
	IncLaunchFailure("a")
	IncExit("a", "0")
	IncRestart("a")
	IncKillTimeout("a")
	IncStderrLine("a")
	SetState("a", "running", []string{"starting", "running"})

	mfs, err := reg.Gather()
	require.NoError(t, err)
	wantNames := map[string]bool{
		"mlexec_source_records_total":          false,
		"mlexec_source_batches_total":          false,
		"mlexec_source_batch_records":          false,
		"mlexec_sink_failures_total":           false,
		"mlexec_process_starts_total":          false,
		"mlexec_process_launch_failures_total": false,
		"mlexec_process_exits_total":           false,
		"mlexec_process_restarts_total":        false,
		"mlexec_process_kill_timeouts_total":   false,
		"mlexec_process_stderr_lines_total":    false,
		"mlexec_source_current_state":          false,
	}
	for _, mf := range mfs {
		if _, ok := wantNames[mf.GetName()]; ok {
			wantNames[mf.GetName()] = true
			assert.NotEmpty(t, mf.GetMetric(), mf.GetName())
		}
	}
	for n, ok := range wantNames {
		assert.True(t, ok, "expected to find metric %s", n)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(recordsTotal.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(currentStates.WithLabelValues("a", "running")))
	assert.Equal(t, 0.0, testutil.ToFloat64(currentStates.WithLabelValues("a", "starting")))
}

func TestHandlerServesMetrics(t *testing.T) {
	regOK.Store(false)
	require.NoError(t, Register(prometheus.DefaultRegisterer))

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	IncStart("x")

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(b), "mlexec_process_starts_total"))
}

func TestConcurrentIncrements(t *testing.T) {
	reg := freshRegistry(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			IncRecord("c")
			ObserveBatch("c", 1)
			IncStderrLine("c")
		}()
	}
	wg.Wait()
	_, err := reg.Gather()
	require.NoError(t, err)
	assert.Equal(t, 50.0, testutil.ToFloat64(stderrLines.WithLabelValues("c")))
}

func TestMetricsBeforeRegister(t *testing.T) {
	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	before := testutil.ToFloat64(recordsTotal.WithLabelValues("noop"))
	IncRecord("noop")
	ObserveBatch("noop", 3)
	IncSinkFailure("noop")
	SetState("noop", "running", []string{"running"})
	assert.Equal(t, before, testutil.ToFloat64(recordsTotal.WithLabelValues("noop")))
}

func TestRegisterError(t *testing.T) {
	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	err := Register(&errorRegisterer{})
	require.Error(t, err)
	assert.Equal(t, "test registration error", err.Error())
	assert.False(t, regOK.Load())
}

type errorRegisterer struct{}

func (e *errorRegisterer) Register(prometheus.Collector) error {
	return errors.New("test registration error")
}

func (e *errorRegisterer) MustRegister(...prometheus.Collector) {}

func (e *errorRegisterer) Unregister(prometheus.Collector) bool { return false }
