package mlexec

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

type collect struct {
	mu      sync.Mutex
	batches []Batch
}

func (c *collect) Accept(_ context.Context, b Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, b)
	return nil
}

func (c *collect) records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Record
	for _, b := range c.batches {
		out = append(out, b.Records...)
	}
	return out
}

func TestFacadeRunWithAnnotations(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	static := filepath.Join(dir, "static.conf")
	tenants := filepath.Join(dir, "tenants.conf")
	require.NoError(t, os.WriteFile(static, []byte("host=web01.example.com\n"), 0o644))
	require.NoError(t, os.WriteFile(tenants, []byte("acme: web01\n"), 0o644))

	c := DefaultConfig()
	c.Source.Command = `sh -c 'printf "one\ntwo|#]\n\nthree|#]\n"'`
	c.Source.LineTerminator = "|#]"
	c.Annotate.StaticPath = static
	c.Annotate.TenantPath = tenants

	sk := &collect{}
	s, err := New(c, sk, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("source did not finish")
	}
	require.NoError(t, s.Close())

	recs := sk.records()
	require.Len(t, recs, 2)
	assert.Equal(t, "one\ntwo|#]", string(recs[0].Body))
	assert.Equal(t, "three|#]", string(recs[1].Body))
	assert.Equal(t, "acme", recs[0].Headers["customer"])
	assert.Equal(t, "web01.example.com", recs[1].Headers["host"])
	assert.Equal(t, uint64(2), s.Status().EventsRead)
}

func TestFacadeOpenWithSQLite(t *testing.T) {
	requireUnix(t)
	c := DefaultConfig()
	c.Source.Command = `sh -c 'echo "x;"'`
	c.Source.LineTerminator = ";"
	c.Sink.DSN = "sqlite://" + filepath.Join(t.TempDir(), "records.db")

	s, err := Open(c, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	<-s.Done()
	assert.Equal(t, uint64(1), s.Status().BatchesEmitted)
	assert.NoError(t, s.Close())
}

func TestFacadeValidation(t *testing.T) {
	_, err := New(DefaultConfig(), &collect{}, nil)
	assert.Error(t, err)

	_, err = New(DefaultConfig(), nil, nil)
	assert.Error(t, err)

	c := DefaultConfig()
	c.Source.Command = "echo"
	c.Source.LineTerminator = ";"
	c.Sink.DSN = "bogus://x"
	_, err = Open(c, nil)
	assert.Error(t, err)
}

func TestFacadeStopBeforeStart(t *testing.T) {
	c := DefaultConfig()
	c.Source.Command = "echo"
	c.Source.LineTerminator = ";"
	s, err := New(c, SinkFunc(func(context.Context, Batch) error { return nil }), nil)
	require.NoError(t, err)
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Start(), ErrStopped)
}

type closingSink struct {
	collect
	closed int
}

func (c *closingSink) Close() error {
	c.closed++
	return nil
}

func TestFacadeCloseLeavesCallerSinkOpen(t *testing.T) {
	c := DefaultConfig()
	c.Source.Command = "echo"
	c.Source.LineTerminator = ";"
	sk := &closingSink{}
	s, err := New(c, sk, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, 0, sk.closed)
}

func TestFacadeHTTPAndMetrics(t *testing.T) {
	require.NoError(t, RegisterMetrics(prometheus.NewRegistry()))
	require.NoError(t, RegisterMetricsDefault())

	c := DefaultConfig()
	c.Source.Command = "echo"
	c.Source.LineTerminator = ";"
	s, err := New(c, &collect{}, nil)
	require.NoError(t, err)

	srv := NewHTTPServer(":0", "/api", s)
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
