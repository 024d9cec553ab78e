package annotate

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/mlexec/internal/config"
	"github.com/loykin/mlexec/internal/sink"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func batch(headers ...map[string]string) sink.Batch {
	b := sink.Batch{ID: "b"}
	for _, h := range headers {
		b.Records = append(b.Records, sink.Record{Body: []byte("x"), Headers: h})
	}
	return b
}

func TestStatic_SetsHeaders(t *testing.T) {
	p := writeFile(t, "statics.conf", "env=prod\n# comment\n\ndc = ams1\n")
	mem := sink.NewMemory()
	s := Wrap(mem, &Static{Path: p, PreserveExisting: true})

	require.NoError(t, s.Accept(context.Background(), batch(nil, map[string]string{"env": "dev"})))
	got := mem.Batches()[0].Records
	assert.Equal(t, map[string]string{"env": "prod", "dc": "ams1"}, got[0].Headers)
	assert.Equal(t, map[string]string{"env": "dev", "dc": "ams1"}, got[1].Headers)
}

func TestStatic_OverwritesWhenNotPreserving(t *testing.T) {
	p := writeFile(t, "statics.conf", "env=prod\n")
	recs := batch(map[string]string{"env": "dev"}).Records
	(&Static{Path: p}).Annotate(recs)
	assert.Equal(t, "prod", recs[0].Headers["env"])
}

func TestStatic_RereadsFile(t *testing.T) {
	p := writeFile(t, "statics.conf", "v=1\n")
	st := &Static{Path: p}
	recs := batch(map[string]string{}).Records
	st.Annotate(recs)
	assert.Equal(t, "1", recs[0].Headers["v"])

	require.NoError(t, os.WriteFile(p, []byte("v=2\n"), 0o644))
	st.Annotate(recs)
	assert.Equal(t, "2", recs[0].Headers["v"])
}

func TestStatic_MissingFileAndMalformedLine(t *testing.T) {
	var logs bytes.Buffer
	l := slog.New(slog.NewTextHandler(&logs, nil))

	recs := batch(map[string]string{}).Records
	(&Static{Path: filepath.Join(t.TempDir(), "none"), Logger: l}).Annotate(recs)
	assert.Empty(t, recs[0].Headers)
	assert.Contains(t, logs.String(), "not found")

	p := writeFile(t, "statics.conf", "a=1\nbroken\nb=2\n")
	(&Static{Path: p, Logger: l}).Annotate(recs)
	assert.Equal(t, map[string]string{"a": "1"}, recs[0].Headers)
	assert.Contains(t, logs.String(), "line=2")
}

func TestLoadTenants(t *testing.T) {
	p := writeFile(t, "customers.txt", "info: localhost WEB01.example.com\nnietinfo:logmft02p\nno colon here\n")
	m, err := LoadTenants(p)
	require.NoError(t, err)
	assert.Equal(t, "info", m["localhost"])
	assert.Equal(t, "info", m["web01"])
	assert.Equal(t, "nietinfo", m["logmft02p"])
	assert.Len(t, m, 3)

	_, err = LoadTenants(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestTenant_Annotate(t *testing.T) {
	p := writeFile(t, "customers.txt", "acme: web01 db01\n")
	tn, err := NewTenant(p, "customer", "host")
	require.NoError(t, err)

	recs := batch(
		map[string]string{"host": "WEB01.acme.internal"},
		map[string]string{"host": "stranger"},
		map[string]string{},
	).Records
	tn.Annotate(recs)
	assert.Equal(t, "acme", recs[0].Headers["customer"])
	assert.Equal(t, UnknownTenant, recs[1].Headers["customer"])
	assert.Equal(t, UnknownTenant, recs[2].Headers["customer"])
}

func TestFromConfig_Chain(t *testing.T) {
	static := writeFile(t, "statics.conf", "host=db01.acme\n")
	tenants := writeFile(t, "customers.txt", "acme: db01\n")

	as, err := FromConfig(config.AnnotateCfg{StaticPath: static, PreserveExisting: true, TenantPath: tenants}, nil)
	require.NoError(t, err)
	require.Len(t, as, 2)

	mem := sink.NewMemory()
	require.NoError(t, Wrap(mem, as...).Accept(context.Background(), batch(nil)))
	h := mem.Batches()[0].Records[0].Headers
	assert.Equal(t, "db01.acme", h["host"])
	assert.Equal(t, "acme", h["customer"])

	_, err = FromConfig(config.AnnotateCfg{TenantPath: filepath.Join(t.TempDir(), "none")}, nil)
	assert.Error(t, err)
}

func TestWrap_NoAnnotators(t *testing.T) {
	mem := sink.NewMemory()
	assert.Same(t, sink.Sink(mem), Wrap(mem))
}
