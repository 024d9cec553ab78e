package annotate

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/mlexec/internal/sink"
)

// UnknownTenant is set when the host is absent or unmapped.
const UnknownTenant = "UNKNOWN"

// Tenant maps the host header to a tenant header.
type Tenant struct {
	hosts        map[string]string
	tenantHeader string
	hostHeader   string
}

// NewTenant loads the host map from path. Each line reads
// "tenant: host1 host2.example.com ..."; other lines are ignored.
func NewTenant(path, tenantHeader, hostHeader string) (*Tenant, error) {
	m, err := LoadTenants(path)
	if err != nil {
		return nil, err
	}
	return &Tenant{hosts: m, tenantHeader: tenantHeader, hostHeader: hostHeader}, nil
}

// LoadTenants parses a tenant file into a short-host to tenant map.
func LoadTenants(path string) (map[string]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	m := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		i := strings.LastIndexByte(line, ':')
		if i < 0 {
			continue
		}
		tenant := strings.TrimSpace(line[:i])
		for _, h := range strings.Fields(line[i+1:]) {
			m[shortHost(h)] = tenant
		}
	}
	return m, sc.Err()
}

func (t *Tenant) Annotate(records []sink.Record) {
	for _, r := range records {
		tenant := UnknownTenant
		if h, ok := r.Headers[t.hostHeader]; ok {
			if v, ok := t.hosts[shortHost(h)]; ok {
				tenant = v
			}
		}
		r.Headers[t.tenantHeader] = tenant
	}
}

func shortHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if i := strings.IndexByte(h, '.'); i >= 0 {
		h = h[:i]
	}
	return h
}
