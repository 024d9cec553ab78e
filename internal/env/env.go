package env

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Var map[string]string

// Env composes the environment handed to the child process.
type Env struct {
	Var Var // explicit variables (K->V), applied last
	env Var // base; nil until FromOS or LoadFile populates it
}

func New() *Env {
	return &Env{
		Var: make(Var),
	}
}

// FromOS seeds the base with the current process environment.
func (e *Env) FromOS() {
	if e.env == nil {
		e.env = make(Var)
	}
	for _, kv := range os.Environ() {
		if k, v, ok := split(kv); ok {
			e.env[k] = v
		}
	}
}

// LoadFile merges a .env style file (KEY=VALUE per line, # comments) into the base.
func (e *Env) LoadFile(path string) error {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	if e.env == nil {
		e.env = make(Var)
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := split(line); ok {
			e.env[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return nil
}

// Set sets an explicit variable K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// Merge composes the final environment list:
// base (OS and/or files), then e.Var, then kvs ("K=V") overrides.
// ${VAR} references are expanded against the composed map (no recursion).
// The result is sorted by key.
func (e *Env) Merge(kvs []string) []string {
	m := make(Var)
	for k, v := range e.env {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for _, kv := range kvs {
		if k, v, ok := split(kv); ok {
			m[k] = v
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	sort.Strings(out)
	return out
}

// Compose builds the child environment for a source. It returns nil when the
// child should simply inherit the current environment.
func Compose(useOS bool, files []string, kvs []string) ([]string, error) {
	if useOS && len(files) == 0 && len(kvs) == 0 {
		return nil, nil
	}
	e := New()
	if useOS {
		e.FromOS()
	}
	for _, f := range files {
		if err := e.LoadFile(f); err != nil {
			return nil, err
		}
	}
	return e.Merge(kvs), nil
}

func split(kv string) (string, string, bool) {
	i := strings.IndexByte(kv, '=')
	if i <= 0 {
		return "", "", false
	}
	return kv[:i], kv[i+1:], true
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
