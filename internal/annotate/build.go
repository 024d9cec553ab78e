package annotate

import (
	"log/slog"

	"github.com/loykin/mlexec/internal/config"
)

// FromConfig builds the annotators enabled in c, static first.
func FromConfig(c config.AnnotateCfg, log *slog.Logger) ([]Annotator, error) {
	var out []Annotator
	if c.StaticPath != "" {
		out = append(out, &Static{Path: c.StaticPath, PreserveExisting: c.PreserveExisting, Logger: log})
	}
	if c.TenantPath != "" {
		tenantHeader := c.TenantHeader
		if tenantHeader == "" {
			tenantHeader = config.DefaultTenantHeader
		}
		hostHeader := c.HostHeader
		if hostHeader == "" {
			hostHeader = config.DefaultHostHeader
		}
		t, err := NewTenant(c.TenantPath, tenantHeader, hostHeader)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
