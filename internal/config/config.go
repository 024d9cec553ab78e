package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/mlexec/internal/env"
	"github.com/loykin/mlexec/internal/framer"
	"github.com/loykin/mlexec/internal/logger"
)

// Defaults applied when a key is absent.
const (
	DefaultLineJoin        = "\n"
	DefaultRestartThrottle = 10000 // ms
	DefaultBatchSize       = 20
	DefaultCharset         = "UTF-8"
	DefaultKillTimeout     = 5 * time.Second
	DefaultTenantHeader    = "customer"
	DefaultHostHeader      = "host"
)

// File represents the top-level TOML structure.
type File struct {
	Source   Source        `mapstructure:"source"`
	Sink     SinkConfig    `mapstructure:"sink"`
	Annotate AnnotateCfg   `mapstructure:"annotate"`
	Log      logger.Config `mapstructure:"log"`
	HTTP     HTTPConfig    `mapstructure:"http"`
}

// Source configures one supervised command. It is immutable once the
// source has started. Start from DefaultSource: zero values are valid
// settings, not requests for defaults.
type Source struct {
	Name            string        `mapstructure:"name"`
	Command         string        `mapstructure:"command"`
	LineTerminator  string        `mapstructure:"line_terminator"`
	LineJoin        string        `mapstructure:"line_join"`
	StripTerminator bool          `mapstructure:"strip_terminator"` // ["a|#]", ""] yields "a" instead of "a|#]"
	Restart         bool          `mapstructure:"restart"`
	RestartThrottle int64         `mapstructure:"restart_throttle"` // milliseconds
	LogStderr       bool          `mapstructure:"log_stderr"`
	BatchSize       int           `mapstructure:"batch_size"`
	Charset         string        `mapstructure:"charset"`
	WorkDir         string        `mapstructure:"work_dir"`
	Env             []string      `mapstructure:"env"`
	EnvFiles        []string      `mapstructure:"env_files"`
	UseOSEnv        bool          `mapstructure:"use_os_env"`
	KillTimeout     time.Duration `mapstructure:"kill_timeout"`
	SinkTimeout     time.Duration `mapstructure:"sink_timeout"`
}

type SinkConfig struct {
	DSN string `mapstructure:"dsn"`
}

type AnnotateCfg struct {
	StaticPath       string `mapstructure:"static_path"`
	PreserveExisting bool   `mapstructure:"preserve_existing"`
	TenantPath       string `mapstructure:"tenant_path"`
	TenantHeader     string `mapstructure:"tenant_header"`
	HostHeader       string `mapstructure:"host_header"`
}

// HTTPConfig configures the status server. Setting TLSCert and TLSKey
// switches it to HTTPS.
type HTTPConfig struct {
	Listen          string `mapstructure:"listen"`
	TLSCert         string `mapstructure:"tls_cert"`
	TLSKey          string `mapstructure:"tls_key"`
	TLSMinVersion   string `mapstructure:"tls_min_version"`
	TLSAutoGenerate bool   `mapstructure:"tls_auto_generate"`
}

// DefaultSource returns a Source with every optional field defaulted.
func DefaultSource() Source {
	return Source{
		LineJoin:        DefaultLineJoin,
		RestartThrottle: DefaultRestartThrottle,
		BatchSize:       DefaultBatchSize,
		Charset:         DefaultCharset,
		UseOSEnv:        true,
		KillTimeout:     DefaultKillTimeout,
	}
}

// Default returns a File with every optional field defaulted.
func Default() File {
	return File{
		Source: DefaultSource(),
		Sink:   SinkConfig{DSN: "stdout"},
		Annotate: AnnotateCfg{
			PreserveExisting: true,
			TenantHeader:     DefaultTenantHeader,
			HostHeader:       DefaultHostHeader,
		},
		Log: logger.Default(),
	}
}

// Throttle returns the restart throttle as a duration.
func (s Source) Throttle() time.Duration {
	return time.Duration(s.RestartThrottle) * time.Millisecond
}

// SourceName returns Name, or the base name of the command executable.
func (s Source) SourceName() string {
	if s.Name != "" {
		return s.Name
	}
	f := strings.Fields(s.Command)
	if len(f) == 0 {
		return ""
	}
	return filepath.Base(f[0])
}

// Environ composes the child environment; nil means inherit.
func (s Source) Environ() ([]string, error) {
	return env.Compose(s.UseOSEnv, s.EnvFiles, s.Env)
}

// Validate checks the source configuration.
func (s Source) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return &ConfigError{Field: "command", Msg: "must not be empty"}
	}
	if s.LineTerminator == "" {
		return &ConfigError{Field: "line_terminator", Msg: "must not be empty"}
	}
	if s.BatchSize <= 0 {
		return &ConfigError{Field: "batch_size", Msg: fmt.Sprintf("must be > 0, got %d", s.BatchSize)}
	}
	if s.RestartThrottle < 0 {
		return &ConfigError{Field: "restart_throttle", Msg: "must not be negative"}
	}
	if s.KillTimeout < 0 {
		return &ConfigError{Field: "kill_timeout", Msg: "must not be negative"}
	}
	if s.SinkTimeout < 0 {
		return &ConfigError{Field: "sink_timeout", Msg: "must not be negative"}
	}
	if _, err := framer.LookupCharset(s.Charset); err != nil {
		return &ConfigError{Field: "charset", Msg: err.Error()}
	}
	for _, kv := range s.Env {
		if !strings.Contains(kv, "=") {
			return &ConfigError{Field: "env", Msg: fmt.Sprintf("entry %q is not KEY=VALUE", kv)}
		}
	}
	return nil
}

// Validate checks the whole file.
func (f File) Validate() error {
	if err := f.Source.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(f.Sink.DSN) == "" {
		return &ConfigError{Field: "sink.dsn", Msg: "must not be empty"}
	}
	if err := f.Log.Validate(); err != nil {
		return &ConfigError{Field: "log", Msg: err.Error()}
	}
	if (f.HTTP.TLSCert == "") != (f.HTTP.TLSKey == "") {
		return &ConfigError{Field: "http.tls_cert", Msg: "and http.tls_key must be set together"}
	}
	return nil
}

// Load reads a TOML file, applying defaults for absent keys.
func Load(path string) (File, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var fc File
	if err := v.Unmarshal(&fc); err != nil {
		return File{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	if fc.Source.Name == "" {
		fc.Source.Name = fc.Source.SourceName()
	}
	return fc, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("source.line_join", d.Source.LineJoin)
	v.SetDefault("source.restart_throttle", d.Source.RestartThrottle)
	v.SetDefault("source.batch_size", d.Source.BatchSize)
	v.SetDefault("source.charset", d.Source.Charset)
	v.SetDefault("source.use_os_env", d.Source.UseOSEnv)
	v.SetDefault("source.kill_timeout", d.Source.KillTimeout)
	v.SetDefault("sink.dsn", d.Sink.DSN)
	v.SetDefault("annotate.preserve_existing", d.Annotate.PreserveExisting)
	v.SetDefault("annotate.tenant_header", d.Annotate.TenantHeader)
	v.SetDefault("annotate.host_header", d.Annotate.HostHeader)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.timestamps", d.Log.TimeStamps)
}
