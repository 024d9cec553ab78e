package mlexec

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/mlexec/internal/annotate"
	cfg "github.com/loykin/mlexec/internal/config"
	"github.com/loykin/mlexec/internal/metrics"
	iapi "github.com/loykin/mlexec/internal/server"
	"github.com/loykin/mlexec/internal/sink"
	"github.com/loykin/mlexec/internal/sink/factory"
	"github.com/loykin/mlexec/internal/source"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.File

type SourceConfig = cfg.Source

type Record = sink.Record

type Batch = sink.Batch

type Sink = sink.Sink

type SinkFunc = sink.Func

type Status = source.Status

type State = source.State

type Option = source.Option

var (
	ErrStopped        = source.ErrStopped
	ErrAlreadyStarted = source.ErrAlreadyStarted
)

// Source is a thin facade over internal/source.Source.
type Source struct {
	inner *source.Source
	sink  Sink
	owned bool // sink was built by Open
}

// DefaultConfig returns a configuration with every optional field defaulted.
func DefaultConfig() Config { return cfg.Default() }

func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// NewSink creates a sink from a DSN such as "stdout", "sqlite:///var/lib/mlexec.db"
// or "clickhouse://host:9000?table=records".
func NewSink(dsn string) (Sink, error) { return factory.NewFromDSN(dsn) }

// New builds a source delivering to sk. Annotators configured in c wrap sk.
// The caller keeps ownership of sk.
func New(c Config, sk Sink, log *slog.Logger) (*Source, error) {
	if sk == nil {
		return nil, errors.New("mlexec: nil sink")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	as, err := annotate.FromConfig(c.Annotate, log)
	if err != nil {
		return nil, err
	}
	wrapped := annotate.Wrap(sk, as...)
	inner, err := source.New(c.Source, wrapped, source.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return &Source{inner: inner, sink: wrapped}, nil
}

// Open builds the sink named by c.Sink.DSN and a source delivering to it.
// Close releases the sink.
func Open(c Config, log *slog.Logger) (*Source, error) {
	sk, err := NewSink(c.Sink.DSN)
	if err != nil {
		return nil, err
	}
	s, err := New(c, sk, log)
	if err != nil {
		_ = sink.Close(sk)
		return nil, err
	}
	s.owned = true
	return s, nil
}

func (s *Source) Name() string          { return s.inner.Name() }
func (s *Source) Start() error          { return s.inner.Start() }
func (s *Source) Stop() error           { return s.inner.Stop() }
func (s *Source) Status() Status        { return s.inner.Status() }
func (s *Source) Done() <-chan struct{} { return s.inner.Done() }
func (s *Source) Inner() *source.Source { return s.inner }

// Close stops the source. A sink built by Open is closed as well; one
// passed to New is left to the caller.
func (s *Source) Close() error {
	err := s.inner.Stop()
	if s.owned {
		err = errors.Join(err, sink.Close(s.sink))
	}
	return err
}

// NewHTTPServer returns an unstarted server exposing /status, /healthz and /metrics.
func NewHTTPServer(addr, basePath string, s *Source) *http.Server {
	return iapi.NewServer(addr, basePath, s.inner)
}

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
