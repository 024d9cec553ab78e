// Package source supervises one external command, frames its stdout into
// multi-line records and delivers them in batches to a sink.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/mlexec/internal/config"
	"github.com/loykin/mlexec/internal/framer"
	"github.com/loykin/mlexec/internal/metrics"
	"github.com/loykin/mlexec/internal/process"
	"github.com/loykin/mlexec/internal/sink"
)

// DefaultStopPollInterval is how often Stop re-checks the loop while waiting.
const DefaultStopPollInterval = 500 * time.Millisecond

// stderrGrace bounds the wait for stderr EOF once stdout has closed.
const stderrGrace = 2 * time.Second

// Process is a started child as seen by the supervisor.
type Process interface {
	Pid() int
	Stdout() io.Reader
	Stderr() io.Reader
	Kill() (int, error)
}

// Launcher starts a child process.
type Launcher func(spec process.Spec) (Process, error)

// Option customizes a Source.
type Option func(*Source)

func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLauncher replaces the OS process launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Source) {
		if l != nil {
			s.launch = l
		}
	}
}

func WithStopPollInterval(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.pollEvery = d
		}
	}
}

// Status is a point-in-time snapshot of a Source.
type Status struct {
	Name           string `json:"name"`
	Command        string `json:"command"`
	State          State  `json:"state"`
	Pid            int    `json:"pid,omitempty"`
	Restarts       uint64 `json:"restarts"`
	Exited         bool   `json:"exited"`
	LastExitCode   int    `json:"last_exit_code"`
	EventsRead     uint64 `json:"events_read"`
	BatchesEmitted uint64 `json:"batches_emitted"`
	SinkFailures   uint64 `json:"sink_failures"`
}

// Source runs the command, restarting it per policy, until Stop.
type Source struct {
	cfg       config.Source
	name      string
	spec      process.Spec
	framing   framer.Config
	sink      sink.Sink
	log       *slog.Logger
	launch    Launcher
	pollEvery time.Duration

	restart atomic.Bool

	mu       sync.Mutex
	state    State
	proc     Process
	started  bool
	stopping bool
	cancel   context.CancelFunc
	exited   bool
	lastExit int
	done     chan struct{}

	seq          atomic.Uint64
	restarts     atomic.Uint64
	events       atomic.Uint64
	batches      atomic.Uint64
	sinkFailures atomic.Uint64
}

// New validates cfg and prepares a Source delivering to sk. Zero fields
// are taken literally (LineJoin "" concatenates, RestartThrottle 0 restarts
// immediately), so callers build cfg from config.DefaultSource.
func New(cfg config.Source, sk sink.Sink, opts ...Option) (*Source, error) {
	if sk == nil {
		return nil, errors.New("source: nil sink")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cs, err := framer.LookupCharset(cfg.Charset)
	if err != nil {
		return nil, &config.ConfigError{Field: "charset", Msg: err.Error()}
	}
	environ, err := cfg.Environ()
	if err != nil {
		return nil, &config.ConfigError{Field: "env_files", Msg: err.Error()}
	}

	name := cfg.SourceName()
	s := &Source{
		cfg:  cfg,
		name: name,
		spec: process.Spec{Name: name, Command: cfg.Command, WorkDir: cfg.WorkDir, Env: environ},
		framing: framer.Config{
			Terminator:      cfg.LineTerminator,
			Join:            cfg.LineJoin,
			StripTerminator: cfg.StripTerminator,
			BatchSize:       cfg.BatchSize,
			Charset:         cs,
		},
		sink:      sk,
		log:       slog.Default(),
		pollEvery: DefaultStopPollInterval,
		done:      make(chan struct{}),
	}
	killTimeout := cfg.KillTimeout
	s.launch = func(spec process.Spec) (Process, error) {
		r, err := process.Start(spec, killTimeout)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("source", name)
	return s, nil
}

func (s *Source) Name() string { return s.name }

// Done is closed once the supervision loop has finished.
func (s *Source) Done() <-chan struct{} { return s.done }

// Start launches the command and begins reading its output in the
// background. It returns after the first launch attempt: the launch error
// when restart is disabled, nil otherwise.
func (s *Source) Start() error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.restart.Store(s.cfg.Restart)
	s.mu.Unlock()

	first := make(chan error, 1)
	go s.run(ctx, first)
	return <-first
}

// Stop disables restart, kills the running child and waits for the loop
// to finish. It is idempotent and safe to call before Start.
func (s *Source) Stop() error {
	s.restart.Store(false)

	s.mu.Lock()
	already := s.stopping
	s.stopping = true
	if !s.started {
		if !already {
			s.state = Stopped
			close(s.done)
			metrics.SetState(s.name, Stopped.String(), allStates)
		}
		s.mu.Unlock()
		return nil
	}
	p := s.proc
	cancel := s.cancel
	s.mu.Unlock()

	if p != nil {
		s.kill(p)
	}
	cancel()

	t := time.NewTicker(s.pollEvery)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			s.log.Info("source stopped")
			return nil
		case <-t.C:
			s.log.Debug("waiting for source loop to finish", "state", s.State().String())
		}
	}
}

func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Source) Status() Status {
	s.mu.Lock()
	st := Status{
		Name:         s.name,
		Command:      s.cfg.Command,
		State:        s.state,
		Exited:       s.exited,
		LastExitCode: s.lastExit,
	}
	if s.proc != nil {
		st.Pid = s.proc.Pid()
	}
	s.mu.Unlock()
	st.Restarts = s.restarts.Load()
	st.EventsRead = s.events.Load()
	st.BatchesEmitted = s.batches.Load()
	st.SinkFailures = s.sinkFailures.Load()
	return st
}

func (s *Source) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	metrics.SetState(s.name, st.String(), allStates)
}

func (s *Source) run(ctx context.Context, first chan<- error) {
	defer close(s.done)
	report := func(err error) {
		if first != nil {
			first <- err
			first = nil
		}
	}
	defer report(nil)

	for {
		s.setState(Starting)
		p, err := s.launchProcess()
		switch {
		case errors.Is(err, ErrStopped):
			s.setState(Stopped)
			return
		case err != nil:
			metrics.IncLaunchFailure(s.name)
			s.log.Error("failed to launch command", "command", s.cfg.Command, "error", err)
			if !s.restart.Load() {
				s.setState(Stopped)
				report(err)
				return
			}
			report(nil)
		default:
			report(nil)
			s.runOnce(ctx, p)
		}

		if !s.restart.Load() || ctx.Err() != nil {
			s.setState(Stopped)
			return
		}
		s.setState(RestartDelay)
		if !s.sleep(ctx, s.cfg.Throttle()) {
			s.setState(Stopped)
			return
		}
		s.restarts.Add(1)
		metrics.IncRestart(s.name)
		s.log.Info("restarting command", "throttle", s.cfg.Throttle())
	}
}

// launchProcess holds mu across the launch so Stop either prevents it or
// sees the new child.
func (s *Source) launchProcess() (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return nil, ErrStopped
	}
	p, err := s.launch(s.spec)
	if err != nil {
		return nil, err
	}
	s.proc = p
	return p, nil
}

func (s *Source) runOnce(ctx context.Context, p Process) {
	s.setState(Running)
	metrics.IncStart(s.name)
	s.log.Info("command started", "pid", p.Pid(), "command", s.cfg.Command)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		Drain(p.Stderr(), DrainOptions{
			Log:     s.cfg.LogStderr,
			Source:  s.name,
			Charset: s.framing.Charset,
			Logger:  s.log,
		})
	}()

	f, err := framer.New(s.framing, func(rs []sink.Record) { s.deliver(ctx, rs) })
	if err != nil {
		// framing config is validated in New
		s.log.Error("invalid framing configuration", "error", err)
	} else {
		f.OnRecord = func() {
			s.events.Add(1)
			metrics.IncRecord(s.name)
		}
		if err := f.Consume(p.Stdout()); err != nil && ctx.Err() == nil {
			s.log.Warn("output stream failed", "error", &ReadError{Pid: p.Pid(), Err: err})
		}
	}

	s.setState(Draining)
	s.awaitStderr(ctx, drained)
	s.kill(p)
	s.mu.Lock()
	s.proc = nil
	s.mu.Unlock()
}

// awaitStderr gives the stderr drain a bounded chance to reach EOF before
// the reap closes the pipe, so the child's last lines are still read.
func (s *Source) awaitStderr(ctx context.Context, drained <-chan struct{}) {
	t := time.NewTimer(stderrGrace)
	defer t.Stop()
	select {
	case <-drained:
	case <-ctx.Done():
	case <-t.C:
		s.log.Debug("stderr still open after stdout closed", "grace", stderrGrace)
	}
}

// kill reaps p and records its exit status. A reap that times out is
// reported but does not stop the loop.
func (s *Source) kill(p Process) {
	code, err := p.Kill()
	var kte *process.KillTimeoutError
	switch {
	case errors.As(err, &kte):
		metrics.IncKillTimeout(s.name)
		s.log.Warn("command not reaped after kill", "pid", kte.Pid, "timeout", kte.Timeout, "running", kte.Running)
	case err != nil:
		s.log.Warn("kill failed", "pid", p.Pid(), "error", err)
	}
	if code == process.ExitAlreadyReaped || code == process.ExitNotStarted {
		return
	}
	s.mu.Lock()
	s.exited = true
	s.lastExit = code
	s.mu.Unlock()
	metrics.IncExit(s.name, strconv.Itoa(code))
	s.log.Info("command exited", "pid", p.Pid(), "exit_code", code)
}

func (s *Source) deliver(ctx context.Context, rs []sink.Record) {
	b := sink.Batch{
		ID:        uuid.NewString(),
		Seq:       s.seq.Add(1),
		Source:    s.name,
		CreatedAt: time.Now().UTC(),
		Records:   rs,
	}
	if err := s.accept(ctx, b); err != nil {
		s.sinkFailures.Add(1)
		metrics.IncSinkFailure(s.name)
		s.log.Error("dropping batch", "batch_id", b.ID, "seq", b.Seq, "records", len(rs), "error", err)
		return
	}
	s.batches.Add(1)
	metrics.ObserveBatch(s.name, len(rs))
}

func (s *Source) accept(ctx context.Context, b sink.Batch) (err error) {
	if s.cfg.SinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SinkTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &SinkError{BatchID: b.ID, Seq: b.Seq, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if e := s.sink.Accept(ctx, b); e != nil {
		return &SinkError{BatchID: b.ID, Seq: b.Seq, Err: e}
	}
	return nil
}

// sleep waits d unless ctx ends first; it reports whether d elapsed.
func (s *Source) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
