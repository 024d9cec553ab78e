package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loykin/mlexec"
	itls "github.com/loykin/mlexec/internal/tls"
)

const shutdownTimeout = 5 * time.Second

func loadConfig(path string) (mlexec.Config, error) {
	if path == "" {
		return mlexec.DefaultConfig(), nil
	}
	return mlexec.LoadConfig(path)
}

func applyRunFlags(c *mlexec.Config, f RunFlags) {
	if f.set("command") {
		derived := mlexec.SourceConfig{Command: c.Source.Command}.SourceName()
		c.Source.Command = f.Command
		if c.Source.Name == "" || c.Source.Name == derived {
			c.Source.Name = ""
			c.Source.Name = c.Source.SourceName()
		}
	}
	if f.set("terminator") {
		c.Source.LineTerminator = f.Terminator
	}
	if f.set("restart") {
		c.Source.Restart = f.Restart
	}
	if f.set("restart-throttle") {
		c.Source.RestartThrottle = f.RestartThrottle
	}
	if f.set("batch-size") {
		c.Source.BatchSize = f.BatchSize
	}
	if f.set("log-stderr") {
		c.Source.LogStderr = f.LogStderr
	}
	if f.set("sink") {
		c.Sink.DSN = f.SinkDSN
	}
	if f.set("http") {
		c.HTTP.Listen = f.HTTPListen
	}
}

func runSource(ctx context.Context, f RunFlags, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := loadConfig(f.ConfigPath)
	if err != nil {
		return err
	}
	applyRunFlags(&c, f)
	if err := c.Validate(); err != nil {
		return err
	}

	log, closer, err := c.Log.NewSlogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	if err := mlexec.RegisterMetricsDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	tlsCfg, err := itls.Setup(c.HTTP)
	if err != nil {
		return fmt.Errorf("http tls: %w", err)
	}
	src, err := mlexec.Open(c, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := src.Start(); err != nil {
		_ = src.Close()
		return err
	}
	log.Info("source running", "name", src.Name(), "sink", c.Sink.DSN)
	_, _ = fmt.Fprintf(out, "mlexec: running %q\n", src.Name())

	g, gctx := errgroup.WithContext(ctx)
	var srv *http.Server
	if c.HTTP.Listen != "" {
		srv = mlexec.NewHTTPServer(c.HTTP.Listen, "", src)
		srv.TLSConfig = tlsCfg
		g.Go(func() error {
			log.Info("http listening", "addr", c.HTTP.Listen, "tls", tlsCfg != nil)
			var err error
			if tlsCfg != nil {
				err = srv.ListenAndServeTLS("", "")
			} else {
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-gctx.Done():
			log.Info("shutting down")
		case <-src.Done():
		}
		err := src.Close()
		if srv != nil {
			shutdownHTTP(srv, log)
		}
		return err
	})
	return g.Wait()
}

func shutdownHTTP(srv *http.Server, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
}

func validateConfig(path string, out io.Writer) error {
	if path == "" {
		return errors.New("--config is required")
	}
	c, err := mlexec.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "ok: source %q runs %q, sink %s\n", c.Source.Name, c.Source.Command, c.Sink.DSN)
	return nil
}
