// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/robfig/cron/v3"

	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/ec2api"
	"github.com/oshima/ec2-backup/internal/fanout"
	"github.com/oshima/ec2-backup/internal/journal"
	"github.com/oshima/ec2-backup/internal/metrics"
)

const (
	DefaultSchedule    = "* * * * *"
	DefaultListen      = ":9400"
	DefaultConcurrency = 4
	DefaultTimeout     = 10 * time.Minute
	shutdownTimeout    = 10 * time.Second
)

var ErrBusy = errors.New("a run is already in progress")

// Config tunes the daemon. Zero values take the defaults above.
type Config struct {
	Schedule    string
	Listen      string
	Concurrency int
	Timeout     time.Duration
}

func (c *Config) defaults() {
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// RunStatus describes the most recent run.
type RunStatus struct {
	ID       string        `json:"id"`
	At       time.Time     `json:"at"`
	Jobs     int           `json:"jobs"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Daemon owns the schedule and the HTTP server.
type Daemon struct {
	cfg     Config
	fanout  *fanout.Fanout
	runner  *backup.Runner
	ec2     *ec2api.Client
	journal *journal.Journal
	metrics *metrics.Metrics
	now     func() time.Time

	sched cron.Schedule

	mu      sync.Mutex
	running bool
	last    *RunStatus
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithJournal enables /runs.
func WithJournal(j *journal.Journal) Option {
	return func(d *Daemon) { d.journal = j }
}

// WithMetrics enables /metrics and run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Daemon) { d.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

// New validates cfg and returns a Daemon.
func New(cfg Config, f *fanout.Fanout, runner *backup.Runner, c *ec2api.Client, opts ...Option) (*Daemon, error) {
	cfg.defaults()
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	d := &Daemon{
		cfg:    cfg,
		fanout: f,
		runner: runner,
		ec2:    c,
		now:    time.Now,
		sched:  sched,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Last returns the most recent run, if any.
func (d *Daemon) Last() (RunStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.last == nil {
		return RunStatus{}, false
	}
	return *d.last, true
}

// RunOnce fans out the jobs due at at and runs them in-process. Only one run
// may be active at a time.
func (d *Daemon) RunOnce(ctx context.Context, at time.Time) (fanout.Report, error) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fanout.Report{}, ErrBusy
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	id := journal.NewRunID()
	ctx, cancel := context.WithTimeout(journal.WithRunID(ctx, id), d.cfg.Timeout)
	defer cancel()

	logger := log.WithFields(log.Fields{"run": id, "at": at.Format(time.RFC3339)})
	logger.Info("run started")

	start := d.now()
	report, err := d.fanout.Run(ctx, at, fanout.NewInlineDispatcher(d.runner, d.ec2, d.cfg.Concurrency))
	took := d.now().Sub(start)

	if d.metrics != nil {
		d.metrics.ObserveRun(report, took, err)
	}

	status := &RunStatus{ID: id, At: report.At, Jobs: len(report.Jobs), Skipped: len(report.Skipped), Duration: took}
	if err != nil {
		status.Error = err.Error()
		logger.WithError(err).Error("run failed")
	} else {
		logger.WithField("jobs", len(report.Jobs)).Info("run finished")
	}

	d.mu.Lock()
	d.last = status
	d.mu.Unlock()

	return report, err
}

// tick is the cron job body. The schedule time is the current minute.
func (d *Daemon) tick(ctx context.Context) {
	at := d.now().In(d.fanout.Location()).Truncate(time.Minute)
	if _, err := d.RunOnce(ctx, at); errors.Is(err, ErrBusy) {
		log.Warnf("skipping run at %s: %v", at.Format(time.RFC3339), err)
	}
}

// Run starts the schedule and the HTTP server and blocks until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(d.fanout.Location()),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{})),
	)
	c.Schedule(d.sched, cron.FuncJob(func() { d.tick(ctx) }))

	srv := &http.Server{
		Addr:              d.cfg.Listen,
		Handler:           d.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("listen", d.cfg.Listen).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	c.Start()
	log.WithField("schedule", d.cfg.Schedule).Info("scheduler started")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errc:
		runErr = fmt.Errorf("http server: %w", err)
	}

	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	log.Info("daemon stopped")
	return runErr
}

// cronLogger routes cron's own messages to apex/log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(kv []any) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
