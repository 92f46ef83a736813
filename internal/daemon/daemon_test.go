// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/ec2api"
	"github.com/oshima/ec2-backup/internal/ec2api/ec2test"
	"github.com/oshima/ec2-backup/internal/fanout"
	"github.com/oshima/ec2-backup/internal/journal"
	"github.com/oshima/ec2-backup/internal/metrics"
)

var now = time.Date(2026, time.July, 15, 1, 15, 42, 0, time.UTC)

type fixture struct {
	fake    *ec2test.Fake
	daemon  *Daemon
	journal *journal.Journal
	server  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fake := ec2test.New()
	fake.Now = func() time.Time { return now }
	fake.AddInstance("i-1", map[string]string{
		"Name":                  "web",
		"DailyBackupHour":       "1",
		"DailyBackupMinute":     "15",
		"DailyBackupGeneration": "2",
	}, map[string]string{"/dev/xvda": "vol-a", "/dev/xvdb": "vol-b"})

	j, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	m := metrics.New()
	clock := func() time.Time { return now }
	c := ec2api.New(fake, "ap-northeast-1", ec2api.WithRateLimit(0, 0))
	runner := backup.NewRunner(backup.WithClock(clock), backup.WithObserver(j), backup.WithObserver(m))

	d, err := New(Config{Concurrency: 2}, fanout.New(c, time.UTC), runner, c,
		WithJournal(j), WithMetrics(m), WithClock(clock))
	require.NoError(t, err)

	srv := httptest.NewServer(d.Router())
	t.Cleanup(srv.Close)

	return &fixture{fake: fake, daemon: d, journal: j, server: srv}
}

func TestNew_Defaults(t *testing.T) {
	c := ec2api.New(ec2test.New(), "ap-northeast-1")
	d, err := New(Config{}, fanout.New(c, time.UTC), backup.NewRunner(), c)
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, d.cfg.Schedule)
	assert.Equal(t, DefaultListen, d.cfg.Listen)
	assert.Equal(t, DefaultConcurrency, d.cfg.Concurrency)

	_, err = New(Config{Schedule: "not a schedule"}, fanout.New(c, time.UTC), backup.NewRunner(), c)
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	f := newFixture(t)

	report, err := f.daemon.RunOnce(context.Background(), now.Truncate(time.Minute))
	require.NoError(t, err)
	assert.Len(t, report.Jobs, 2)
	assert.Len(t, f.fake.Created, 2)

	last, ok := f.daemon.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.Jobs)
	assert.Empty(t, last.Error)

	entries, err := f.journal.List(context.Background(), journal.Query{RunID: last.ID})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRunOnce_Busy(t *testing.T) {
	f := newFixture(t)
	f.daemon.running = true

	_, err := f.daemon.RunOnce(context.Background(), now)
	assert.ErrorIs(t, err, ErrBusy)
}

// panicky blows up on the instance lookup.
type panicky struct {
	*ec2test.Fake
}

func (panicky) DescribeInstances(
	context.Context,
	*ec2.DescribeInstancesInput,
	...func(*ec2.Options),
) (*ec2.DescribeInstancesOutput, error) {
	panic("describe instances")
}

func TestRunOnce_ReleasesAfterPanic(t *testing.T) {
	bad := ec2api.New(panicky{ec2test.New()}, "ap-northeast-1", ec2api.WithRateLimit(0, 0))
	d, err := New(Config{}, fanout.New(bad, time.UTC), backup.NewRunner(), bad)
	require.NoError(t, err)

	assert.Panics(t, func() { _, _ = d.RunOnce(context.Background(), now) })

	good := ec2api.New(ec2test.New(), "ap-northeast-1", ec2api.WithRateLimit(0, 0))
	d.fanout = fanout.New(good, time.UTC)
	_, err = d.RunOnce(context.Background(), now)
	assert.NoError(t, err)
}

func TestTick_UsesCurrentMinute(t *testing.T) {
	f := newFixture(t)
	f.daemon.tick(context.Background())

	last, ok := f.daemon.Last()
	require.True(t, ok)
	assert.Equal(t, now.Truncate(time.Minute), last.At)
	assert.Equal(t, 2, last.Jobs)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body.Status)
	assert.Nil(t, body.LastRun)
}

func TestTriggerAndRuns(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/trigger?at=2026-07-15T01:15:00Z", "application/json", nil)
	require.NoError(t, err)
	var trig triggerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trig))
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, trig.Jobs, 2)
	assert.Empty(t, trig.Error)

	resp, err = http.Get(f.server.URL + "/runs?volume=vol-a")
	require.NoError(t, err)
	var entries []journal.Entry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	_ = resp.Body.Close()

	require.Len(t, entries, 1)
	assert.Equal(t, "created", entries[0].Action)
	assert.Equal(t, "web:/dev/xvda", entries[0].Name)
}

func TestTrigger_OutlivesClient(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/trigger?at=2026-07-15T01:15:00Z", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.daemon.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.fake.Created, 2)
	for _, id := range f.fake.Created {
		assert.Equal(t, "DailyBackup", f.fake.Tagged[id]["Type"])
	}
}

func TestTrigger_BadTime(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/trigger?at=yesterday", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRuns_BadLimit(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "/runs?limit=zero")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRuns_NoJournal(t *testing.T) {
	c := ec2api.New(ec2test.New(), "ap-northeast-1")
	d, err := New(Config{}, fanout.New(c, time.UTC), backup.NewRunner(), c)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	d.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	d.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	_, err := f.daemon.RunOnce(context.Background(), now.Truncate(time.Minute))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	f.daemon.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `ec2backup_jobs_dispatched_total{type="DailyBackup"} 2`))
}

func TestRun_StopsOnCancel(t *testing.T) {
	c := ec2api.New(ec2test.New(), "ap-northeast-1")
	d, err := New(Config{Listen: "127.0.0.1:0"}, fanout.New(c, time.UTC), backup.NewRunner(), c)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
