// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/journal"
	"github.com/oshima/ec2-backup/internal/schedule"
)

// Router builds the HTTP routes.
func (d *Daemon) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", d.handleHealth())
	if d.metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.metrics.Handler())
	}
	r.Get("/runs", d.handleRuns())
	r.Post("/trigger", d.handleTrigger())

	return r
}

type healthResponse struct {
	Status  string     `json:"status"`
	LastRun *RunStatus `json:"last_run,omitempty"`
}

func (d *Daemon) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok"}
		if last, ok := d.Last(); ok {
			resp.LastRun = &last
			if last.Error != "" {
				resp.Status = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (d *Daemon) handleRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.journal == nil {
			writeError(w, http.StatusServiceUnavailable, errors.New("journal is disabled"))
			return
		}

		q := journal.Query{
			RunID:    r.URL.Query().Get("run"),
			VolumeID: r.URL.Query().Get("volume"),
		}
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
				return
			}
			q.Limit = n
		}

		entries, err := d.journal.List(r.Context(), q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

type triggerResponse struct {
	At      time.Time    `json:"at"`
	Jobs    []backup.Job `json:"jobs"`
	Skipped int          `json:"skipped"`
	Error   string       `json:"error,omitempty"`
}

// handleTrigger runs a fan-out now, or at the event time given by ?at=.
func (d *Daemon) handleTrigger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		at := d.now().Truncate(time.Minute)
		if s := r.URL.Query().Get("at"); s != "" {
			t, err := schedule.ParseEventTime(s, d.fanout.Location())
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			at = t
		}

		// A client hanging up must not abort leaves midway; the run timeout
		// still applies.
		report, err := d.RunOnce(context.WithoutCancel(r.Context()), at)
		if errors.Is(err, ErrBusy) {
			writeError(w, http.StatusConflict, err)
			return
		}

		resp := triggerResponse{At: report.At, Jobs: report.Jobs, Skipped: len(report.Skipped)}
		if resp.Jobs == nil {
			resp.Jobs = []backup.Job{}
		}
		status := http.StatusOK
		if err != nil {
			resp.Error = err.Error()
			status = http.StatusBadGateway
		}
		writeJSON(w, status, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
