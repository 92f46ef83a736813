// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/ec2api"
	"github.com/oshima/ec2-backup/internal/schedule"
)

// Dispatcher hands leaf jobs to whatever executes them. Wait blocks until
// every dispatched job has been handed off (or run, for in-process
// dispatchers) and returns their combined error.
type Dispatcher interface {
	Dispatch(ctx context.Context, job backup.Job) error
	Wait() error
}

// Skip records an instance that matched a schedule but was not dispatched.
type Skip struct {
	Type       schedule.Type
	InstanceID string
	Reason     string
}

// Report is the result of planning or running a fan-out.
type Report struct {
	At      time.Time
	Jobs    []backup.Job
	Skipped []Skip
}

// Count returns the number of jobs of typ.
func (r Report) Count(typ schedule.Type) int {
	n := 0
	for _, j := range r.Jobs {
		if j.Type == string(typ) {
			n++
		}
	}
	return n
}

// Fanout selects due volumes from instance tags.
type Fanout struct {
	ec2 *ec2api.Client
	loc *time.Location
}

// New returns a Fanout evaluating schedules in loc. A nil loc means
// time.Local.
func New(c *ec2api.Client, loc *time.Location) *Fanout {
	if loc == nil {
		loc = time.Local
	}
	return &Fanout{ec2: c, loc: loc}
}

// Location returns the schedule location.
func (f *Fanout) Location() *time.Location {
	return f.loc
}

// Plan returns the jobs due at at without dispatching them.
func (f *Fanout) Plan(ctx context.Context, at time.Time) (Report, error) {
	at = at.In(f.loc)
	report := Report{At: at}

	for _, typ := range schedule.Types {
		jobs, skipped, err := f.planType(ctx, typ, at)
		if err != nil {
			return report, err
		}
		report.Jobs = append(report.Jobs, jobs...)
		report.Skipped = append(report.Skipped, skipped...)
	}
	return report, nil
}

func (f *Fanout) planType(ctx context.Context, typ schedule.Type, at time.Time) ([]backup.Job, []Skip, error) {
	filters, err := schedule.Filters(typ, at)
	if err != nil {
		return nil, nil, err
	}

	instances, err := f.ec2.Instances(ctx, filters)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", typ, err)
	}

	var (
		jobs    []backup.Job
		skipped []Skip
	)
	for _, inst := range instances {
		generation := inst.Tags[typ.GenerationTag()]
		if _, err := schedule.ParseGeneration(generation); err != nil {
			log.WithField("instance", inst.ID).Warnf("skipping %s: %v", typ, err)
			skipped = append(skipped, Skip{Type: typ, InstanceID: inst.ID, Reason: err.Error()})
			continue
		}
		for _, vol := range inst.Volumes {
			jobs = append(jobs, backup.Job{
				Type:       string(typ),
				VolumeID:   vol.VolumeID,
				Name:       fmt.Sprintf("%s:%s", inst.Name(), vol.DeviceName),
				Generation: backup.Generation(generation),
			})
		}
	}
	return jobs, skipped, nil
}

// Run dispatches every job due at at, one type after the other. A failed
// lookup or dispatch does not stop the remaining types or jobs; all failures
// are returned joined.
func (f *Fanout) Run(ctx context.Context, at time.Time, d Dispatcher) (Report, error) {
	at = at.In(f.loc)
	report := Report{At: at}

	var errs []error
	for _, typ := range schedule.Types {
		jobs, skipped, err := f.planType(ctx, typ, at)
		report.Skipped = append(report.Skipped, skipped...)
		if err != nil {
			log.WithError(err).Errorf("listing %s instances failed", typ)
			errs = append(errs, err)
			continue
		}

		log.Infof("Start invocation of leaf functions (%s)", typ)
		for _, job := range jobs {
			report.Jobs = append(report.Jobs, job)
			if err := d.Dispatch(ctx, job); err != nil {
				errs = append(errs, fmt.Errorf("dispatch %s: %w", job, err))
			}
		}
		log.Infof("End invocation of leaf functions (%s)", typ)
	}

	if err := d.Wait(); err != nil {
		errs = append(errs, err)
	}
	return report, errors.Join(errs...)
}
