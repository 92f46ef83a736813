// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/oshima/ec2-backup/internal/ec2api"
	"github.com/oshima/ec2-backup/internal/schedule"
)

// ReuseWindow is how recent the latest snapshot must be for a repeated
// invocation to adopt it instead of taking another one.
const ReuseWindow = 30 * time.Minute

// dryRunID stands in for the snapshot a dry run would have produced.
const dryRunID = "(dry-run)"

// Action describes what a leaf run did with the snapshot.
type Action string

const (
	ActionCreated Action = "created"
	ActionCopied  Action = "copied"
	ActionReused  Action = "reused"
	ActionSkipped Action = "skipped"
)

// Outcome reports a single leaf run.
type Outcome struct {
	Job        Job       `json:"job"`
	Region     string    `json:"region"`
	Remote     bool      `json:"remote"`
	Action     Action    `json:"action"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
	Deleted    []string  `json:"deleted,omitempty"`
	DryRun     bool      `json:"dry_run,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
}

// Observer is notified after every leaf run, successful or not.
type Observer interface {
	Observe(ctx context.Context, o Outcome, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome, err error)

func (f ObserverFunc) Observe(ctx context.Context, o Outcome, err error) { f(ctx, o, err) }

// Runner executes leaf jobs.
type Runner struct {
	now       func() time.Time
	window    time.Duration
	dryRun    bool
	observers []Observer
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithReuseWindow overrides ReuseWindow.
func WithReuseWindow(d time.Duration) Option {
	return func(r *Runner) { r.window = d }
}

// WithDryRun makes the runner log mutations instead of performing them.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// NewRunner returns a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{now: time.Now, window: ReuseWindow}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) notify(ctx context.Context, o *Outcome, err error) {
	o.Finished = r.now()
	for _, obs := range r.observers {
		obs.Observe(ctx, *o, err)
	}
}

// Local snapshots job.VolumeID in the client's region and retires snapshots
// beyond the job's generation.
func (r *Runner) Local(ctx context.Context, c *ec2api.Client, job Job) (out Outcome, err error) {
	out = Outcome{Job: job, Region: c.Region(), DryRun: r.dryRun, Started: r.now()}
	defer func() { r.notify(ctx, &out, err) }()

	typ, gen, err := job.Validate()
	if err != nil {
		return out, err
	}

	logger := log.WithFields(log.Fields{
		"type":   job.Type,
		"volume": job.VolumeID,
		"name":   job.Name,
		"region": c.Region(),
	})
	logger.Infof("Start local backup (%s)", job)

	description := fmt.Sprintf("%s of %s (%s)", typ, job.VolumeID, job.Name)
	err = r.rotate(ctx, c, job, typ, gen, &out, ActionCreated, func(ctx context.Context) (string, error) {
		return c.CreateSnapshot(ctx, job.VolumeID, description)
	})

	logger.Infof("End local backup (%s)", job)
	return out, err
}

// Remote replicates the snapshot named by snapshotARN from local into the
// remote region configured on the owning instance. regional returns a client
// for a region.
func (r *Runner) Remote(
	ctx context.Context,
	local *ec2api.Client,
	regional func(region string) (*ec2api.Client, error),
	snapshotARN string,
) (out Outcome, err error) {
	out = Outcome{Region: local.Region(), Remote: true, DryRun: r.dryRun, Started: r.now()}
	defer func() { r.notify(ctx, &out, err) }()

	skip := func(reason string) (Outcome, error) {
		out.Action = ActionSkipped
		out.Reason = reason
		log.Debugf("remote backup skipped: %s", reason)
		return out, nil
	}

	sourceID, err := SnapshotIDFromARN(snapshotARN)
	if err != nil {
		return out, err
	}

	source, err := local.Snapshot(ctx, sourceID)
	if err != nil {
		return out, err
	}

	typeTag, hasType := source.Tags.Value(TagType)
	volumeID, hasVolume := source.Tags.Value(TagVolumeID)
	if !hasType || !hasVolume {
		return skip(fmt.Sprintf("snapshot %s is not managed", sourceID))
	}
	out.Job = Job{Type: typeTag, VolumeID: volumeID, Name: source.Tags[TagName]}

	typ, err := schedule.ParseType(typeTag)
	if err != nil {
		return skip(fmt.Sprintf("snapshot %s has unknown type %q", sourceID, typeTag))
	}

	instance, err := local.InstanceByVolume(ctx, volumeID)
	if errors.Is(err, ec2api.ErrInstanceNotFound) {
		return skip(fmt.Sprintf("volume %s is not attached", volumeID))
	}
	if err != nil {
		return out, err
	}

	remoteRegion := instance.Tags[typ.RemoteRegionTag()]
	if remoteRegion == "" {
		return skip(fmt.Sprintf("instance %s has no %s tag", instance.ID, typ.RemoteRegionTag()))
	}
	if remoteRegion == local.Region() {
		return skip(fmt.Sprintf("remote region %s is the source region", remoteRegion))
	}

	out.Job.Generation = Generation(instance.Tags[typ.GenerationTag()])
	_, gen, err := out.Job.Validate()
	if err != nil {
		return out, err
	}

	remote, err := regional(remoteRegion)
	if err != nil {
		return out, fmt.Errorf("client for %s: %w", remoteRegion, err)
	}
	out.Region = remote.Region()

	logger := log.WithFields(log.Fields{
		"type":   typeTag,
		"volume": volumeID,
		"name":   out.Job.Name,
		"region": remoteRegion,
	})
	logger.Infof("Start remote backup (%s)", out.Job)

	description := fmt.Sprintf("%s of %s copied from %s/%s", typ, volumeID, local.Region(), sourceID)
	err = r.rotate(ctx, remote, out.Job, typ, gen, &out, ActionCopied, func(ctx context.Context) (string, error) {
		return remote.CopySnapshot(ctx, local.Region(), sourceID, description)
	})

	logger.Infof("End remote backup (%s)", out.Job)
	return out, err
}

// rotate is the shared leaf algorithm: adopt a recent snapshot or produce a
// new one, tag it, then delete the oldest snapshots beyond gen.
func (r *Runner) rotate(
	ctx context.Context,
	c *ec2api.Client,
	job Job,
	typ schedule.Type,
	gen int,
	out *Outcome,
	produced Action,
	produce func(context.Context) (string, error),
) error {
	snapshots, err := c.Snapshots(ctx, Filters(typ, job.VolumeID))
	if err != nil {
		return err
	}

	tagCtx := ctx
	if latest, ok := Latest(snapshots); ok && r.now().Sub(latest.StartTime) < r.window {
		out.Action = ActionReused
		out.SnapshotID = latest.ID
	} else {
		out.Action = produced
		if r.dryRun {
			out.SnapshotID = dryRunID
		} else {
			id, err := produce(ctx)
			if err != nil {
				return err
			}
			out.SnapshotID = id
			// An untagged snapshot is never matched for retention again.
			tagCtx = context.WithoutCancel(ctx)
		}
		snapshots = append(snapshots, ec2api.Snapshot{ID: out.SnapshotID, StartTime: r.now()})
	}
	log.Debugf("%s snapshot %s", out.Action, out.SnapshotID)

	if !r.dryRun {
		if err := c.Tag(tagCtx, out.SnapshotID, job.Tags()); err != nil {
			return err
		}
	}

	var errs []error
	for _, old := range Expired(snapshots, gen) {
		if r.dryRun {
			log.Infof("dry-run: would delete snapshot %s", old.ID)
			out.Deleted = append(out.Deleted, old.ID)
			continue
		}
		if err := c.DeleteSnapshot(ctx, old.ID); err != nil {
			if errors.Is(err, ec2api.ErrSnapshotInUse) {
				log.WithError(err).Warnf("snapshot %s is in use, keeping it", old.ID)
			}
			errs = append(errs, err)
			continue
		}
		out.Deleted = append(out.Deleted, old.ID)
	}
	return errors.Join(errs...)
}

// Filters selects the snapshots belonging to one type and volume.
func Filters(typ schedule.Type, volumeID string) []schedule.Filter {
	return []schedule.Filter{
		ec2api.TagFilter(TagType, string(typ)),
		ec2api.TagFilter(TagVolumeID, volumeID),
	}
}

// Latest returns the newest snapshot of an oldest-first list.
func Latest(snapshots []ec2api.Snapshot) (ec2api.Snapshot, bool) {
	if len(snapshots) == 0 {
		return ec2api.Snapshot{}, false
	}
	return snapshots[len(snapshots)-1], true
}

// Expired returns the oldest snapshots of an oldest-first list that exceed
// generation.
func Expired(snapshots []ec2api.Snapshot, generation int) []ec2api.Snapshot {
	n := len(snapshots) - generation
	if n <= 0 {
		return nil
	}
	return snapshots[:n]
}
