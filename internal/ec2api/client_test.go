// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ec2api_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshima/ec2-backup/internal/ec2api"
	"github.com/oshima/ec2-backup/internal/ec2api/ec2test"
	"github.com/oshima/ec2-backup/internal/schedule"
)

var base = time.Date(2026, time.October, 18, 3, 0, 0, 0, time.UTC)

func newClient(f *ec2test.Fake) *ec2api.Client {
	return ec2api.New(f, "ap-northeast-1", ec2api.WithRateLimit(0, 0))
}

func TestInstances_FiltersAndVolumes(t *testing.T) {
	f := ec2test.New()
	f.AddInstance("i-1", map[string]string{"Name": "web", "DailyBackupHour": "3"},
		map[string]string{"/dev/xvda": "vol-a", "/dev/xvdb": "vol-b"})
	f.AddInstance("i-2", map[string]string{"Name": "db", "DailyBackupHour": "4"},
		map[string]string{"/dev/xvda": "vol-c"})

	got, err := newClient(f).Instances(context.Background(), []schedule.Filter{
		ec2api.TagFilter("DailyBackupHour", "3"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "web", got[0].Name())
	assert.Equal(t, []ec2api.Volume{
		{DeviceName: "/dev/xvda", VolumeID: "vol-a"},
		{DeviceName: "/dev/xvdb", VolumeID: "vol-b"},
	}, got[0].Volumes)
}

func TestInstanceByVolume(t *testing.T) {
	f := ec2test.New()
	f.AddInstance("i-1", nil, map[string]string{"/dev/xvda": "vol-a"})
	c := newClient(f)

	inst, err := c.InstanceByVolume(context.Background(), "vol-a")
	require.NoError(t, err)
	assert.Equal(t, "i-1", inst.ID)
	assert.Equal(t, "i-1", inst.Name())

	_, err = c.InstanceByVolume(context.Background(), "vol-z")
	assert.ErrorIs(t, err, ec2api.ErrInstanceNotFound)
}

func TestSnapshots_SortedOldestFirst(t *testing.T) {
	f := ec2test.New()
	tags := map[string]string{"Type": "DailyBackup", "VolumeId": "vol-a"}
	f.AddSnapshot("snap-3", "vol-a", base.Add(2*time.Hour), tags)
	f.AddSnapshot("snap-1", "vol-a", base, tags)
	f.AddSnapshot("snap-2", "vol-a", base.Add(time.Hour), tags)
	f.AddSnapshot("snap-x", "vol-a", base, map[string]string{"Type": "WeeklyBackup", "VolumeId": "vol-a"})

	got, err := newClient(f).Snapshots(context.Background(), []schedule.Filter{
		ec2api.TagFilter("Type", "DailyBackup"),
		ec2api.TagFilter("VolumeId", "vol-a"),
	})
	require.NoError(t, err)

	var ids []string
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"snap-1", "snap-2", "snap-3"}, ids)
}

func TestSnapshot_NotFound(t *testing.T) {
	_, err := newClient(ec2test.New()).Snapshot(context.Background(), "snap-missing")
	assert.ErrorIs(t, err, ec2api.ErrSnapshotNotFound)
}

func TestCreateCopyTagDelete(t *testing.T) {
	f := ec2test.New()
	f.Now = func() time.Time { return base }
	c := newClient(f)
	ctx := context.Background()

	id, err := c.CreateSnapshot(ctx, "vol-a", "nightly")
	require.NoError(t, err)
	assert.Equal(t, []string{id}, f.Created)

	copyID, err := c.CopySnapshot(ctx, "us-east-1", "snap-src", "replica")
	require.NoError(t, err)
	assert.Equal(t, []ec2test.Copy{{SourceRegion: "us-east-1", SourceID: "snap-src", NewID: copyID}}, f.Copies)

	require.NoError(t, c.Tag(ctx, id, ec2api.Tags{"Type": "DailyBackup"}))
	snap, err := c.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "DailyBackup", snap.Tags["Type"])
	assert.Equal(t, base, snap.StartTime)

	require.NoError(t, c.DeleteSnapshot(ctx, id))
	assert.Equal(t, []string{id}, f.Deleted)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"InvalidSnapshot.InUse", ec2api.ErrSnapshotInUse},
		{"InvalidSnapshot.NotFound", ec2api.ErrSnapshotNotFound},
		{"RequestLimitExceeded", ec2api.ErrThrottled},
		{"UnauthorizedOperation", ec2api.ErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			f := ec2test.New()
			f.AddSnapshot("snap-1", "vol-a", base, nil)
			f.DeleteErrors["snap-1"] = ec2test.APIError(tt.code)

			err := newClient(f).DeleteSnapshot(context.Background(), "snap-1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestErrorClassification_Passthrough(t *testing.T) {
	f := ec2test.New()
	boom := errors.New("boom")
	f.CreateErr = boom

	_, err := newClient(f).CreateSnapshot(context.Background(), "vol-a", "")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ec2api.ErrThrottled)
}

func TestRateLimit_ContextCanceled(t *testing.T) {
	c := ec2api.New(ec2test.New(), "ap-northeast-1", ec2api.WithRateLimit(0.001, 1))
	ctx, cancel := context.WithCancel(context.Background())

	// Burst of one is consumed by the first call.
	_, err := c.CreateSnapshot(ctx, "vol-a", "")
	require.NoError(t, err)

	cancel()
	_, err = c.CreateSnapshot(ctx, "vol-a", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTags(t *testing.T) {
	tags := ec2api.Tags{"b": "2", "a": "1"}
	assert.Equal(t, []string{"a", "b"}, tags.Keys())

	v, ok := tags.Value("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	round := ec2api.FromSDKTags(ec2api.ToSDKTags(tags))
	assert.Equal(t, tags, round)
}
