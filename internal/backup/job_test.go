// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package backup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshima/ec2-backup/internal/schedule"
)

func TestJob_JSONFieldNames(t *testing.T) {
	job := Job{Type: "DailyBackup", VolumeID: "vol-1", Name: "web:/dev/xvda", Generation: "7"}
	b, err := json.Marshal(job)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Type":"DailyBackup","VolumeId":"vol-1","Name":"web:/dev/xvda","Generation":"7"}`, string(b))
}

func TestGeneration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Generation
	}{
		{`{"Generation":"3"}`, "3"},
		{`{"Generation":3}`, "3"},
		{`{"Generation":null}`, ""},
		{`{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var job Job
			require.NoError(t, json.Unmarshal([]byte(tt.in), &job))
			assert.Equal(t, tt.want, job.Generation)
		})
	}

	var job Job
	assert.Error(t, json.Unmarshal([]byte(`{"Generation":true}`), &job))
}

func TestJob_Validate(t *testing.T) {
	typ, gen, err := Job{Type: "MonthlyBackup", VolumeID: "vol-1", Generation: "12"}.Validate()
	require.NoError(t, err)
	assert.Equal(t, schedule.Monthly, typ)
	assert.Equal(t, 12, gen)

	bad := []Job{
		{Type: "Nope", VolumeID: "vol-1", Generation: "1"},
		{Type: "DailyBackup", VolumeID: " ", Generation: "1"},
		{Type: "DailyBackup", VolumeID: "vol-1", Generation: ""},
		{Type: "DailyBackup", VolumeID: "vol-1", Generation: "0"},
	}
	for _, j := range bad {
		_, _, err := j.Validate()
		assert.ErrorIs(t, err, ErrInvalidJob, j.String())
	}
}

func TestSnapshotIDFromARN(t *testing.T) {
	id, err := SnapshotIDFromARN("arn:aws:ec2::ap-northeast-1:snapshot/snap-0123456789abcdef0")
	require.NoError(t, err)
	assert.Equal(t, "snap-0123456789abcdef0", id)

	id, err = SnapshotIDFromARN("snap-42")
	require.NoError(t, err)
	assert.Equal(t, "snap-42", id)

	for _, bad := range []string{"", "arn:aws:ec2::ap-northeast-1:snapshot", "arn:aws:ec2::x:snapshot/"} {
		_, err := SnapshotIDFromARN(bad)
		assert.ErrorIs(t, err, ErrInvalidARN, bad)
	}
}
