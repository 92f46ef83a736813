// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ec2api

import (
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// Tags is a flattened EC2 tag set.
type Tags map[string]string

// Value returns the tag value and whether the key was present.
func (t Tags) Value(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// Keys returns the tag keys in sorted order.
func (t Tags) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Volume is an EBS volume attached to an instance.
type Volume struct {
	DeviceName string
	VolumeID   string
}

// Instance is the part of an EC2 instance the scheduler reads.
type Instance struct {
	ID      string
	Tags    Tags
	Volumes []Volume
}

// Name returns the instance Name tag, or its id when untagged.
func (i Instance) Name() string {
	if n, ok := i.Tags["Name"]; ok && n != "" {
		return n
	}
	return i.ID
}

// Snapshot is the part of an EBS snapshot the backup functions read.
type Snapshot struct {
	ID          string    `json:"id"`
	VolumeID    string    `json:"volume_id"`
	State       string    `json:"state"`
	Progress    string    `json:"progress"`
	StartTime   time.Time `json:"start_time"`
	VolumeSize  int32     `json:"volume_size"`
	Description string    `json:"description"`
	Tags        Tags      `json:"tags"`
}

// SortByStartTime orders snapshots oldest first.
func SortByStartTime(snapshots []Snapshot) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].StartTime.Before(snapshots[j].StartTime)
	})
}

// FromSDKTags flattens SDK tags.
func FromSDKTags(tags []types.Tag) Tags {
	out := make(Tags, len(tags))
	for _, t := range tags {
		out[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return out
}

// ToSDKTags expands tags in key order.
func ToSDKTags(tags Tags) []types.Tag {
	out := make([]types.Tag, 0, len(tags))
	for _, k := range tags.Keys() {
		out = append(out, types.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return out
}

func fromSDKInstance(in types.Instance) Instance {
	inst := Instance{
		ID:   aws.ToString(in.InstanceId),
		Tags: FromSDKTags(in.Tags),
	}
	for _, bdm := range in.BlockDeviceMappings {
		if bdm.Ebs == nil || bdm.Ebs.VolumeId == nil {
			continue
		}
		inst.Volumes = append(inst.Volumes, Volume{
			DeviceName: aws.ToString(bdm.DeviceName),
			VolumeID:   aws.ToString(bdm.Ebs.VolumeId),
		})
	}
	return inst
}

func fromSDKSnapshot(in types.Snapshot) Snapshot {
	return Snapshot{
		ID:          aws.ToString(in.SnapshotId),
		VolumeID:    aws.ToString(in.VolumeId),
		State:       string(in.State),
		Progress:    aws.ToString(in.Progress),
		StartTime:   aws.ToTime(in.StartTime),
		VolumeSize:  aws.ToInt32(in.VolumeSize),
		Description: aws.ToString(in.Description),
		Tags:        FromSDKTags(in.Tags),
	}
}
