// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package ec2test provides an in-memory implementation of ec2api.API for
// tests. One Fake models one region.
package ec2test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/oshima/ec2-backup/internal/ec2api"
)

// CopiedVolumeID is the volume id EC2 reports for copied snapshots.
const CopiedVolumeID = "vol-ffffffff"

// Copy records a CopySnapshot call.
type Copy struct {
	SourceRegion string
	SourceID     string
	NewID        string
}

// Fake is a goroutine-safe, single-region EC2 stand-in.
type Fake struct {
	mu sync.Mutex

	Now func() time.Time

	instances []types.Instance
	snapshots map[string]*types.Snapshot
	seq       int

	// Recorded calls.
	Created []string
	Copies  []Copy
	Tagged  map[string]ec2api.Tags
	Deleted []string

	// Injected failures, keyed by snapshot id for DeleteErrors.
	DeleteErrors map[string]error
	CreateErr    error
	CopyErr      error
	DescribeErr  error
	InstancesErr error
}

// New returns an empty Fake whose clock is time.Now.
func New() *Fake {
	return &Fake{
		Now:          time.Now,
		snapshots:    map[string]*types.Snapshot{},
		Tagged:       map[string]ec2api.Tags{},
		DeleteErrors: map[string]error{},
	}
}

// APIError builds a smithy error carrying an EC2 error code.
func APIError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code, Fault: smithy.FaultClient}
}

// AddInstance registers an instance with the given tags and device→volume
// attachments.
func (f *Fake) AddInstance(id string, tags map[string]string, devices map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	inst := types.Instance{InstanceId: aws.String(id), Tags: ec2api.ToSDKTags(tags)}
	for _, dev := range ec2api.Tags(devices).Keys() {
		inst.BlockDeviceMappings = append(inst.BlockDeviceMappings, types.InstanceBlockDeviceMapping{
			DeviceName: aws.String(dev),
			Ebs:        &types.EbsInstanceBlockDevice{VolumeId: aws.String(devices[dev])},
		})
	}
	f.instances = append(f.instances, inst)
}

// AddSnapshot registers an existing snapshot.
func (f *Fake) AddSnapshot(id, volumeID string, start time.Time, tags map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshots[id] = &types.Snapshot{
		SnapshotId: aws.String(id),
		VolumeId:   aws.String(volumeID),
		StartTime:  aws.Time(start),
		State:      types.SnapshotStateCompleted,
		Progress:   aws.String("100%"),
		VolumeSize: aws.Int32(8),
		Tags:       ec2api.ToSDKTags(tags),
	}
}

// SnapshotIDs returns the ids currently stored.
func (f *Fake) SnapshotIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make(ec2api.Tags, len(f.snapshots))
	for id := range f.snapshots {
		ids[id] = ""
	}
	return ids.Keys()
}

func (f *Fake) DescribeInstances(
	_ context.Context,
	params *ec2.DescribeInstancesInput,
	_ ...func(*ec2.Options),
) (*ec2.DescribeInstancesOutput, error) {
	if f.InstancesErr != nil {
		return nil, f.InstancesErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out ec2.DescribeInstancesOutput
	for _, inst := range f.instances {
		if matchInstance(inst, params.Filters) {
			out.Reservations = append(out.Reservations, types.Reservation{Instances: []types.Instance{inst}})
		}
	}
	return &out, nil
}

func (f *Fake) DescribeSnapshots(
	_ context.Context,
	params *ec2.DescribeSnapshotsInput,
	_ ...func(*ec2.Options),
) (*ec2.DescribeSnapshotsOutput, error) {
	if f.DescribeErr != nil {
		return nil, f.DescribeErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out ec2.DescribeSnapshotsOutput
	if len(params.SnapshotIds) > 0 {
		for _, id := range params.SnapshotIds {
			s, ok := f.snapshots[id]
			if !ok {
				return nil, APIError("InvalidSnapshot.NotFound")
			}
			out.Snapshots = append(out.Snapshots, *s)
		}
		return &out, nil
	}

	for _, s := range f.snapshots {
		if matchTags(s.Tags, params.Filters) {
			out.Snapshots = append(out.Snapshots, *s)
		}
	}
	return &out, nil
}

func (f *Fake) CreateSnapshot(
	_ context.Context,
	params *ec2.CreateSnapshotInput,
	_ ...func(*ec2.Options),
) (*ec2.CreateSnapshotOutput, error) {
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID()
	f.snapshots[id] = &types.Snapshot{
		SnapshotId:  aws.String(id),
		VolumeId:    params.VolumeId,
		StartTime:   aws.Time(f.Now()),
		State:       types.SnapshotStatePending,
		Progress:    aws.String("0%"),
		VolumeSize:  aws.Int32(8),
		Description: params.Description,
	}
	f.Created = append(f.Created, id)
	return &ec2.CreateSnapshotOutput{SnapshotId: aws.String(id), VolumeId: params.VolumeId}, nil
}

func (f *Fake) CopySnapshot(
	_ context.Context,
	params *ec2.CopySnapshotInput,
	_ ...func(*ec2.Options),
) (*ec2.CopySnapshotOutput, error) {
	if f.CopyErr != nil {
		return nil, f.CopyErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID()
	f.snapshots[id] = &types.Snapshot{
		SnapshotId:  aws.String(id),
		VolumeId:    aws.String(CopiedVolumeID),
		StartTime:   aws.Time(f.Now()),
		State:       types.SnapshotStatePending,
		Progress:    aws.String("0%"),
		VolumeSize:  aws.Int32(8),
		Description: params.Description,
	}
	f.Copies = append(f.Copies, Copy{
		SourceRegion: aws.ToString(params.SourceRegion),
		SourceID:     aws.ToString(params.SourceSnapshotId),
		NewID:        id,
	})
	return &ec2.CopySnapshotOutput{SnapshotId: aws.String(id)}, nil
}

func (f *Fake) CreateTags(
	_ context.Context,
	params *ec2.CreateTagsInput,
	_ ...func(*ec2.Options),
) (*ec2.CreateTagsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range params.Resources {
		s, ok := f.snapshots[id]
		if !ok {
			return nil, APIError("InvalidSnapshot.NotFound")
		}
		merged := ec2api.FromSDKTags(s.Tags)
		for k, v := range ec2api.FromSDKTags(params.Tags) {
			merged[k] = v
		}
		s.Tags = ec2api.ToSDKTags(merged)
		f.Tagged[id] = merged
	}
	return &ec2.CreateTagsOutput{}, nil
}

func (f *Fake) DeleteSnapshot(
	_ context.Context,
	params *ec2.DeleteSnapshotInput,
	_ ...func(*ec2.Options),
) (*ec2.DeleteSnapshotOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.SnapshotId)
	if err, ok := f.DeleteErrors[id]; ok {
		return nil, err
	}
	if _, ok := f.snapshots[id]; !ok {
		return nil, APIError("InvalidSnapshot.NotFound")
	}
	delete(f.snapshots, id)
	f.Deleted = append(f.Deleted, id)
	return &ec2.DeleteSnapshotOutput{}, nil
}

func (f *Fake) nextID() string {
	f.seq++
	return fmt.Sprintf("snap-%08d", f.seq)
}

func matchInstance(inst types.Instance, filters []types.Filter) bool {
	for _, flt := range filters {
		if aws.ToString(flt.Name) != "block-device-mapping.volume-id" {
			continue
		}
		found := false
		for _, bdm := range inst.BlockDeviceMappings {
			if bdm.Ebs != nil && contains(flt.Values, aws.ToString(bdm.Ebs.VolumeId)) {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return matchTags(inst.Tags, filters)
}

// matchTags applies tag:<key> and tag-key filters. Other filter names are
// ignored.
func matchTags(sdkTags []types.Tag, filters []types.Filter) bool {
	tags := ec2api.FromSDKTags(sdkTags)
	for _, flt := range filters {
		name := aws.ToString(flt.Name)
		switch {
		case strings.HasPrefix(name, "tag:"):
			v, ok := tags[strings.TrimPrefix(name, "tag:")]
			if !ok || !contains(flt.Values, v) {
				return false
			}
		case name == "tag-key":
			matched := false
			for _, k := range flt.Values {
				if _, ok := tags[k]; ok {
					matched = true
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, c := range values {
		if c == v {
			return true
		}
	}
	return false
}

var _ ec2api.API = (*Fake)(nil)
