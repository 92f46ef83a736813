// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ec2api

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// API is the subset of the EC2 client used by this module.
type API interface {
	DescribeInstances(
		ctx context.Context,
		params *ec2.DescribeInstancesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeInstancesOutput, error)

	DescribeSnapshots(
		ctx context.Context,
		params *ec2.DescribeSnapshotsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeSnapshotsOutput, error)

	CreateSnapshot(
		ctx context.Context,
		params *ec2.CreateSnapshotInput,
		optFns ...func(*ec2.Options),
	) (*ec2.CreateSnapshotOutput, error)

	CopySnapshot(
		ctx context.Context,
		params *ec2.CopySnapshotInput,
		optFns ...func(*ec2.Options),
	) (*ec2.CopySnapshotOutput, error)

	CreateTags(
		ctx context.Context,
		params *ec2.CreateTagsInput,
		optFns ...func(*ec2.Options),
	) (*ec2.CreateTagsOutput, error)

	DeleteSnapshot(
		ctx context.Context,
		params *ec2.DeleteSnapshotInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DeleteSnapshotOutput, error)
}

var _ API = (*ec2.Client)(nil)
