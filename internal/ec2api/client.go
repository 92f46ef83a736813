// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ec2api

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"golang.org/x/time/rate"

	"github.com/oshima/ec2-backup/internal/schedule"
)

const (
	defaultRatePerSec = 10
	defaultBurst      = 10
)

// Client is a region-bound EC2 client. It is safe for concurrent use.
type Client struct {
	api     API
	region  string
	limiter *rate.Limiter
}

// Option customizes a Client.
type Option func(*Client)

// WithRateLimit bounds mutating calls (create, copy, tag, delete) to rps
// requests per second. A non-positive rps disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New wraps api for region.
func New(api API, region string, opts ...Option) *Client {
	c := &Client{
		api:     api,
		region:  region,
		limiter: rate.NewLimiter(rate.Limit(defaultRatePerSec), defaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Region returns the region the client is bound to.
func (c *Client) Region() string {
	return c.region
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// Instances returns every instance matching filters across all pages.
func (c *Client) Instances(ctx context.Context, filters []schedule.Filter) ([]Instance, error) {
	input := &ec2.DescribeInstancesInput{Filters: toSDKFilters(filters)}

	var instances []Instance
	p := ec2.NewDescribeInstancesPaginator(c.api, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe instances in %s: %w", c.region, classify(err))
		}
		for _, r := range page.Reservations {
			for _, in := range r.Instances {
				instances = append(instances, fromSDKInstance(in))
			}
		}
	}

	log.Debugf("found %d instances in %s", len(instances), c.region)
	return instances, nil
}

// InstanceByVolume returns the instance the volume is attached to.
func (c *Client) InstanceByVolume(ctx context.Context, volumeID string) (Instance, error) {
	instances, err := c.Instances(ctx, []schedule.Filter{
		{Name: "block-device-mapping.volume-id", Values: []string{volumeID}},
	})
	if err != nil {
		return Instance{}, err
	}
	if len(instances) == 0 {
		return Instance{}, fmt.Errorf("%w: %s", ErrInstanceNotFound, volumeID)
	}
	return instances[0], nil
}

// Snapshot returns a single snapshot by id.
func (c *Client) Snapshot(ctx context.Context, snapshotID string) (Snapshot, error) {
	out, err := c.api.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{
		SnapshotIds: []string{snapshotID},
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("describe snapshot %s: %w", snapshotID, classify(err))
	}
	if len(out.Snapshots) == 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)
	}
	return fromSDKSnapshot(out.Snapshots[0]), nil
}

// Snapshots returns the account's own snapshots matching filters, oldest
// first.
func (c *Client) Snapshots(ctx context.Context, filters []schedule.Filter) ([]Snapshot, error) {
	input := &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
		Filters:  toSDKFilters(filters),
	}

	var snapshots []Snapshot
	p := ec2.NewDescribeSnapshotsPaginator(c.api, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describe snapshots in %s: %w", c.region, classify(err))
		}
		for _, s := range page.Snapshots {
			snapshots = append(snapshots, fromSDKSnapshot(s))
		}
	}

	SortByStartTime(snapshots)
	return snapshots, nil
}

// CreateSnapshot starts a snapshot of volumeID and returns its id.
func (c *Client) CreateSnapshot(ctx context.Context, volumeID, description string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	out, err := c.api.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
		VolumeId:    aws.String(volumeID),
		Description: aws.String(description),
	})
	if err != nil {
		return "", fmt.Errorf("create snapshot of %s: %w", volumeID, classify(err))
	}
	return aws.ToString(out.SnapshotId), nil
}

// CopySnapshot copies snapshotID from sourceRegion into the client's region
// and returns the new snapshot id.
func (c *Client) CopySnapshot(ctx context.Context, sourceRegion, snapshotID, description string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	out, err := c.api.CopySnapshot(ctx, &ec2.CopySnapshotInput{
		SourceRegion:     aws.String(sourceRegion),
		SourceSnapshotId: aws.String(snapshotID),
		Description:      aws.String(description),
	})
	if err != nil {
		return "", fmt.Errorf("copy snapshot %s from %s to %s: %w", snapshotID, sourceRegion, c.region, classify(err))
	}
	return aws.ToString(out.SnapshotId), nil
}

// Tag sets tags on a resource, overwriting existing values.
func (c *Client) Tag(ctx context.Context, resourceID string, tags Tags) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.api.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{resourceID},
		Tags:      ToSDKTags(tags),
	})
	if err != nil {
		return fmt.Errorf("tag %s: %w", resourceID, classify(err))
	}
	return nil
}

// DeleteSnapshot deletes a snapshot.
func (c *Client) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.api.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshotID),
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", snapshotID, classify(err))
	}
	return nil
}

func toSDKFilters(filters []schedule.Filter) []types.Filter {
	if len(filters) == 0 {
		return nil
	}
	out := make([]types.Filter, 0, len(filters))
	for _, f := range filters {
		out = append(out, types.Filter{
			Name:   aws.String(f.Name),
			Values: append([]string(nil), f.Values...),
		})
	}
	return out
}

// TagFilter matches resources whose tag key has one of values.
func TagFilter(key string, values ...string) schedule.Filter {
	return schedule.Filter{Name: "tag:" + key, Values: values}
}

// TagKeyFilter matches resources carrying tag key, whatever its value.
func TagKeyFilter(key string) schedule.Filter {
	return schedule.Filter{Name: "tag-key", Values: []string{key}}
}
