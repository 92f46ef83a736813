// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/tidwall/gjson"

	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/ec2api"
	"github.com/oshima/ec2-backup/internal/fanout"
	"github.com/oshima/ec2-backup/internal/schedule"
)

// Roles a deployed binary can take.
const (
	RoleRoot   = "root"
	RoleLocal  = "local"
	RoleRemote = "remote"
)

// Roles lists the valid roles.
var Roles = []string{RoleRoot, RoleLocal, RoleRemote}

var (
	ErrUnknownRole = errors.New("unknown role")
	ErrNoEventTime = errors.New("event has no time")
	ErrNoResources = errors.New("event has no resources")
)

// Snapshot notification values the remote function acts on.
const (
	eventCreateSnapshot = "createSnapshot"
	resultSucceeded     = "succeeded"
)

// Deps carries what the handlers need. Fields not used by a role may be nil.
type Deps struct {
	Runner        *backup.Runner
	EC2           *ec2api.Client
	Regional      func(region string) (*ec2api.Client, error)
	Fanout        *fanout.Fanout
	NewDispatcher func() fanout.Dispatcher
}

// RootResult summarizes a root invocation.
type RootResult struct {
	At         time.Time      `json:"at"`
	Dispatched map[string]int `json:"dispatched"`
	Skipped    int            `json:"skipped"`
}

// Root handles the scheduled EventBridge event by fanning out the jobs due
// at the event time.
func Root(d Deps) func(context.Context, events.CloudWatchEvent) (RootResult, error) {
	return func(ctx context.Context, ev events.CloudWatchEvent) (RootResult, error) {
		if ev.Time.IsZero() {
			return RootResult{}, ErrNoEventTime
		}
		at := ev.Time.UTC().Format(schedule.EventTimeLayout)
		log.WithField("event", ev.ID).Debugf("root event at %s", at)

		report, err := d.Fanout.Run(ctx, ev.Time, d.NewDispatcher())
		result := RootResult{At: report.At, Dispatched: map[string]int{}, Skipped: len(report.Skipped)}
		for _, typ := range schedule.Types {
			result.Dispatched[string(typ)] = report.Count(typ)
		}
		return result, err
	}
}

// Local handles a job sent by the root function.
func Local(d Deps) func(context.Context, backup.Job) (backup.Outcome, error) {
	return func(ctx context.Context, job backup.Job) (backup.Outcome, error) {
		return d.Runner.Local(ctx, d.EC2, job)
	}
}

// Remote handles an EBS snapshot notification. Notifications other than a
// successful createSnapshot are ignored.
func Remote(d Deps) func(context.Context, events.CloudWatchEvent) (backup.Outcome, error) {
	return func(ctx context.Context, ev events.CloudWatchEvent) (backup.Outcome, error) {
		if len(ev.Detail) > 0 {
			detail := gjson.ParseBytes(ev.Detail)
			event, result := detail.Get("event").String(), detail.Get("result").String()
			if event != eventCreateSnapshot || result != resultSucceeded {
				log.Debugf("ignoring snapshot notification %s/%s", event, result)
				return backup.Outcome{
					Remote: true,
					Action: backup.ActionSkipped,
					Reason: fmt.Sprintf("notification %s/%s", event, result),
				}, nil
			}
		}

		if len(ev.Resources) == 0 {
			return backup.Outcome{}, ErrNoResources
		}
		return d.Runner.Remote(ctx, d.EC2, d.Regional, ev.Resources[0])
	}
}

// For returns the Lambda handler for role.
func For(role string, d Deps) (any, error) {
	switch role {
	case RoleRoot:
		return Root(d), nil
	case RoleLocal:
		return Local(d), nil
	case RoleRemote:
		return Remote(d), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
}

// Start runs the handler for role under the Lambda runtime. It only returns
// on a setup error.
func Start(role string, d Deps) error {
	h, err := For(role, d)
	if err != nil {
		return err
	}
	log.WithField("role", role).Info("starting lambda handler")
	lambda.Start(h)
	return nil
}
