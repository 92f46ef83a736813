// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"golang.org/x/sync/errgroup"

	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/ec2api"
)

// LambdaAPI is the subset of the Lambda client used to invoke leaves.
type LambdaAPI interface {
	Invoke(
		ctx context.Context,
		params *lambda.InvokeInput,
		optFns ...func(*lambda.Options),
	) (*lambda.InvokeOutput, error)
}

// LambdaDispatcher invokes the leaf function asynchronously, one event per
// job.
type LambdaDispatcher struct {
	api      LambdaAPI
	function string
}

// NewLambdaDispatcher returns a dispatcher invoking function.
func NewLambdaDispatcher(api LambdaAPI, function string) (*LambdaDispatcher, error) {
	if function == "" {
		return nil, errors.New("leaf function name is required")
	}
	return &LambdaDispatcher{api: api, function: function}, nil
}

func (d *LambdaDispatcher) Dispatch(ctx context.Context, job backup.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	out, err := d.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(d.function),
		InvocationType: types.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", d.function, err)
	}
	log.WithFields(log.Fields{
		"function": d.function,
		"volume":   job.VolumeID,
		"status":   out.StatusCode,
	}).Debug("leaf invoked")
	return nil
}

// Wait is a no-op; asynchronous invocations are fire and forget.
func (d *LambdaDispatcher) Wait() error { return nil }

// InlineDispatcher runs local backups in-process with bounded concurrency.
// A dispatcher serves a single fan-out; create a new one per run.
type InlineDispatcher struct {
	runner *backup.Runner
	client *ec2api.Client
	g      errgroup.Group

	mu   sync.Mutex
	errs []error
}

// NewInlineDispatcher returns a dispatcher running at most concurrency jobs
// at once.
func NewInlineDispatcher(runner *backup.Runner, client *ec2api.Client, concurrency int) *InlineDispatcher {
	d := &InlineDispatcher{runner: runner, client: client}
	if concurrency < 1 {
		concurrency = 1
	}
	d.g.SetLimit(concurrency)
	return d
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, job backup.Job) error {
	d.g.Go(func() error {
		if _, err := d.runner.Local(ctx, d.client, job); err != nil {
			log.WithError(err).Errorf("local backup failed (%s)", job)
			d.mu.Lock()
			d.errs = append(d.errs, fmt.Errorf("%s: %w", job, err))
			d.mu.Unlock()
		}
		return nil
	})
	return nil
}

func (d *InlineDispatcher) Wait() error {
	_ = d.g.Wait()
	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Join(d.errs...)
}
