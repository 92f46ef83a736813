// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/daemon"
	"github.com/oshima/ec2-backup/internal/fanout"
	"github.com/oshima/ec2-backup/internal/meta"
)

// ServeCommandAction runs the fan-out on a cron schedule until interrupted.
func ServeCommandAction(ctx context.Context, cmd *cli.Command) error {
	loc, err := Location(cmd)
	if err != nil {
		return err
	}
	sess, err := NewSession(ctx, cmd)
	if err != nil {
		return err
	}
	leaf, err := NewLeaf(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer leaf.Close()

	d, err := daemon.New(daemon.Config{
		Schedule:    cmd.String("schedule"),
		Listen:      cmd.String("listen"),
		Concurrency: cmd.Int("concurrency"),
		Timeout:     cmd.Duration("timeout"),
	}, fanout.New(sess.EC2, loc), leaf.Runner, sess.EC2,
		daemon.WithJournal(leaf.Journal),
		daemon.WithMetrics(leaf.Metrics),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

// ServeCommandBuilder constructs the "serve" command.
func ServeCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	src := meta.Config.Source
	return (&CommandBuilder{
		Name:      "serve",
		Usage:     "run backups on a schedule and serve health and metrics",
		UsageText: `ec2-backup serve [--schedule CRON] [--listen ADDR] [options]`,
		Flags: join(
			NewAWSFlags("serve", src),
			NewServeFlags("serve", src),
			NewRunFlags("serve", src),
			[]cli.Flag{
				NewTimezoneFlag("serve", src),
			},
		),
		Action: ServeCommandAction,
		Meta:   meta,
	}).Build()
}
