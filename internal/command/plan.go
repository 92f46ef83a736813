// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/fanout"
	"github.com/oshima/ec2-backup/internal/meta"
)

// PlanCommandAction prints the jobs the root function would dispatch at
// --at without dispatching them.
func PlanCommandAction(ctx context.Context, cmd *cli.Command) error {
	loc, err := Location(cmd)
	if err != nil {
		return err
	}
	at, err := ScheduleTime(cmd, loc)
	if err != nil {
		return err
	}

	sess, err := NewSession(ctx, cmd)
	if err != nil {
		return err
	}

	report, err := fanout.New(sess.EC2, loc).Plan(ctx, at)
	if err != nil {
		return err
	}
	for _, s := range report.Skipped {
		log.Warnf("%s skipped for %s: %s", s.InstanceID, s.Type, s.Reason)
	}
	return Emit(cmd, report.Jobs, ReportColumns)
}

// PlanCommandBuilder constructs the "plan" command.
func PlanCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	src := meta.Config.Source
	return (&CommandBuilder{
		Name:      "plan",
		Usage:     "show the backups due at a time",
		UsageText: `ec2-backup plan [--at TIME] [options]`,
		Flags: join(
			NewAWSFlags("plan", src),
			NewScheduleFlags("plan", src),
			NewGlobalFlags("plan", src),
		),
		Action: PlanCommandAction,
		Meta:   meta,
	}).Build()
}
