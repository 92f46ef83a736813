// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/fanout"
	"github.com/oshima/ec2-backup/internal/journal"
	"github.com/oshima/ec2-backup/internal/meta"
	"github.com/oshima/ec2-backup/internal/output"
)

var errNoLeafTarget = errors.New("--leaf-function or --inline is required")

// ReportColumns are the text columns of a fan-out report.
var ReportColumns = []output.Column{
	{Title: "TYPE", Path: "Type"},
	{Title: "VOLUME", Path: "VolumeId"},
	{Title: "NAME", Path: "Name"},
	{Title: "GENERATION", Path: "Generation"},
}

// RootCommandAction runs the root fan-out for --at. Jobs go to the leaf
// Lambda function, or run in-process with --inline.
func RootCommandAction(ctx context.Context, cmd *cli.Command) error {
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

	var d fanout.Dispatcher
	switch {
	case cmd.Bool("inline"):
		leaf, err := NewLeaf(ctx, cmd, false)
		if err != nil {
			return err
		}
		defer leaf.Close()
		ctx = journal.WithRunID(ctx, journal.NewRunID())
		d = fanout.NewInlineDispatcher(leaf.Runner, sess.EC2, cmd.Int("concurrency"))
	case cmd.String("leaf-function") != "":
		d, err = fanout.NewLambdaDispatcher(sess.Lambda, cmd.String("leaf-function"))
		if err != nil {
			return err
		}
	default:
		return errNoLeafTarget
	}

	report, err := fanout.New(sess.EC2, loc).Run(ctx, at, d)
	log.WithFields(log.Fields{
		"at":      report.At,
		"jobs":    len(report.Jobs),
		"skipped": len(report.Skipped),
	}).Info("root run complete")
	if emitErr := Emit(cmd, report.Jobs, ReportColumns); emitErr != nil {
		return emitErr
	}
	if err != nil {
		return fmt.Errorf("root run: %w", err)
	}
	return nil
}

// RootCommandBuilder constructs the "root" command.
func RootCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	src := meta.Config.Source
	return (&CommandBuilder{
		Name:      "root",
		Usage:     "fan out the backups due now",
		UsageText: `ec2-backup root [--at TIME] [--inline | --leaf-function NAME] [options]`,
		Flags: join(
			NewAWSFlags("root", src),
			NewScheduleFlags("root", src),
			NewRunFlags("root", src),
			NewGlobalFlags("root", src),
			[]cli.Flag{
				NewLeafFunctionFlag("root", src),
				NewConcurrencyFlag("root", src),
				&cli.BoolFlag{
					Name:        "inline",
					Aliases:     []string{"i"},
					Usage:       "run local backups in this process instead of invoking Lambda",
					HideDefault: true,
				},
			},
		),
		Action: RootCommandAction,
		Meta:   meta,
	}).Build()
}
