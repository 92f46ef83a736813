// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/meta"
	"github.com/oshima/ec2-backup/internal/output"
	"github.com/oshima/ec2-backup/internal/schedule"
)

// OutcomeColumns are the text columns of a leaf outcome.
var OutcomeColumns = []output.Column{
	{Title: "ACTION", Path: "action"},
	{Title: "REGION", Path: "region"},
	{Title: "SNAPSHOT", Path: "snapshot_id"},
	{Title: "TYPE", Path: "job.Type"},
	{Title: "VOLUME", Path: "job.VolumeId"},
	{Title: "NAME", Path: "job.Name"},
	{Title: "DELETED", Path: "deleted", Format: func(v gjson.Result) string {
		return strconv.Itoa(len(v.Array()))
	}},
	{Title: "REASON", Path: "reason"},
}

// JobFromCommand builds a job from a JSON payload argument or, without one,
// from the job flags.
func JobFromCommand(cmd *cli.Command) (backup.Job, error) {
	var job backup.Job
	if payload := cmd.Args().First(); payload != "" {
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			return job, fmt.Errorf("invalid job payload: %w", err)
		}
		return job, nil
	}

	job = backup.Job{
		Type:       cmd.String("type"),
		VolumeID:   cmd.String("volume"),
		Name:       cmd.String("name"),
		Generation: backup.Generation(cmd.String("generation")),
	}
	return job, nil
}

// LocalCommandAction runs the local leaf for one job.
func LocalCommandAction(ctx context.Context, cmd *cli.Command) error {
	job, err := JobFromCommand(cmd)
	if err != nil {
		return err
	}
	if _, _, err := job.Validate(); err != nil {
		return err
	}

	sess, err := NewSession(ctx, cmd)
	if err != nil {
		return err
	}
	leaf, err := NewLeaf(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer leaf.Close()

	out, err := leaf.Runner.Local(ctx, sess.EC2, job)
	if emitErr := Emit(cmd, []backup.Outcome{out}, OutcomeColumns); emitErr != nil {
		return errors.Join(err, emitErr)
	}
	return err
}

// RemoteCommandAction replicates one snapshot, given by ARN or id, to the
// remote region configured on its instance.
func RemoteCommandAction(ctx context.Context, cmd *cli.Command) error {
	arn := cmd.Args().First()
	if arn == "" {
		return errors.New("snapshot ARN or id is required")
	}

	sess, err := NewSession(ctx, cmd)
	if err != nil {
		return err
	}
	leaf, err := NewLeaf(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer leaf.Close()

	out, err := leaf.Runner.Remote(ctx, sess.EC2, sess.Regional, arn)
	if emitErr := Emit(cmd, []backup.Outcome{out}, OutcomeColumns); emitErr != nil {
		return errors.Join(err, emitErr)
	}
	return err
}

// LocalCommandBuilder constructs the "local" command.
func LocalCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	src := meta.Config.Source
	return (&CommandBuilder{
		Name:  "local",
		Usage: "snapshot one volume and retire old snapshots",
		UsageText: `ec2-backup local [JOB_JSON] [options]
ec2-backup local --type DailyBackup --volume vol-0123 --generation 7 [options]`,
		Flags: join(
			NewAWSFlags("local", src),
			NewRunFlags("local", src),
			NewGlobalFlags("local", src),
			[]cli.Flag{
				&cli.StringFlag{
					Name:  "type",
					Usage: "backup type",
					Value: string(schedule.Daily),
					Validator: func(value string) error {
						return FlagValidators(value, typeValidator)
					},
				},
				&cli.StringFlag{
					Name:  "volume",
					Usage: "EBS volume id",
				},
				&cli.StringFlag{
					Name:  "name",
					Usage: "value of the snapshot Name tag",
				},
				&cli.StringFlag{
					Name:  "generation",
					Usage: "snapshots to keep",
					Validator: func(value string) error {
						return FlagValidators(value, GenerationValidator)
					},
				},
			},
		),
		Action: LocalCommandAction,
		Meta:   meta,
	}).Build()
}

// RemoteCommandBuilder constructs the "remote" command.
func RemoteCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	src := meta.Config.Source
	return (&CommandBuilder{
		Name:      "remote",
		Usage:     "copy one snapshot to its remote region and retire old copies",
		UsageText: `ec2-backup remote SNAPSHOT_ARN|SNAPSHOT_ID [options]`,
		Flags: join(
			NewAWSFlags("remote", src),
			NewRunFlags("remote", src),
			NewGlobalFlags("remote", src),
		),
		Action: RemoteCommandAction,
		Meta:   meta,
	}).Build()
}

func typeValidator(value any) error {
	s, _ := value.(string)
	_, err := schedule.ParseType(s)
	return err
}
