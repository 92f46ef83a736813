// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/ec2api"
	"github.com/oshima/ec2-backup/internal/meta"
	"github.com/oshima/ec2-backup/internal/output"
	"github.com/oshima/ec2-backup/internal/schedule"
)

// SnapshotColumns are the text columns of the list command.
var SnapshotColumns = []output.Column{
	{Title: "SNAPSHOT", Path: "id"},
	{Title: "TYPE", Path: "tags.Type"},
	{Title: "VOLUME", Path: "tags.VolumeId"},
	{Title: "NAME", Path: "tags.Name"},
	{Title: "STATE", Path: "state"},
	{Title: "SIZE", Path: "volume_size", Format: output.GiB},
	{Title: "AGE", Path: "start_time", Format: output.Age(time.Now)},
}

// ListCommandAction lists the snapshots this tool manages, optionally
// narrowed to a type or volume.
func ListCommandAction(ctx context.Context, cmd *cli.Command) error {
	sess, err := NewSession(ctx, cmd)
	if err != nil {
		return err
	}

	filters := []schedule.Filter{ec2api.TagKeyFilter(backup.TagType)}
	if t := cmd.String("type"); t != "" {
		typ, err := schedule.ParseType(t)
		if err != nil {
			return err
		}
		filters = append(filters, ec2api.TagFilter(backup.TagType, string(typ)))
	}
	if v := cmd.String("volume"); v != "" {
		filters = append(filters, ec2api.TagFilter(backup.TagVolumeID, v))
	}

	snapshots, err := sess.EC2.Snapshots(ctx, filters)
	if err != nil {
		return err
	}
	if snapshots == nil {
		snapshots = []ec2api.Snapshot{}
	}
	return Emit(cmd, snapshots, SnapshotColumns)
}

// ListCommandBuilder constructs the "list" command.
func ListCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	src := meta.Config.Source
	return (&CommandBuilder{
		Name:      "list",
		Usage:     "list managed snapshots",
		UsageText: `ec2-backup list [--type TYPE] [--volume VOLUME] [options]`,
		Flags: join(
			NewAWSFlags("list", src),
			NewGlobalFlags("list", src),
			[]cli.Flag{
				&cli.StringFlag{
					Name:  "type",
					Usage: "only snapshots of this backup type",
				},
				&cli.StringFlag{
					Name:  "volume",
					Usage: "only snapshots of this volume",
				},
			},
		),
		Action: ListCommandAction,
		Meta:   meta,
	}).Build()
}
