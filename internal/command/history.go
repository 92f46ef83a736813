// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/journal"
	"github.com/oshima/ec2-backup/internal/meta"
	"github.com/oshima/ec2-backup/internal/output"
)

var errNoJournal = errors.New("--journal is required")

// HistoryColumns are the text columns of the history command.
var HistoryColumns = []output.Column{
	{Title: "STARTED", Path: "started", Format: output.Age(time.Now)},
	{Title: "RUN", Path: "run_id", Format: shortID},
	{Title: "TYPE", Path: "type"},
	{Title: "VOLUME", Path: "volume_id"},
	{Title: "REGION", Path: "region"},
	{Title: "ACTION", Path: "action"},
	{Title: "SNAPSHOT", Path: "snapshot_id"},
	{Title: "DELETED", Path: "deleted", Format: output.Count},
	{Title: "ERROR", Path: "error"},
}

// HistoryCommandAction lists journal entries, or prunes old ones with
// --prune.
func HistoryCommandAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("journal")
	if path == "" {
		return errNoJournal
	}
	j, err := journal.Open(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	if age := cmd.Duration("prune"); age > 0 {
		n, err := j.Prune(ctx, time.Now().Add(-age))
		if err != nil {
			return err
		}
		log.Infof("pruned %d journal entries older than %s", n, age)
		fmt.Fprintf(Writer(cmd), "pruned %d entries\n", n)
		return nil
	}

	q := journal.Query{
		RunID:    cmd.String("run"),
		VolumeID: cmd.String("volume"),
		Limit:    cmd.Int("limit"),
	}
	if since := cmd.Duration("since"); since > 0 {
		q.Since = time.Now().Add(-since)
	}

	entries, err := j.List(ctx, q)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return Emit(cmd, entries, HistoryColumns)
}

// HistoryCommandBuilder constructs the "history" command.
func HistoryCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	src := meta.Config.Source
	return (&CommandBuilder{
		Name:      "history",
		Usage:     "show recorded leaf outcomes",
		UsageText: `ec2-backup history --journal FILE [options]`,
		Flags: join(
			NewGlobalFlags("history", src),
			[]cli.Flag{
				NewJournalFlag("history", src),
				&cli.StringFlag{
					Name:  "run",
					Usage: "only entries of this run id",
				},
				&cli.StringFlag{
					Name:  "volume",
					Usage: "only entries of this volume",
				},
				&cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"L"},
					Usage:   "maximum entries to show",
					Value:   50,
				},
				&cli.DurationFlag{
					Name:  "since",
					Usage: "only entries started within this duration",
				},
				&cli.DurationFlag{
					Name:  "prune",
					Usage: "delete entries older than this duration instead of listing",
				},
			},
		),
		Action: HistoryCommandAction,
		Meta:   meta,
	}).Build()
}

// shortID trims a run id to its first group.
func shortID(v gjson.Result) string {
	s := v.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
