// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"sort"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/config"
	"github.com/oshima/ec2-backup/internal/meta"
)

// InitApp loads the config file and assembles the command tree.
func InitApp(ctx context.Context, args []string) (*cli.Command, error) {
	// args[1] is the subcommand and also the namespace of its config keys. It
	// may be -h/--help, so ignore it when it looks like a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	cfg, err := config.Load(ns)
	if err != nil {
		log.WithError(err).Debug("config not loaded")
	}
	meta := meta.Meta{
		Args:    args,
		Config:  cfg,
		Context: ctx,
	}

	app := &cli.Command{
		Name:  "ec2-backup",
		Usage: "tag-driven EC2 volume snapshots",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "ec2-backup version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		RootCommandBuilder(app, meta),
		LocalCommandBuilder(app, meta),
		RemoteCommandBuilder(app, meta),
		PlanCommandBuilder(app, meta),
		ListCommandBuilder(app, meta),
		HistoryCommandBuilder(app, meta),
		ServeCommandBuilder(app, meta),
		LambdaCommandBuilder(app, meta),
		CompletionCommandBuilder(app, meta),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app, nil
}
