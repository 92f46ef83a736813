// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	yaml "github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/daemon"
	"github.com/oshima/ec2-backup/internal/handler"
)

// ValueChain builds a flag source chain: the env vars first, then the
// namespaced and global keys of the config file at path.
func ValueChain(ns string, key string, path string, envs ...string) cli.ValueSourceChain {
	var chain []cli.ValueSource
	for _, e := range envs {
		chain = append(chain, cli.EnvVar(e))
	}
	if ns != "" {
		chain = append(chain, yaml.YAML(ns+"."+key, altsrc.StringSourcer(path)))
	}
	chain = append(chain, yaml.YAML(key, altsrc.StringSourcer(path)))
	return cli.NewValueSourceChain(chain...)
}

// NewAWSFlags returns the flags selecting the AWS account, region and
// endpoint, plus the EC2 call rate.
func NewAWSFlags(ns string, path string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "shared config profile. Defaults to the SDK chain",
			Sources: ValueChain(ns, "profile", path, "EC2BACKUP_PROFILE"),
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"r"},
			Usage:   "region holding the instances. Defaults to the SDK chain",
			Sources: ValueChain(ns, "region", path, "EC2BACKUP_REGION"),
		},
		&cli.StringFlag{
			Name:    "endpoint",
			Usage:   "base endpoint for every AWS client, e.g. LocalStack",
			Sources: ValueChain(ns, "endpoint", path, "EC2BACKUP_ENDPOINT"),
		},
		&cli.FloatFlag{
			Name:    "rate-limit",
			Usage:   "EC2 calls per second, 0 for unlimited",
			Sources: ValueChain(ns, "rate-limit", path),
			Value:   10,
		},
	}
}

// NewScheduleFlags returns the flags controlling schedule evaluation.
func NewScheduleFlags(ns string, path string) []cli.Flag {
	return []cli.Flag{
		NewTimezoneFlag(ns, path),
		&cli.StringFlag{
			Name:  "at",
			Usage: "schedule time in UTC, e.g. 2026-01-31T15:00:00Z. Defaults to the current minute",
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator, EventTimeValidator)
			},
		},
	}
}

// NewTimezoneFlag returns the flag naming the location of the schedule tags.
func NewTimezoneFlag(ns string, path string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "timezone",
		Aliases: []string{"z"},
		Usage:   "IANA zone the schedule tags are written in. Defaults to local time",
		Sources: ValueChain(ns, "timezone", path, "EC2BACKUP_TIMEZONE"),
	}
}

// NewRunFlags returns the flags shared by commands that mutate snapshots.
func NewRunFlags(ns string, path string) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Aliases:     []string{"n"},
			Usage:       "log intended mutations without performing them",
			HideDefault: true,
		},
		NewJournalFlag(ns, path),
	}
}

// NewJournalFlag returns the flag naming the run history database.
func NewJournalFlag(ns string, path string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "journal",
		Aliases: []string{"j"},
		Usage:   "SQLite file recording leaf outcomes",
		Sources: ValueChain(ns, "journal", path, "EC2BACKUP_JOURNAL"),
	}
}

// NewConcurrencyFlag returns the flag bounding in-process leaves.
func NewConcurrencyFlag(ns string, path string) *cli.IntFlag {
	return &cli.IntFlag{
		Name:    "concurrency",
		Usage:   "leaves run at once when running in-process",
		Sources: ValueChain(ns, "concurrency", path),
		Value:   daemon.DefaultConcurrency,
		Validator: func(value int) error {
			return FlagValidators(value, PositiveValidator)
		},
	}
}

// NewLeafFunctionFlag returns the flag naming the leaf Lambda function.
func NewLeafFunctionFlag(ns string, path string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "leaf-function",
		Usage:   "Lambda function receiving local backup jobs",
		Sources: ValueChain(ns, "leaf-function", path, "LEAF_FUNCTION"),
	}
}

// NewGlobalFlags returns the output flags of commands that print rows.
func NewGlobalFlags(ns string, path string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "attrs",
			Aliases: []string{"a"},
			Usage:   "comma-separated list of columns to show, hide (!) or transform",
			Sources: ValueChain(ns, "attrs", path),
			Validator: func(value string) error {
				return FlagValidators(value, JammedFlagValidator)
			},
		},
		&cli.BoolWithInverseFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored text output",
			Sources: ValueChain(ns, "color", path),
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "comma-separated list of filters to apply to results",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format",
			Sources: ValueChain(ns, "output", path),
			Value:   "text",
			Validator: func(value string) error {
				return FlagValidators(value, OutputValidator)
			},
		},
		&cli.StringFlag{
			Name:    "sort",
			Aliases: []string{"s"},
			Usage:   "comma-separated list of attributes to sort the results by",
			Sources: ValueChain(ns, "sort", path),
		},
		&cli.BoolWithInverseFlag{
			Name:    "titles",
			Aliases: []string{"t"},
			Usage:   "show titles with text output",
			Sources: ValueChain(ns, "titles", path),
			Value:   true,
		},
	}
}

// NewServeFlags returns the daemon flags.
func NewServeFlags(ns string, path string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "schedule",
			Usage:   "cron expression driving the fan-out",
			Sources: ValueChain(ns, "schedule", path),
			Value:   daemon.DefaultSchedule,
		},
		&cli.StringFlag{
			Name:    "listen",
			Aliases: []string{"l"},
			Usage:   "HTTP listen address",
			Sources: ValueChain(ns, "listen", path, "EC2BACKUP_LISTEN"),
			Value:   daemon.DefaultListen,
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "upper bound for a single run",
			Sources: ValueChain(ns, "timeout", path),
			Value:   daemon.DefaultTimeout,
			Validator: func(value time.Duration) error {
				return FlagValidators(value, PositiveValidator)
			},
		},
		NewConcurrencyFlag(ns, path),
	}
}

// NewRoleFlag returns the Lambda role flag.
func NewRoleFlag(ns string, path string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "role",
		Usage:   "function to serve: root, local or remote",
		Sources: ValueChain(ns, "role", path, "EC2BACKUP_ROLE"),
		Validator: func(value string) error {
			return FlagValidators(value, OneOfValidator(handler.Roles...))
		},
	}
}
