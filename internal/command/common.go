// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apex/log"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/attrs"
	awsutil "github.com/oshima/ec2-backup/internal/aws"
	"github.com/oshima/ec2-backup/internal/backup"
	"github.com/oshima/ec2-backup/internal/ec2api"
	"github.com/oshima/ec2-backup/internal/fanout"
	"github.com/oshima/ec2-backup/internal/journal"
	"github.com/oshima/ec2-backup/internal/meta"
	"github.com/oshima/ec2-backup/internal/metrics"
	"github.com/oshima/ec2-backup/internal/output"
	"github.com/oshima/ec2-backup/internal/schedule"
)

// GetMeta returns the meta.Meta stored in the command's Metadata. If missing
// or of an unexpected type, it returns the zero value.
func GetMeta(cmd *cli.Command) meta.Meta {
	if cmd == nil || cmd.Metadata == nil {
		return meta.Meta{}
	}
	if m, ok := cmd.Metadata["meta"].(meta.Meta); ok {
		return m
	}
	return meta.Meta{}
}

// Session bundles the AWS clients a command needs.
type Session struct {
	EC2      *ec2api.Client
	Regional func(region string) (*ec2api.Client, error)
	Lambda   fanout.LambdaAPI
}

// NewSession builds the AWS clients from the command's flags. Tests replace
// it to run commands against in-memory fakes.
var NewSession = func(ctx context.Context, cmd *cli.Command) (*Session, error) {
	cfg, err := awsutil.LoadAWSConfig(ctx,
		awsutil.WithProfile(cmd.String("profile")),
		awsutil.WithRegion(cmd.String("region")),
		awsutil.WithEndpoint(cmd.String("endpoint")),
	)
	if err != nil {
		return nil, err
	}

	limit := ec2api.WithRateLimit(cmd.Float("rate-limit"), burst(cmd.Float("rate-limit")))
	client := func(c awsv2.Config) *ec2api.Client {
		return ec2api.New(awsutil.NewEC2(c), c.Region, limit)
	}

	log.WithFields(log.Fields{"region": cfg.Region, "profile": cmd.String("profile")}).Debug("aws session")
	return &Session{
		EC2: client(cfg),
		Regional: func(region string) (*ec2api.Client, error) {
			if region == "" {
				return nil, fmt.Errorf("empty region")
			}
			return client(awsutil.InRegion(cfg, region)), nil
		},
		Lambda: awsutil.NewLambda(cfg),
	}, nil
}

func burst(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}

// Location resolves --timezone.
func Location(cmd *cli.Command) (*time.Location, error) {
	return schedule.LoadLocation(cmd.String("timezone"))
}

// ScheduleTime resolves --at in loc, defaulting to the current minute.
func ScheduleTime(cmd *cli.Command, loc *time.Location) (time.Time, error) {
	if at := cmd.String("at"); at != "" {
		return schedule.ParseEventTime(at, loc)
	}
	return time.Now().In(loc).Truncate(time.Minute), nil
}

// Leaf holds what a command needs to run leaves in-process.
type Leaf struct {
	Runner  *backup.Runner
	Journal *journal.Journal
	Metrics *metrics.Metrics
}

// Close releases the journal.
func (l *Leaf) Close() {
	if l.Journal != nil {
		if err := l.Journal.Close(); err != nil {
			log.WithError(err).Warn("closing journal")
		}
	}
}

// NewLeaf builds a runner honoring --dry-run and --journal. Metrics are
// attached when withMetrics is set.
func NewLeaf(ctx context.Context, cmd *cli.Command, withMetrics bool) (*Leaf, error) {
	leaf := &Leaf{}
	opts := []backup.Option{backup.WithDryRun(cmd.Bool("dry-run"))}

	if path := cmd.String("journal"); path != "" {
		j, err := journal.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		leaf.Journal = j
		opts = append(opts, backup.WithObserver(j))
	}
	if withMetrics {
		leaf.Metrics = metrics.New()
		opts = append(opts, backup.WithObserver(leaf.Metrics))
	}

	leaf.Runner = backup.NewRunner(opts...)
	return leaf, nil
}

// Writer returns where command results go.
func Writer(cmd *cli.Command) io.Writer {
	if cmd != nil && cmd.Root() != nil && cmd.Root().Writer != nil {
		return cmd.Root().Writer
	}
	return os.Stdout
}

// OutputOptions reads the output flags.
func OutputOptions(cmd *cli.Command) output.Options {
	return output.Options{
		Format: cmd.String("output"),
		Filter: cmd.String("filter"),
		Sort:   cmd.String("sort"),
		Titles: cmd.Bool("titles"),
		Color:  cmd.Bool("color"),
	}
}

// Emit writes results with the command's output flags. --attrs adjusts the
// text columns.
func Emit(cmd *cli.Command, data any, cols []output.Column) error {
	cols, err := attrs.Columns(cols, cmd.String("attrs"))
	if err != nil {
		return fmt.Errorf("invalid --attrs: %w", err)
	}
	return output.Emit(Writer(cmd), data, cols, OutputOptions(cmd))
}

// CommandBuilder constructs a cli.Command using a consistent pattern: it
// wires metadata, appends the flag groups and sets up validators.
type CommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
}

// Build returns a configured cli.Command from the builder.
func (b *CommandBuilder) Build() *cli.Command {
	return &cli.Command{
		Name:      b.Name,
		Usage:     b.Usage,
		UsageText: b.UsageText,
		Metadata: map[string]any{
			"meta": b.Meta,
		},
		Flags: b.Flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if m := GetMeta(c); len(m.Args) > 1 {
				log.Debugf("Executing action for %v", m.Args[1:])
			}
			return ctx, nil
		},
		Action: b.Action,
	}
}

// join concatenates flag groups.
func join(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, g := range groups {
		flags = append(flags, g...)
	}
	return flags
}
