// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/fanout"
	"github.com/oshima/ec2-backup/internal/handler"
	"github.com/oshima/ec2-backup/internal/meta"
)

var errNoRole = errors.New("--role or EC2BACKUP_ROLE is required")

// LambdaDeps wires the handler dependencies for role.
func LambdaDeps(ctx context.Context, cmd *cli.Command, role string) (handler.Deps, error) {
	loc, err := Location(cmd)
	if err != nil {
		return handler.Deps{}, err
	}
	sess, err := NewSession(ctx, cmd)
	if err != nil {
		return handler.Deps{}, err
	}
	leaf, err := NewLeaf(ctx, cmd, false)
	if err != nil {
		return handler.Deps{}, err
	}

	deps := handler.Deps{
		Runner:   leaf.Runner,
		EC2:      sess.EC2,
		Regional: sess.Regional,
		Fanout:   fanout.New(sess.EC2, loc),
	}
	if role == handler.RoleRoot {
		d, err := fanout.NewLambdaDispatcher(sess.Lambda, cmd.String("leaf-function"))
		if err != nil {
			return handler.Deps{}, err
		}
		deps.NewDispatcher = func() fanout.Dispatcher { return d }
	}
	return deps, nil
}

// LambdaCommandAction serves one of the three functions under the Lambda
// runtime.
func LambdaCommandAction(ctx context.Context, cmd *cli.Command) error {
	role := cmd.String("role")
	if role == "" {
		return errNoRole
	}
	deps, err := LambdaDeps(ctx, cmd, role)
	if err != nil {
		return err
	}
	return handler.Start(role, deps)
}

// LambdaCommandBuilder constructs the "lambda" command.
func LambdaCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	src := meta.Config.Source
	return (&CommandBuilder{
		Name:      "lambda",
		Usage:     "serve the root, local or remote function under the Lambda runtime",
		UsageText: `ec2-backup lambda --role root|local|remote [options]`,
		Flags: join(
			NewAWSFlags("lambda", src),
			NewRunFlags("lambda", src),
			[]cli.Flag{
				NewRoleFlag("lambda", src),
				NewLeafFunctionFlag("lambda", src),
				NewTimezoneFlag("lambda", src),
			},
		),
		Action: LambdaCommandAction,
		Meta:   meta,
	}).Build()
}
