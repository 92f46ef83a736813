// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/apex/log"

	"github.com/oshima/ec2-backup/internal/command"
	"github.com/oshima/ec2-backup/internal/config"
	mylog "github.com/oshima/ec2-backup/internal/log"
	"github.com/oshima/ec2-backup/internal/version"
)

var ctx = context.Background()

func main() {
	os.Exit(realMain(os.Args))
}

func realMain(args []string) int {
	mylog.InitLogger()

	args = defaultCommand(args)
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "No command specified.")
		args = append(args, "--help")
	}

	// Short-circuit --version/-v.
	for _, a := range args {
		if a == "--version" || a == "-v" {
			fmt.Println(version.Version)
			return 0
		}
	}

	app, err := command.InitApp(ctx, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	args = expandSets(args)

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	return 0
}

// defaultCommand runs the lambda command when the Lambda runtime starts the
// binary without arguments. The role comes from EC2BACKUP_ROLE.
func defaultCommand(args []string) []string {
	if len(args) < 2 && os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		return append(args[:len(args):len(args)], "lambda")
	}
	return args
}

// expandSets replaces an @name argument with the flags stored under
// <command>.<name> in the config file. Without an @name argument the
// "defaults" set is used, if present.
func expandSets(args []string) []string {
	if len(args) < 2 || strings.HasPrefix(args[1], "-") {
		return args
	}
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return args
		}
	}

	out := make([]string, 2, len(args))
	copy(out, args[:2])
	set := "defaults"
	rest := make([]string, 0, len(args))
	for _, a := range args[2:] {
		if strings.HasPrefix(a, "@") && len(a) > 1 {
			set = a[1:]
			continue
		}
		rest = append(rest, a)
	}

	setArgs, _ := config.GetStringSlice(args[1] + "." + set)
	for _, arg := range setArgs {
		out = append(out, strings.Fields(arg)...)
	}
	out = append(out, rest...)

	log.Debugf("set=%s, args=%v", set, out)
	return out
}
