// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestRenderMarkdown(t *testing.T) {
	cmd := &cli.Command{
		Name:      "plan",
		Usage:     "show the backups due at a time",
		UsageText: "ec2-backup plan [--at TIME] [options]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output format", Value: "text"},
			&cli.BoolFlag{Name: "dry-run", Usage: "log intended mutations"},
		},
	}

	md := renderMarkdown(cmd)
	assert.Contains(t, md, "EC2-BACKUP-PLAN 1")
	assert.Contains(t, md, "ec2-backup-plan - show the backups due at a time")
	assert.Contains(t, md, "`ec2-backup plan [--at TIME] [options]`")
	assert.Contains(t, md, "**--output, -o**\n: output format (default: \"text\")")
	assert.Contains(t, md, "**--dry-run**\n: log intended mutations\n")

	man := string(md2man.Render([]byte(md)))
	assert.Contains(t, man, ".TH")
	assert.Contains(t, man, "NAME")
}

func TestWriteFileIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.md")

	require.NoError(t, writeFileIfChanged(path, []byte("one\n"), true))
	info, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, writeFileIfChanged(path, []byte("one"), true))
	again, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), again.ModTime())

	require.NoError(t, writeFileIfChanged(path, []byte("two"), true))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}
