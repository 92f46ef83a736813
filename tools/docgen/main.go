// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/command"
)

// Doc generator:
// - Walks the ec2-backup command tree
// - Generates:
//   - docs/commands/<cmd>.md from usage text and flags
//   - docs/man/share/man1/ec2-backup-<cmd>.1 via md2man

func main() {
	var (
		repoRoot           string
		writeOnlyIfChanged bool
	)

	flag.StringVar(&repoRoot, "root", ".", "repo root (default current dir)")
	flag.BoolVar(&writeOnlyIfChanged, "only-if-changed", true, "only write files if content changed")
	flag.Parse()

	commandsDir := filepath.Join(repoRoot, "docs", "commands")
	manOutDir := filepath.Join(repoRoot, "docs", "man", "share", "man1")

	for _, dir := range []string{commandsDir, manOutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatalf("creating output dir: %v", err)
		}
	}

	app, err := command.InitApp(context.Background(), []string{"ec2-backup"})
	if err != nil {
		fatalf("building commands: %v", err)
	}

	var processed int
	for _, cmd := range app.Commands {
		md := renderMarkdown(cmd)
		mdPath := filepath.Join(commandsDir, cmd.Name+".md")
		if err := writeFileIfChanged(mdPath, []byte(md), writeOnlyIfChanged); err != nil {
			fatalf("writing markdown for %s: %v", cmd.Name, err)
		}

		manPath := filepath.Join(manOutDir, fmt.Sprintf("ec2-backup-%s.1", cmd.Name))
		if err := writeFileIfChanged(manPath, md2man.Render([]byte(md)), writeOnlyIfChanged); err != nil {
			fatalf("writing man page for %s: %v", cmd.Name, err)
		}

		processed++
	}

	if processed == 0 {
		fatalf("no commands found")
	}
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func writeFileIfChanged(path string, new []byte, onlyIfChanged bool) error {
	if !onlyIfChanged {
		return os.WriteFile(path, new, 0o644)
	}
	old, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return os.WriteFile(path, new, 0o644)
		}
		return err
	}
	if bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(new)) {
		return nil
	}
	return os.WriteFile(path, new, 0o644)
}

// renderMarkdown writes a man-style markdown page for cmd. The title line
// follows the md2man convention "name 1 ...".
func renderMarkdown(cmd *cli.Command) string {
	var b strings.Builder
	name := "ec2-backup-" + cmd.Name

	fmt.Fprintf(&b, "%s 1 \"\" \"ec2-backup\" \"User Commands\"\n", strings.ToUpper(name))
	b.WriteString(strings.Repeat("=", len(name)+len(" 1 \"\" \"ec2-backup\" \"User Commands\"")) + "\n\n")

	b.WriteString("# NAME\n\n")
	fmt.Fprintf(&b, "%s - %s\n\n", name, cmd.Usage)

	b.WriteString("# SYNOPSIS\n\n")
	for _, ln := range strings.Split(strings.TrimSpace(cmd.UsageText), "\n") {
		fmt.Fprintf(&b, "`%s`\n\n", strings.TrimSpace(ln))
	}

	if len(cmd.Flags) > 0 {
		b.WriteString("# OPTIONS\n\n")
		for _, f := range cmd.Flags {
			b.WriteString(flagEntry(f))
		}
	}

	b.WriteString("# SEE ALSO\n\n")
	b.WriteString("**ec2-backup**(1)\n")
	return b.String()
}

func flagEntry(f cli.Flag) string {
	names := make([]string, 0, len(f.Names()))
	for _, n := range f.Names() {
		if len(n) == 1 {
			names = append(names, "-"+n)
		} else {
			names = append(names, "--"+n)
		}
	}

	var usage, def string
	if df, ok := f.(cli.DocGenerationFlag); ok {
		usage = df.GetUsage()
		if df.TakesValue() {
			def = df.GetValue()
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", strings.Join(names, ", "))
	if usage != "" {
		fmt.Fprintf(&b, ": %s", usage)
		if def != "" && def != `""` {
			fmt.Fprintf(&b, " (default: %s)", def)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}
