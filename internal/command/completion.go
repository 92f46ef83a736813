// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/oshima/ec2-backup/internal/meta"
)

const bashCompletionScript = `# bash completion for ec2-backup
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_ec2backup()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "root local remote plan list history serve lambda completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local aws="--profile -p --region -r --endpoint --rate-limit"
    local out="--attrs -a --color -c --filter -f --output -o --sort -s --titles -t"
    local run="--dry-run -n --journal -j"

    case "$cmd" in
        root)
            local opts="$aws $out $run --at --timezone -z --inline -i --leaf-function --concurrency"
            ;;
        plan)
            local opts="$aws $out --at --timezone -z"
            ;;
        local)
            local opts="$aws $out $run --type --volume --name --generation"
            ;;
        remote)
            local opts="$aws $out $run"
            ;;
        list)
            local opts="$aws $out --type --volume"
            ;;
        history)
            local opts="$out --journal -j --run --volume --limit -L --since --prune"
            ;;
        serve)
            local opts="$aws $run --timezone -z --schedule --listen -l --timeout --concurrency"
            ;;
        lambda)
            local opts="$aws $run --timezone -z --role --leaf-function"
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$out"
            ;;
    esac

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json yaml" -- "$cur") )
            return 0
            ;;
        --type)
            COMPREPLY=( $(compgen -W "DailyBackup WeeklyBackup MonthlyBackup" -- "$cur") )
            return 0
            ;;
        --role)
            COMPREPLY=( $(compgen -W "root local remote" -- "$cur") )
            return 0
            ;;
        --journal|-j)
            COMPREPLY=( $(compgen -f -- "$cur") )
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _ec2backup ec2-backup
`

const zshCompletionScript = `#compdef ec2-backup

_ec2backup() {
  local -a cmds
  cmds=(
    'root:fan out the backups due now'
    'local:snapshot one volume and retire old snapshots'
    'remote:copy one snapshot to its remote region'
    'plan:show the jobs due at a time'
    'list:list managed snapshots'
    'history:show recorded leaf outcomes'
    'serve:run backups on a schedule'
    'lambda:serve a function under the Lambda runtime'
    'completion:generate shell completion script'
  )

  local -a aws out run
  aws=(
    '(-p --profile)'{-p,--profile}'[shared config profile]:profile'
    '(-r --region)'{-r,--region}'[region]:region'
    '--endpoint[base endpoint]:url'
    '--rate-limit[EC2 calls per second]:rate'
  )
  out=(
    '(-a --attrs)'{-a,--attrs}'[columns to show]:attrs'
    '(-c --color)'{-c,--color}'[enable colored text]'
    '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
    '(-o --output)'{-o,--output}'[output format]:format:(text json yaml)'
    '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
    '(-t --titles)'{-t,--titles}'[show titles]'
  )
  run=(
    '(-n --dry-run)'{-n,--dry-run}'[log mutations only]'
    '(-j --journal)'{-j,--journal}'[journal file]:file:_files'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'ec2-backup commands' cmds
    return
  fi

  local types='(DailyBackup WeeklyBackup MonthlyBackup)'
  case $words[2] in
    root)
      _arguments $aws $out $run \
        '--at[schedule time]:time' \
        '(-z --timezone)'{-z,--timezone}'[schedule zone]:zone' \
        '(-i --inline)'{-i,--inline}'[run leaves in-process]' \
        '--leaf-function[leaf function]:name' \
        '--concurrency[in-process leaves]:n'
      ;;
    plan)
      _arguments $aws $out \
        '--at[schedule time]:time' \
        '(-z --timezone)'{-z,--timezone}'[schedule zone]:zone'
      ;;
    local)
      _arguments $aws $out $run \
        "--type[backup type]:type:$types" \
        '--volume[volume id]:volume' \
        '--name[Name tag]:name' \
        '--generation[snapshots to keep]:n'
      ;;
    remote)
      _arguments $aws $out $run '1:snapshot'
      ;;
    list)
      _arguments $aws $out \
        "--type[backup type]:type:$types" \
        '--volume[volume id]:volume'
      ;;
    history)
      _arguments $out \
        '(-j --journal)'{-j,--journal}'[journal file]:file:_files' \
        '--run[run id]:id' \
        '--volume[volume id]:volume' \
        '(-L --limit)'{-L,--limit}'[maximum entries]:n' \
        '--since[age]:duration' \
        '--prune[delete entries older than]:duration'
      ;;
    serve)
      _arguments $aws $run \
        '(-z --timezone)'{-z,--timezone}'[schedule zone]:zone' \
        '--schedule[cron expression]:cron' \
        '(-l --listen)'{-l,--listen}'[listen address]:addr' \
        '--timeout[run timeout]:duration' \
        '--concurrency[in-process leaves]:n'
      ;;
    lambda)
      _arguments $aws $run \
        '(-z --timezone)'{-z,--timezone}'[schedule zone]:zone' \
        '--role[function]:role:(root local remote)' \
        '--leaf-function[leaf function]:name'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
  esac
}

if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _ec2backup ec2-backup
`

// CompletionCommandAction prints the completion script for the shell named
// by the argument or by $SHELL.
func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	w := Writer(cmd)
	shell := cmd.Args().First()
	if shell == "" {
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		}
	}
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		fmt.Fprintln(os.Stderr, "usage: ec2-backup completion [bash|zsh]")
	}
	return nil
}

// CompletionCommandBuilder constructs the "completion" command.
func CompletionCommandBuilder(cmd *cli.Command, meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "ec2-backup completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
