// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oshima/ec2-backup/internal/config"
)

func TestExpandSets(t *testing.T) {
	orig := config.Config
	t.Cleanup(func() { config.Config = orig })
	config.Config = config.Type{Data: map[string]interface{}{
		"list": map[string]interface{}{
			"defaults": []interface{}{"-o json"},
			"weekly":   []interface{}{"--type WeeklyBackup", "--sort start_time"},
		},
	}}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "defaults",
			args: []string{"ec2-backup", "list", "--volume", "vol-a"},
			want: []string{"ec2-backup", "list", "-o", "json", "--volume", "vol-a"},
		},
		{
			name: "named set",
			args: []string{"ec2-backup", "list", "@weekly", "-o", "yaml"},
			want: []string{"ec2-backup", "list", "--type", "WeeklyBackup", "--sort", "start_time", "-o", "yaml"},
		},
		{
			name: "unknown set",
			args: []string{"ec2-backup", "list", "@nope"},
			want: []string{"ec2-backup", "list"},
		},
		{
			name: "no sets for command",
			args: []string{"ec2-backup", "plan", "--at", "2026-10-18T03:00:00Z"},
			want: []string{"ec2-backup", "plan", "--at", "2026-10-18T03:00:00Z"},
		},
		{
			name: "help untouched",
			args: []string{"ec2-backup", "list", "--help"},
			want: []string{"ec2-backup", "list", "--help"},
		},
		{
			name: "flag first untouched",
			args: []string{"ec2-backup", "--version"},
			want: []string{"ec2-backup", "--version"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandSets(tt.args))
		})
	}
}

func TestDefaultCommand(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "")
	assert.Equal(t, []string{"ec2-backup"}, defaultCommand([]string{"ec2-backup"}))

	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")
	assert.Equal(t, []string{"/var/task/bootstrap", "lambda"}, defaultCommand([]string{"/var/task/bootstrap"}))
	assert.Equal(t, []string{"ec2-backup", "plan"}, defaultCommand([]string{"ec2-backup", "plan"}))
}

func TestRealMain_LambdaWithoutRole(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "127.0.0.1:9001")
	t.Setenv("EC2BACKUP_ROLE", "")
	t.Setenv("EC2BACKUP_CFG", "")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// Reaching the lambda command fails on the missing role instead of
	// printing help and exiting 0.
	assert.Equal(t, 2, realMain([]string{"/var/task/bootstrap"}))
}
