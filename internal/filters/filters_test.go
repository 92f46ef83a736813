// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestBuildFilters(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		delimiter string
		want      []Filter
	}{
		{name: "empty", spec: ""},
		{
			name: "exact",
			spec: "type=DailyBackup",
			want: []Filter{{Key: "type", Operand: "=", Target: "DailyBackup"}},
		},
		{
			name: "negated prefix",
			spec: "name!^web",
			want: []Filter{{Key: "name", Operand: "^", Target: "web", Negate: true}},
		},
		{
			name: "multiple with spaces",
			spec: "type=WeeklyBackup, size>8",
			want: []Filter{
				{Key: "type", Operand: "=", Target: "WeeklyBackup"},
				{Key: "size", Operand: ">", Target: "8"},
			},
		},
		{
			name: "regex",
			spec: "volume_id/^vol-0",
			want: []Filter{{Key: "volume_id", Operand: "/", Target: "^vol-0"}},
		},
		{
			name: "invalid skipped",
			spec: "type=DailyBackup,garbage,=x",
			want: []Filter{{Key: "type", Operand: "=", Target: "DailyBackup"}},
		},
		{
			name:      "custom delimiter",
			spec:      "type=DailyBackup|name@db",
			delimiter: "|",
			want: []Filter{
				{Key: "type", Operand: "=", Target: "DailyBackup"},
				{Key: "name", Operand: "@", Target: "db"},
			},
		},
		{
			name: "nested key",
			spec: "tags.Name=web:/dev/xvda",
			want: []Filter{{Key: "tags.Name", Operand: "=", Target: "web:/dev/xvda"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.delimiter != "" {
				t.Setenv(DelimEnv, tt.delimiter)
			}
			assert.Equal(t, tt.want, BuildFilters(tt.spec))
		})
	}
}

func TestCheckStringOperand(t *testing.T) {
	tests := []struct {
		value  string
		filter Filter
		want   bool
	}{
		{"DailyBackup", Filter{Operand: "=", Target: "DailyBackup"}, true},
		{"DailyBackup", Filter{Operand: "=", Target: "DailyBackup", Negate: true}, false},
		{"DailyBackup", Filter{Operand: "~", Target: "dailybackup"}, true},
		{"web:/dev/xvda", Filter{Operand: "^", Target: "web"}, true},
		{"web:/dev/xvda", Filter{Operand: "@", Target: "xvd"}, true},
		{"web:/dev/xvda", Filter{Operand: "@", Target: "sda", Negate: true}, true},
		{"b", Filter{Operand: ">", Target: "a"}, true},
		{"b", Filter{Operand: "<", Target: "a"}, false},
		{"vol-0abc", Filter{Operand: "/", Target: "^vol-0[a-f]+$"}, true},
		{"vol-0abc", Filter{Operand: "/", Target: "("}, false},
		{"x", Filter{Operand: "?", Target: "x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, checkStringOperand(tt.value, tt.filter))
		})
	}
}

func TestCheckNumericOperand(t *testing.T) {
	tests := []struct {
		value  float64
		filter Filter
		want   bool
	}{
		{8, Filter{Operand: "=", Target: "8"}, true},
		{8, Filter{Operand: "=", Target: "8", Negate: true}, false},
		{16, Filter{Operand: ">", Target: "8"}, true},
		{4, Filter{Operand: "<", Target: "8"}, true},
		{8.5, Filter{Operand: ">", Target: "8"}, true},
		{8, Filter{Operand: "=", Target: "eight"}, false},
		{128, Filter{Operand: "^", Target: "12"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.filter.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, checkNumericOperand(tt.value, tt.filter))
		})
	}
}

func TestCheckContainsOperand(t *testing.T) {
	assert.True(t, checkContainsOperand([]any{"a", "b"}, Filter{Operand: "@", Target: "b"}))
	assert.False(t, checkContainsOperand([]any{"a", "b"}, Filter{Operand: "@", Target: "c"}))
	assert.True(t, checkContainsOperand([]any{"a", "b"}, Filter{Operand: "@", Target: "c", Negate: true}))
	assert.True(t, checkContainsOperand(map[string]any{"Name": "web"}, Filter{Operand: "@", Target: "Name"}))
	assert.True(t, checkContainsOperand(map[string]any{"Name": "web"}, Filter{Operand: "@", Target: "Type", Negate: true}))
	assert.False(t, checkContainsOperand(42, Filter{Operand: "@", Target: "4"}))
}

const sampleRows = `[
	{"id":"snap-1","type":"DailyBackup","size":8,"completed":true,"tags":{"Name":"web:/dev/xvda"}},
	{"id":"snap-2","type":"WeeklyBackup","size":100,"completed":false,"tags":{"Name":"db:/dev/sda1"}},
	{"id":"snap-3","type":"DailyBackup","size":100,"completed":true,"tags":{}}
]`

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []string
	}{
		{"no filter", "", []string{"snap-1", "snap-2", "snap-3"}},
		{"string", "type=DailyBackup", []string{"snap-1", "snap-3"}},
		{"numeric", "size>50", []string{"snap-2", "snap-3"}},
		{"bool", "completed=false", []string{"snap-2"}},
		{"nested", "tags.Name^db", []string{"snap-2"}},
		{"missing key fails", "tags.Name~WEB:/DEV/XVDA", []string{"snap-1"}},
		{"object contains", "tags@Name", []string{"snap-1", "snap-2"}},
		{"combined", "type=DailyBackup,size=100", []string{"snap-3"}},
		{"unknown key", "owner=me", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range Apply(gjson.Parse(sampleRows), tt.spec) {
				got = append(got, r.Get("id").String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
