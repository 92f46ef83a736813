// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package attrs

import (
	"embed"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/oshima/ec2-backup/internal/output"
)

//go:embed testdata/*.yaml
var testDataFS embed.FS

// testSetCase represents a single test case for TestAttrList_Set.
type testSetCase struct {
	Name      string `yaml:"name"`
	Initial   []Attr `yaml:"initial"`
	Value     string `yaml:"value"`
	WantAttrs []Attr `yaml:"wantAttrs"`
	WantErr   bool   `yaml:"wantErr"`
}

// testTransformCase represents a single test case for TestAttr_Transform.
type testTransformCase struct {
	Name          string            `yaml:"name"`
	TransformSpec string            `yaml:"transformSpec"`
	Input         string            `yaml:"input"`
	EnvVars       map[string]string `yaml:"envVars"`
	Want          string            `yaml:"want"`
}

// loadTestData loads test data from embedded YAML files.
func loadTestData(t *testing.T, filename string, v any) {
	t.Helper()
	data, err := testDataFS.ReadFile("testdata/" + filename)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, v))
}

func TestAttrList_Set(t *testing.T) {
	var cases []testSetCase
	loadTestData(t, "set.yaml", &cases)

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			list := AttrList(append([]Attr{}, tc.Initial...))
			err := list.Set(tc.Value)
			if tc.WantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if len(tc.WantAttrs) == 0 {
				assert.Empty(t, list)
				return
			}
			assert.Equal(t, tc.WantAttrs, []Attr(list))
		})
	}
}

func TestAttr_Transform(t *testing.T) {
	var cases []testTransformCase
	loadTestData(t, "transform.yaml", &cases)

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			for k, v := range tc.EnvVars {
				t.Setenv(k, v)
			}
			a := Attr{TransformSpec: tc.TransformSpec}
			assert.Equal(t, tc.Want, a.Transform(tc.Input))
		})
	}
}

func TestAttrList_SetGlobalTransformSpec(t *testing.T) {
	list := AttrList{
		{Key: "id", Include: true, OutputKey: "SNAPSHOT"},
		{Key: "state", Include: true, OutputKey: "STATE", TransformSpec: "l"},
	}
	require.NoError(t, list.Set("*::U"))
	list.SetGlobalTransformSpec()

	assert.Equal(t, "U,", list[0].TransformSpec)
	assert.Equal(t, "U,l", list[1].TransformSpec)
	assert.Equal(t, "U", list[2].TransformSpec)
}

func TestAttrList_String(t *testing.T) {
	list := AttrList{
		{Key: "id", OutputKey: "SNAPSHOT"},
		{Key: "tags.Name", OutputKey: "NAME", TransformSpec: "-12"},
	}
	assert.Equal(t, "id:SNAPSHOT:,tags.Name:NAME:-12", list.String())
}

func TestColumns(t *testing.T) {
	base := []output.Column{
		{Title: "SNAPSHOT", Path: "id"},
		{Title: "STATE", Path: "state"},
		{Title: "SIZE", Path: "volume_size", Format: output.GiB},
	}
	row := gjson.Parse(`{"id":"snap-0123456789abcdef0","state":"completed","volume_size":8,"tags":{"Owner":"ops"}}`)

	cols, err := Columns(base, "")
	require.NoError(t, err)
	assert.Len(t, cols, 3)

	cols, err = Columns(base, "!state,id::8,tags.Owner::u")
	require.NoError(t, err)
	require.Len(t, cols, 3)

	assert.Equal(t, "SNAPSHOT", cols[0].Title)
	assert.Equal(t, "snap-012", output.Cell(row, cols[0]))
	assert.Equal(t, "SIZE", cols[1].Title)
	assert.Equal(t, "8.0 GiB", output.Cell(row, cols[1]))
	assert.Equal(t, "OWNER", cols[2].Title)
	assert.Equal(t, "OPS", output.Cell(row, cols[2]))

	_, err = Columns(base, "!")
	assert.Error(t, err)
}
