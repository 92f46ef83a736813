// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestConfig sets EC2BACKUP_CFG to point to a test config file.
// Returns cleanup function that should be deferred.
func setupTestConfig(t *testing.T, testdataFile string) (cleanup func()) {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join("testdata", testdataFile))
	require.NoError(t, err, "failed to get absolute path for test config")

	t.Setenv("EC2BACKUP_CFG", absPath)

	// Reset the global Config to force reload
	Config = Type{}

	return func() {
		Config = Type{}
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		testFile  string
		namespace []string
		checkFunc func(*testing.T, Type)
	}{
		{
			name:     "simple string values",
			testFile: "simple.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source)
				assert.Equal(t, "ap-northeast-1", cfg.Data["region"])
				assert.Equal(t, "backup", cfg.Data["profile"])
			},
		},
		{
			name:      "namespace recorded",
			testFile:  "nested.yaml",
			namespace: []string{"serve"},
			checkFunc: func(t *testing.T, cfg Type) {
				assert.Equal(t, "serve", cfg.Namespace)
				serve, ok := cfg.Data["serve"].(map[string]interface{})
				assert.True(t, ok, "serve should be a map")
				assert.Equal(t, ":9400", serve["listen"])
			},
		},
		{
			name:     "mixed types",
			testFile: "mixed-types.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.Equal(t, 1, cfg.Data["version"])
				assert.Equal(t, true, cfg.Data["enabled"])
				assert.Equal(t, 30.5, cfg.Data["timeout"])
			},
		},
		{
			name:     "empty file",
			testFile: "empty.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source, "should have a source path")
				assert.Empty(t, cfg.Data)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			cfg, err := Load(tt.namespace...)
			require.NoError(t, err)
			tt.checkFunc(t, cfg)
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("EC2BACKUP_CFG", "/nonexistent/path/ec2backup.yaml")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_CfgIsDirectory(t *testing.T) {
	t.Setenv("EC2BACKUP_CFG", "testdata")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "points to a directory")
}

func TestLoad_StandardLocations(t *testing.T) {
	t.Setenv("EC2BACKUP_CFG", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", t.TempDir())
	Config = Type{}

	_, err := Load()
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestGetString(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		namespace    string
		key          string
		defaultValue []string
		want         string
		wantErr      bool
	}{
		{name: "simple string value", testFile: "simple.yaml", key: "region", want: "ap-northeast-1"},
		{name: "nested string value", testFile: "nested.yaml", key: "serve.listen", want: ":9400"},
		{name: "namespaced value wins", testFile: "nested.yaml", namespace: "serve", key: "schedule", want: "*/5 * * * *"},
		{name: "top level without namespace", testFile: "nested.yaml", key: "schedule", want: "* * * * *"},
		{name: "missing key with default", testFile: "simple.yaml", key: "missing", defaultValue: []string{"dflt"}, want: "dflt"},
		{name: "missing key without default", testFile: "simple.yaml", key: "missing", wantErr: true},
		{name: "non-string value", testFile: "mixed-types.yaml", key: "version", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestConfig(t, tt.testFile)
			defer cleanup()

			_, err := Load(tt.namespace)
			require.NoError(t, err)

			got, err := GetString(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetInt(t *testing.T) {
	cleanup := setupTestConfig(t, "nested.yaml")
	defer cleanup()
	_, err := Load("serve")
	require.NoError(t, err)

	got, err := GetInt("concurrency")
	assert.NoError(t, err)
	assert.Equal(t, 8, got)

	got, err = GetInt("missing", 3)
	assert.NoError(t, err)
	assert.Equal(t, 3, got)

	_, err = GetInt("listen")
	assert.Error(t, err)
}

func TestGetStringSlice(t *testing.T) {
	cleanup := setupTestConfig(t, "mixed-types.yaml")
	defer cleanup()
	_, err := Load()
	require.NoError(t, err)

	got, err := GetStringSlice("regions")
	assert.NoError(t, err)
	assert.Equal(t, []string{"us-east-1", "eu-west-1"}, got)

	got, err = GetStringSlice("name")
	assert.NoError(t, err)
	assert.Equal(t, []string{"nightly"}, got)

	_, err = GetStringSlice("enabled")
	assert.Error(t, err)
}
