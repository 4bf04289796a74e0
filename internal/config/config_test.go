// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_NoFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, cfg.SagaDeadline)
	require.Equal(t, "./sagalog", cfg.ActionLogDir)
}

func TestLoad_PartialFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sagactl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datastore_dsn: \"postgres://localhost/saga\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres://localhost/saga", cfg.DatastoreDSN)
	// Untouched defaults survive the merge.
	require.Equal(t, "./sagalog", cfg.ActionLogDir)
	require.Equal(t, 30*time.Minute, cfg.SagaDeadline)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/sagactl.yaml")
	require.Error(t, err)
}
