// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nexuscp/sagactl/internal/config"
	"github.com/nexuscp/sagactl/internal/saga"
	"github.com/nexuscp/sagactl/internal/snapshotsaga"
)

// sagactl is a one-shot process: BuildDAG's *saga.DAG and the minted
// Params struct both live only for the life of one command
// invocation, so a later "status" or "retry" call rebuilds them from
// a JSON sidecar written next to the action log rather than from any
// in-memory state.

func paramsPath(cfg config.Config, sagaID string) string {
	return filepath.Join(cfg.ActionLogDir, sagaID+".params.json")
}

func resultPath(cfg config.Config, sagaID string) string {
	return filepath.Join(cfg.ActionLogDir, sagaID+".result.json")
}

func savePersistedParams(cfg config.Config, sagaID string, params snapshotsaga.Params) error {
	if err := os.MkdirAll(cfg.ActionLogDir, 0o755); err != nil {
		return fmt.Errorf("create action log dir: %w", err)
	}
	raw, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal saga parameters: %w", err)
	}
	return os.WriteFile(paramsPath(cfg, sagaID), raw, 0o600)
}

func loadPersistedParams(cfg config.Config, sagaID string) (snapshotsaga.Params, bool, error) {
	raw, err := os.ReadFile(paramsPath(cfg, sagaID))
	if os.IsNotExist(err) {
		return snapshotsaga.Params{}, false, nil
	}
	if err != nil {
		return snapshotsaga.Params{}, false, fmt.Errorf("read saga parameters: %w", err)
	}
	var params snapshotsaga.Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return snapshotsaga.Params{}, false, fmt.Errorf("unmarshal saga parameters: %w", err)
	}
	return params, true, nil
}

func saveResult(cfg config.Config, sagaID string, result *saga.Result) error {
	if err := os.MkdirAll(cfg.ActionLogDir, 0o755); err != nil {
		return fmt.Errorf("create action log dir: %w", err)
	}
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal saga result: %w", err)
	}
	return os.WriteFile(resultPath(cfg, sagaID), raw, 0o600)
}

func loadResult(cfg config.Config, sagaID string) (*saga.Result, bool, error) {
	raw, err := os.ReadFile(resultPath(cfg, sagaID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read saga result: %w", err)
	}
	var result saga.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, fmt.Errorf("unmarshal saga result: %w", err)
	}
	return &result, true, nil
}
