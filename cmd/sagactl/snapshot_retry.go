// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscp/sagactl/internal/config"
	"github.com/nexuscp/sagactl/internal/snapshotsaga"
)

func newSnapshotRetryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <saga-id>",
		Short: "Resume a snapshot saga from wherever its action log left off",
		Long: `sagactl snapshot retry <saga-id>

Rebuilds the saga's DAG from its originally-submitted parameters and
resumes execution against the existing action log: every node the log
already shows succeeded is skipped and its recorded outcome republished,
so this is safe to run against a saga that crashed mid-run, got stuck,
or simply never finished within an operator's patience.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sagaID := args[0]
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			params, ok, err := loadPersistedParams(cfg, sagaID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no persisted parameters for saga %q; it may predate this sagactl version or its sidecar file was removed", sagaID)
			}

			d, cleanup, err := buildDeps(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			dag, paramMap, err := snapshotsaga.BuildDAG(params)
			if err != nil {
				return fmt.Errorf("rebuild snapshot saga dag: %w", err)
			}
			if err := d.manager.Resume(sagaID, paramMap, dag); err != nil {
				return fmt.Errorf("resume saga instance: %w", err)
			}

			result, runErr := d.manager.Run(cmd.Context(), sagaID)
			if result != nil {
				if saveErr := saveResult(cfg, sagaID, result); saveErr != nil {
					d.log.Warnf("failed to persist saga result: %v", saveErr)
				}
			}
			printResult(cmd, sagaID, result)
			return runErr
		},
	}
	return cmd
}
