// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscp/sagactl/internal/config"
	"github.com/nexuscp/sagactl/internal/saga"
)

func newSnapshotStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <saga-id>",
		Short: "Show the last known status of a snapshot saga",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sagaID := args[0]
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			result, ok, err := loadResult(cfg, sagaID)
			if err != nil {
				return err
			}
			if ok {
				printResult(cmd, sagaID, result)
				return nil
			}

			fileLog, err := saga.OpenFileLog(cfg.ActionLogDir, sagaID)
			if err != nil {
				return fmt.Errorf("open action log for %s: %w", sagaID, err)
			}
			defer fileLog.Close()
			records, err := fileLog.Replay()
			if err != nil {
				return fmt.Errorf("replay action log: %w", err)
			}
			if len(records) == 0 {
				return fmt.Errorf("no such saga %q", sagaID)
			}
			printLogSummary(cmd, sagaID, records)
			return nil
		},
	}
	return cmd
}
