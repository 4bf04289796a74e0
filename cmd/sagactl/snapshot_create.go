// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscp/sagactl/internal/config"
	"github.com/nexuscp/sagactl/internal/snapshotsaga"
)

func newSnapshotCreateCommand() *cobra.Command {
	var (
		siloID       string
		projectID    string
		diskID       string
		name         string
		sizeBytes    uint64
		blockSize    uint64
		blocksPerExt uint64
		extentCount  uint64
		useThePantry bool
		scopes       []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a point-in-time snapshot of a disk",
		Long:  `sagactl snapshot create --silo <id> --project <id> --disk <id> --name <snapshot-name>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			d, cleanup, err := buildDeps(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			token, err := d.issuer.Issue("sagactl-cli", siloID, projectID, scopes)
			if err != nil {
				return fmt.Errorf("issue capability token: %w", err)
			}

			params := snapshotsaga.Params{
				AuthToken:    token.Raw(),
				SiloID:       siloID,
				ProjectID:    projectID,
				DiskID:       diskID,
				UseThePantry: useThePantry,
				CreateParams: snapshotsaga.CreateParams{
					Name:         name,
					SizeBytes:    sizeBytes,
					BlockSize:    blockSize,
					BlocksPerExt: blocksPerExt,
					ExtentCount:  extentCount,
				},
			}

			dag, paramMap, err := snapshotsaga.BuildDAG(params)
			if err != nil {
				return fmt.Errorf("build snapshot saga dag: %w", err)
			}
			sagaID, err := d.manager.Create(paramMap, dag)
			if err != nil {
				return fmt.Errorf("create saga instance: %w", err)
			}
			if err := savePersistedParams(cfg, sagaID, params); err != nil {
				return err
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

	cmd.Flags().StringVar(&siloID, "silo", "", "silo id owning the disk")
	cmd.Flags().StringVar(&projectID, "project", "", "project id owning the disk")
	cmd.Flags().StringVar(&diskID, "disk", "", "disk id to snapshot")
	cmd.Flags().StringVar(&name, "name", "", "name for the new snapshot")
	cmd.Flags().Uint64Var(&sizeBytes, "size-bytes", 0, "destination volume size in bytes")
	cmd.Flags().Uint64Var(&blockSize, "block-size", 512, "destination volume block size")
	cmd.Flags().Uint64Var(&blocksPerExt, "blocks-per-extent", 100, "destination volume blocks per extent")
	cmd.Flags().Uint64Var(&extentCount, "extent-count", 10, "destination volume extent count")
	cmd.Flags().BoolVar(&useThePantry, "use-pantry", false, "force the pantry path instead of the disk's attached instance")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{"snapshot:create"}, "capability scopes to mint onto the auth token")

	for _, f := range []string{"silo", "project", "disk", "name"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
