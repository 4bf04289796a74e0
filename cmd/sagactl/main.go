// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Command sagactl is the operator-facing entry point into the saga
// engine: create a snapshot saga, inspect its last known status, and
// retry it after a crash or transient failure.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "sagactl",
		Short: "Operate the control-plane saga engine",
		Long:  "sagactl creates, inspects, and retries control-plane sagas, starting with the flagship disk-snapshot saga.",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus SAGACTL_* env vars)")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create, inspect, and retry disk-snapshot sagas",
	}
	snapshotCmd.AddCommand(newSnapshotCreateCommand())
	snapshotCmd.AddCommand(newSnapshotStatusCommand())
	snapshotCmd.AddCommand(newSnapshotRetryCommand())
	root.AddCommand(snapshotCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
