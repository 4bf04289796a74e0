// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nexuscp/sagactl/internal/saga"
)

func printResult(cmd *cobra.Command, sagaID string, result *saga.Result) {
	out := cmd.OutOrStdout()
	if result == nil {
		fmt.Fprintf(out, "saga %s: no result recorded\n", sagaID)
		return
	}
	fmt.Fprintf(out, "saga %s: %s\n", sagaID, result.Status)
	if result.StuckNode != "" {
		fmt.Fprintf(out, "  stuck node:   %s\n", result.StuckNode)
		fmt.Fprintf(out, "  stuck reason: %s\n", result.StuckReason)
	}
	for node, outcome := range result.Outputs {
		fmt.Fprintf(out, "  %s: %s\n", node, string(outcome))
	}
}

// printLogSummary is the fallback status view for a saga that hasn't
// reached a terminal Result yet (the CLI process that ran it may have
// been killed mid-run): the last phase recorded for each node,
// in the order the node first appeared in the log.
func printLogSummary(cmd *cobra.Command, sagaID string, records []saga.Record) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "saga %s: no terminal result recorded yet; last known per-node state:\n", sagaID)

	lastPhase := make(map[string]saga.Phase)
	var order []string
	for _, r := range records {
		if _, seen := lastPhase[r.Node]; !seen {
			order = append(order, r.Node)
		}
		lastPhase[r.Node] = r.Phase
	}
	for _, node := range order {
		fmt.Fprintf(out, "  %-32s %s\n", node, lastPhase[node])
	}
}
