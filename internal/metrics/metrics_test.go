// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ObserveNodeAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRegistry(reg)

	m.ObserveNodeAttempt("RegionsAlloc", "succeeded")
	m.ObserveNodeAttempt("RegionsAlloc", "succeeded")

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() != "sagactl_engine_node_attempts_total" {
			continue
		}
		for _, m := range f.Metric {
			if labelValue(m, "node") == "RegionsAlloc" && labelValue(m, "outcome") == "succeeded" {
				found = true
				require.Equal(t, float64(2), m.GetCounter().GetValue())
			}
		}
	}
	require.True(t, found)
}

func TestRegistry_NilIsNoOp(t *testing.T) {
	var m *Registry
	require.NotPanics(t, func() {
		m.ObserveNodeAttempt("x", "y")
		m.ObserveSagaOutcome("success")
	})
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.Label {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}
