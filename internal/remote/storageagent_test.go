// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexuscp/sagactl/internal/sagaerr"
)

func TestStorageAgentClient_RegionCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/regions" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewStorageAgentClient(srv.URL)
	if err := c.RegionCreate(context.Background(), Region{ID: "r1", BlockSize: 4096}); err != nil {
		t.Fatalf("region create: %v", err)
	}
}

func TestStorageAgentClient_RegionDeleteNotFoundIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewStorageAgentClient(srv.URL)
	if err := c.RegionDelete(context.Background(), "ghost"); err != nil {
		t.Fatalf("expected not-found delete to be treated as success, got %v", err)
	}
}

func TestStorageAgentClient_RegionRunSnapshotParsesPort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"port_number": 1234}`))
	}))
	defer srv.Close()

	c := NewStorageAgentClient(srv.URL)
	port, err := c.RegionRunSnapshot(context.Background(), "r1", "snap1")
	if err != nil {
		t.Fatalf("run snapshot: %v", err)
	}
	if port != 1234 {
		t.Fatalf("expected port 1234, got %d", port)
	}
}

func TestStorageAgentClient_RegionGetSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/regions/r1/snapshots/snap1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewStorageAgentClient(srv.URL)
	if err := c.RegionGetSnapshot(context.Background(), "r1", "snap1"); err != nil {
		t.Fatalf("region get snapshot: %v", err)
	}
}

func TestStorageAgentClient_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewStorageAgentClient(srv.URL)
	err := c.RegionCreate(context.Background(), Region{ID: "r1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if sagaerr.KindOf(err) != sagaerr.Transient {
		t.Fatalf("expected Transient kind, got %v", sagaerr.KindOf(err))
	}
}
