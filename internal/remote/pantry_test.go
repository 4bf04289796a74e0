// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexuscp/sagactl/internal/vcr"
)

func TestPantryClient_Attach(t *testing.T) {
	var gotBody attachRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/disks/disk-1/attach" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewPantryClient(srv.URL)
	vol := vcr.NewVolume("vol-1", 4096, nil, nil)
	if err := c.Attach(context.Background(), "disk-1", vol); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if gotBody.VolumeConstructionRequest == nil || gotBody.VolumeConstructionRequest.ID != "vol-1" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
}

func TestPantryClient_Snapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/disks/disk-1/snapshot" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewPantryClient(srv.URL)
	if err := c.Snapshot(context.Background(), "disk-1", "snap-1"); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
}

func TestPantryClient_DetachNotFoundIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewPantryClient(srv.URL)
	if err := c.Detach(context.Background(), "ghost-disk"); err != nil {
		t.Fatalf("expected not-found detach to be treated as success, got %v", err)
	}
}
