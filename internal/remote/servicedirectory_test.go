// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"testing"

	"github.com/nexuscp/sagactl/internal/sagaerr"
)

func TestStaticDirectory_LookupEndpoint(t *testing.T) {
	dir := NewStaticDirectory(map[string]string{"pantry": "http://pantry.local:8080"})
	endpoint, err := dir.LookupEndpoint(context.Background(), "pantry")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if endpoint != "http://pantry.local:8080" {
		t.Fatalf("unexpected endpoint %q", endpoint)
	}
}

func TestStaticDirectory_UnknownServiceNotFound(t *testing.T) {
	dir := NewStaticDirectory(nil)
	if _, err := dir.LookupEndpoint(context.Background(), "ghost"); sagaerr.KindOf(err) != sagaerr.NotFound {
		t.Fatalf("expected NotFound kind, got %v", err)
	}
}

func TestResolverAdapter_DelegatesToDirectory(t *testing.T) {
	dir := NewStaticDirectory(map[string]string{"pantry": "http://pantry.local:8080"})
	r := NewResolverAdapter(dir)
	endpoint, err := r.Resolve(context.Background(), "pantry", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if endpoint != "http://pantry.local:8080" {
		t.Fatalf("unexpected endpoint %q", endpoint)
	}
}
