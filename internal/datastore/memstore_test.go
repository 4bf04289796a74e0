// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestMemStore_PutGetRoundTrip(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	rec, err := s.Put(ctx, "disk", "d-1", json.RawMessage(`{"state":"detached"}`))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if rec.Generation != 1 {
		t.Fatalf("expected initial generation 1, got %d", rec.Generation)
	}

	got, err := s.Get(ctx, "disk", "d-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != `{"state":"detached"}` {
		t.Fatalf("unexpected data %s", got.Data)
	}
}

func TestMemStore_GetMissingReturnsNotFound(t *testing.T) {
	s := NewMemStore()
	if _, err := s.Get(context.Background(), "disk", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStore_CASUpdateAdvancesGeneration(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	rec, _ := s.Put(ctx, "disk", "d-1", json.RawMessage(`{"state":"detached"}`))

	newGen, err := s.CASUpdate(ctx, "disk", "d-1", rec.Generation, json.RawMessage(`{"state":"attached"}`))
	if err != nil {
		t.Fatalf("cas update: %v", err)
	}
	if newGen != 2 {
		t.Fatalf("expected generation 2, got %d", newGen)
	}

	got, _ := s.Get(ctx, "disk", "d-1")
	if string(got.Data) != `{"state":"attached"}` {
		t.Fatalf("unexpected data after cas: %s", got.Data)
	}
}

func TestMemStore_CASUpdateStaleGenerationRejected(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	rec, _ := s.Put(ctx, "disk", "d-1", json.RawMessage(`{}`))
	if _, err := s.CASUpdate(ctx, "disk", "d-1", rec.Generation+1, json.RawMessage(`{}`)); !errors.Is(err, ErrGenerationMismatch) {
		t.Fatalf("expected ErrGenerationMismatch, got %v", err)
	}
}

func TestMemStore_DeleteIsIdempotent(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	if err := s.Delete(ctx, "disk", "ghost"); err != nil {
		t.Fatalf("deleting absent record should not error: %v", err)
	}
	_, _ = s.Put(ctx, "disk", "d-1", json.RawMessage(`{}`))
	if err := s.Delete(ctx, "disk", "d-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "disk", "d-1"); err != nil {
		t.Fatalf("second delete should still not error: %v", err)
	}
}

func TestAdapter_TranslatesNotFound(t *testing.T) {
	a := NewAdapter(NewMemStore())
	if _, _, err := a.GetResource(context.Background(), "disk", "ghost"); err == nil {
		t.Fatal("expected translated not-found error")
	}
}
