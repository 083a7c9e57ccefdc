package namespace

import (
	"context"
	"testing"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vectorstore/memory"
)

func TestDerive(t *testing.T) {
	if got := Derive("alice"); got != "user_alice" {
		t.Errorf("Derive: got %q", got)
	}
}

func TestExistsFlipsAfterFirstWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(embedding.NewMockEmbedder(8), 0)
	reg := NewRegistry(store)

	exists, err := reg.Exists(ctx, "alice")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("namespace should not exist before ingestion")
	}

	err = store.Upsert(ctx, Derive("alice"), []*models.DocumentChunk{{Content: "hello"}})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	exists, err = reg.Exists(ctx, "alice")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("namespace should exist after first ingestion")
	}

	exists, _ = reg.Exists(ctx, "bob")
	if exists {
		t.Error("other users' namespaces must stay independent")
	}
}
