package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/shirabe/internal/vector"
)

func TestMockEmbedder_deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, err := e.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := e.Embed(ctx, "the quick brown fox")
	if len(a) != 64 {
		t.Fatalf("len=%d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("component %d differs", i)
		}
	}
	if n := vector.L2Norm(a); n < 0.999 || n > 1.001 {
		t.Errorf("norm=%f, want 1", n)
	}
}

func TestMockEmbedder_sharedWordsScoreHigher(t *testing.T) {
	e := NewMockEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "invoice payment terms")
	near, _ := e.Embed(ctx, "payment terms for the invoice are thirty days")
	far, _ := e.Embed(ctx, "mountain hiking trail map")
	if vector.CosineSimilarity(q, near) <= vector.CosineSimilarity(q, far) {
		t.Error("text sharing words should be more similar than unrelated text")
	}
}

func TestMockEmbedder_emptyText(t *testing.T) {
	e := NewMockEmbedder(8)
	if _, err := e.Embed(context.Background(), "  \n"); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"ok", ""}); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected batch to fail with ErrEmptyText, got %v", err)
	}
}

func TestMockEmbedder_metadata(t *testing.T) {
	e := NewMockEmbedder(0)
	if e.Dimensions() != 384 {
		t.Errorf("Dimensions=%d, want default 384", e.Dimensions())
	}
	if e.Model() != "mock" {
		t.Errorf("Model=%q", e.Model())
	}
}
