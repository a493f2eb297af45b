package memvec_test

import (
	"context"
	"testing"

	"nuvaru/src/core/rag"
	"nuvaru/src/storage/memvec"
)

func entry(chunkID, docID string, vector []float32) rag.ChunkEntry {
	return rag.ChunkEntry{
		ChunkID: chunkID,
		Vector:  vector,
		Text:    "text of " + chunkID,
		Metadata: rag.ChunkMetadata{
			OwnerID:    "owner1",
			DocumentID: docID,
		},
	}
}

func TestQueryMissingCollection(t *testing.T) {
	store := memvec.New()

	matches, err := store.Query(context.Background(), "nope", []float32{1, 0}, 5, rag.QueryFilter{})
	if err != nil {
		t.Fatalf("Query() error = %v, want empty result", err)
	}
	if len(matches) != 0 {
		t.Errorf("Query() returned %d matches from a missing collection", len(matches))
	}
}

func TestQueryOrdersByScore(t *testing.T) {
	store := memvec.New()
	ctx := context.Background()

	err := store.Upsert(ctx, "kb1", []rag.ChunkEntry{
		entry("far", "doc1", []float32{0, 1}),
		entry("near", "doc1", []float32{1, 0.1}),
		entry("exact", "doc1", []float32{1, 0}),
	})
	if err != nil {
		t.Fatal(err)
	}

	matches, err := store.Query(ctx, "kb1", []float32{1, 0}, 3, rag.QueryFilter{OwnerID: "owner1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Fatalf("Query() returned %d matches, want 3", len(matches))
	}
	want := []string{"exact", "near", "far"}
	for i, w := range want {
		if matches[i].ChunkID != w {
			t.Errorf("match %d = %s, want %s", i, matches[i].ChunkID, w)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestQueryTieBreaksByInsertionOrder(t *testing.T) {
	store := memvec.New()
	ctx := context.Background()

	// Identical vectors give identical scores; insertion order decides.
	vec := []float32{1, 0, 0}
	err := store.Upsert(ctx, "kb1", []rag.ChunkEntry{
		entry("first", "doc1", vec),
		entry("second", "doc2", vec),
		entry("third", "doc3", vec),
	})
	if err != nil {
		t.Fatal(err)
	}

	matches, err := store.Query(ctx, "kb1", vec, 3, rag.QueryFilter{OwnerID: "owner1"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if matches[i].ChunkID != w {
			t.Errorf("match %d = %s, want %s", i, matches[i].ChunkID, w)
		}
	}

	// Re-upserting the first entry must not move it to the back.
	if err := store.Upsert(ctx, "kb1", []rag.ChunkEntry{entry("first", "doc1", vec)}); err != nil {
		t.Fatal(err)
	}
	matches, err = store.Query(ctx, "kb1", vec, 3, rag.QueryFilter{OwnerID: "owner1"})
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].ChunkID != "first" {
		t.Errorf("re-upsert moved first entry to position of %s", matches[0].ChunkID)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := memvec.New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.Upsert(ctx, "kb1", []rag.ChunkEntry{
			entry("only", "doc1", []float32{1, 0}),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	matches, err := store.Query(ctx, "kb1", []float32{1, 0}, 10, rag.QueryFilter{OwnerID: "owner1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("repeated upsert produced %d entries, want 1", len(matches))
	}
}

func TestQueryTopKLimit(t *testing.T) {
	store := memvec.New()
	ctx := context.Background()

	var entries []rag.ChunkEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, entry("chunk"+string(rune('a'+i)), "doc1", []float32{1, float32(i)}))
	}
	if err := store.Upsert(ctx, "kb1", entries); err != nil {
		t.Fatal(err)
	}

	matches, err := store.Query(ctx, "kb1", []float32{1, 0}, 4, rag.QueryFilter{OwnerID: "owner1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 4 {
		t.Errorf("Query() returned %d matches, want 4", len(matches))
	}
}

func TestQueryFilters(t *testing.T) {
	store := memvec.New()
	ctx := context.Background()

	vec := []float32{1, 0}
	other := entry("foreign", "doc9", vec)
	other.Metadata.OwnerID = "owner2"

	err := store.Upsert(ctx, "kb1", []rag.ChunkEntry{
		entry("mine-a", "doc1", vec),
		entry("mine-b", "doc2", vec),
		other,
	})
	if err != nil {
		t.Fatal(err)
	}

	matches, err := store.Query(ctx, "kb1", vec, 10, rag.QueryFilter{OwnerID: "owner1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Errorf("owner filter returned %d matches, want 2", len(matches))
	}

	matches, err = store.Query(ctx, "kb1", vec, 10, rag.QueryFilter{OwnerID: "owner1", DocumentID: "doc2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].ChunkID != "mine-b" {
		t.Errorf("document filter = %+v", matches)
	}
}

func TestDeleteDocument(t *testing.T) {
	store := memvec.New()
	ctx := context.Background()

	vec := []float32{1, 0}
	err := store.Upsert(ctx, "kb1", []rag.ChunkEntry{
		entry("a0", "docA", vec),
		entry("b0", "docB", vec),
		entry("a1", "docA", vec),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteDocument(ctx, "kb1", "docA"); err != nil {
		t.Fatal(err)
	}

	matches, err := store.Query(ctx, "kb1", vec, 10, rag.QueryFilter{OwnerID: "owner1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Metadata.DocumentID != "docB" {
		t.Errorf("after delete, matches = %+v", matches)
	}

	// Deleting from a missing collection is a no-op.
	if err := store.DeleteDocument(ctx, "ghost", "docA"); err != nil {
		t.Errorf("DeleteDocument(missing collection) error = %v", err)
	}
}

func TestDeleteCollection(t *testing.T) {
	store := memvec.New()
	ctx := context.Background()

	vec := []float32{1, 0}
	if err := store.Upsert(ctx, "kb1", []rag.ChunkEntry{entry("a", "doc1", vec)}); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteCollection(ctx, "kb1"); err != nil {
		t.Fatal(err)
	}

	matches, err := store.Query(ctx, "kb1", vec, 10, rag.QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("collection survived deletion with %d entries", len(matches))
	}
}
