package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"nuvaru/src/core/rag"
	"nuvaru/src/storage/memvec"
)

func newTestKBService(t *testing.T) (rag.KnowledgeBaseService, *fakeKBRepo, rag.IngestService) {
	t.Helper()

	registry := newFakeRegistry()
	objects := newFakeObjects()
	vectors := memvec.New()
	kbRepo := newFakeKBRepo()

	chunker, err := rag.NewChunker(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	ingest := rag.NewIngestService(
		registry,
		kbRepo,
		rag.NewTextExtractor(),
		chunker,
		rag.NewHashEmbeddingProvider(),
		vectors,
		objects,
	)
	return rag.NewKnowledgeBaseService(kbRepo, registry, vectors, objects), kbRepo, ingest
}

func TestCreateAndListKnowledgeBases(t *testing.T) {
	svc, _, _ := newTestKBService(t)
	ctx := context.Background()

	kb, err := svc.Create(ctx, "owner1", "research", "papers and notes")
	if err != nil {
		t.Fatal(err)
	}
	if kb.ID == "" || kb.Name != "research" || kb.Description != "papers and notes" {
		t.Errorf("Create() = %+v", kb)
	}

	if _, err := svc.Create(ctx, "owner1", "   ", ""); err == nil {
		t.Error("Create() accepted a blank name")
	}

	kbs, err := svc.List(ctx, "owner1")
	if err != nil {
		t.Fatal(err)
	}
	if len(kbs) != 1 || kbs[0].ID != kb.ID {
		t.Errorf("List() = %+v", kbs)
	}

	other, err := svc.List(ctx, "owner2")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("List() for another owner = %d entries", len(other))
	}
}

func TestKnowledgeBaseStats(t *testing.T) {
	svc, _, ingest := newTestKBService(t)
	ctx := context.Background()

	kb, err := svc.Create(ctx, "owner1", "stats", "")
	if err != nil {
		t.Fatal(err)
	}

	doc, err := ingest.Upload(ctx, rag.UploadRequest{
		OwnerID:         "owner1",
		KnowledgeBaseID: kb.ID,
		Filename:        "long.txt",
		ContentType:     rag.ContentTypeText,
		Content:         []byte(strings.Repeat("statistics need data ", 30)),
	})
	if err != nil {
		t.Fatal(err)
	}

	stats, err := svc.Stats(ctx, "owner1", kb.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.DocumentCount != 1 {
		t.Errorf("document count = %d, want 1", stats.DocumentCount)
	}
	if stats.ChunkCount != int64(doc.ChunkCount) {
		t.Errorf("chunk count = %d, want %d", stats.ChunkCount, doc.ChunkCount)
	}

	if _, err := svc.Stats(ctx, "owner2", kb.ID); !errors.Is(err, rag.ErrKnowledgeBaseNotFound) {
		t.Errorf("Stats() for wrong owner error = %v, want ErrKnowledgeBaseNotFound", err)
	}
}

func TestDeleteKnowledgeBaseRemovesDocuments(t *testing.T) {
	svc, kbRepo, ingest := newTestKBService(t)
	ctx := context.Background()

	kb, err := svc.Create(ctx, "owner1", "doomed", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ingest.Upload(ctx, rag.UploadRequest{
		OwnerID:         "owner1",
		KnowledgeBaseID: kb.ID,
		Filename:        "doc.txt",
		ContentType:     rag.ContentTypeText,
		Content:         []byte("content to be deleted"),
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, "owner1", kb.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := kbRepo.Get(ctx, kb.ID); !errors.Is(err, rag.ErrKnowledgeBaseNotFound) {
		t.Errorf("knowledge base survived deletion: %v", err)
	}
	stats, err := svc.Stats(ctx, "owner1", kb.ID)
	if !errors.Is(err, rag.ErrKnowledgeBaseNotFound) {
		t.Errorf("Stats() after delete = %+v, %v", stats, err)
	}
}

func TestDeleteKnowledgeBaseWrongOwner(t *testing.T) {
	svc, _, _ := newTestKBService(t)
	ctx := context.Background()

	kb, err := svc.Create(ctx, "owner1", "mine", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, "owner2", kb.ID); !errors.Is(err, rag.ErrKnowledgeBaseNotFound) {
		t.Errorf("Delete() for wrong owner error = %v, want ErrKnowledgeBaseNotFound", err)
	}
}
