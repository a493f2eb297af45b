package rag_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"nuvaru/src/core/rag"
	"nuvaru/src/storage/memvec"
)

func newTestIngest(t *testing.T, opts ...rag.IngestOption) (rag.IngestService, *fakeRegistry, *fakeObjects, *memvec.Store) {
	t.Helper()

	registry := newFakeRegistry()
	objects := newFakeObjects()
	vectors := memvec.New()
	kbRepo := newFakeKBRepo(&rag.KnowledgeBase{ID: "kb1", OwnerID: "owner1", Name: "test"})

	chunker, err := rag.NewChunker(100, 20)
	if err != nil {
		t.Fatal(err)
	}

	svc := rag.NewIngestService(
		registry,
		kbRepo,
		rag.NewTextExtractor(),
		chunker,
		rag.NewHashEmbeddingProvider(),
		vectors,
		objects,
		opts...,
	)
	return svc, registry, objects, vectors
}

func uploadReq(content string) rag.UploadRequest {
	return rag.UploadRequest{
		OwnerID:         "owner1",
		KnowledgeBaseID: "kb1",
		Filename:        "notes.txt",
		ContentType:     rag.ContentTypeText,
		Content:         []byte(content),
	}
}

func TestUploadProcessesInline(t *testing.T) {
	svc, _, _, vectors := newTestIngest(t)

	doc, err := svc.Upload(context.Background(), uploadReq(strings.Repeat("all work and no play ", 20)))
	if err != nil {
		t.Fatal(err)
	}

	if doc.Status != rag.StatusProcessed {
		t.Fatalf("document status = %s, want processed (reason: %s)", doc.Status, doc.FailReason)
	}
	if doc.ChunkCount < 1 {
		t.Errorf("chunk count = %d, want at least 1", doc.ChunkCount)
	}

	// The chunks must be queryable once the document reports processed.
	embedder := rag.NewHashEmbeddingProvider()
	vec, err := embedder.Embed(context.Background(), "all work and no play")
	if err != nil {
		t.Fatal(err)
	}
	matches, err := vectors.Query(context.Background(), "kb1", vec, 5, rag.QueryFilter{OwnerID: "owner1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) == 0 {
		t.Error("no vectors stored for processed document")
	}
	for _, m := range matches {
		if m.Metadata.DocumentID != doc.ID {
			t.Errorf("match belongs to document %s, want %s", m.Metadata.DocumentID, doc.ID)
		}
	}
}

func TestUploadDuplicateRejectedWithoutForce(t *testing.T) {
	svc, _, _, _ := newTestIngest(t)
	ctx := context.Background()

	first, err := svc.Upload(ctx, uploadReq("identical content"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Upload(ctx, uploadReq("identical content"))
	var dup *rag.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("second upload error = %v, want *DuplicateError", err)
	}
	if dup.Kind != rag.ExactDuplicate {
		t.Errorf("duplicate kind = %s, want %s", dup.Kind, rag.ExactDuplicate)
	}
	if dup.ExistingID != first.ID {
		t.Errorf("duplicate existing id = %s, want %s", dup.ExistingID, first.ID)
	}

	// Same bytes under a different name is a content duplicate.
	renamed := uploadReq("identical content")
	renamed.Filename = "other.txt"
	_, err = svc.Upload(ctx, renamed)
	if !errors.As(err, &dup) {
		t.Fatalf("renamed upload error = %v, want *DuplicateError", err)
	}
	if dup.Kind != rag.ContentDuplicate {
		t.Errorf("duplicate kind = %s, want %s", dup.Kind, rag.ContentDuplicate)
	}
}

func TestUploadDuplicateAcceptedWithForce(t *testing.T) {
	svc, _, _, _ := newTestIngest(t)
	ctx := context.Background()

	if _, err := svc.Upload(ctx, uploadReq("identical content")); err != nil {
		t.Fatal(err)
	}

	forced := uploadReq("identical content")
	forced.Force = true
	doc, err := svc.Upload(ctx, forced)
	if err != nil {
		t.Fatalf("forced upload error = %v", err)
	}
	if doc.Status != rag.StatusProcessed {
		t.Errorf("forced upload status = %s, want processed", doc.Status)
	}
}

func TestUploadUnknownKnowledgeBase(t *testing.T) {
	svc, _, _, _ := newTestIngest(t)

	req := uploadReq("content")
	req.KnowledgeBaseID = "missing"
	_, err := svc.Upload(context.Background(), req)
	if !errors.Is(err, rag.ErrKnowledgeBaseNotFound) {
		t.Errorf("Upload() error = %v, want ErrKnowledgeBaseNotFound", err)
	}
}

func TestUploadIntoForeignKnowledgeBase(t *testing.T) {
	svc, registry, _, _ := newTestIngest(t)

	// kb1 belongs to owner1; another owner must not be able to write into it.
	req := uploadReq("content")
	req.OwnerID = "owner2"
	_, err := svc.Upload(context.Background(), req)
	if !errors.Is(err, rag.ErrKnowledgeBaseNotFound) {
		t.Errorf("Upload() error = %v, want ErrKnowledgeBaseNotFound", err)
	}

	docs, total, err := registry.List(context.Background(), "owner1", "kb1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 || total != 0 {
		t.Errorf("foreign upload left %d documents in kb1", total)
	}
}

func TestUploadCorruptedPDFMarksError(t *testing.T) {
	svc, registry, _, _ := newTestIngest(t)

	req := uploadReq("this is not a pdf")
	req.Filename = "broken.pdf"
	req.ContentType = rag.ContentTypePDF

	doc, err := svc.Upload(context.Background(), req)
	if err != nil {
		t.Fatalf("Upload() error = %v, want error retained on the document instead", err)
	}
	if doc.Status != rag.StatusError {
		t.Fatalf("document status = %s, want error", doc.Status)
	}
	if doc.FailReason == "" {
		t.Error("fail reason not retained")
	}

	stored, err := registry.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != rag.StatusError {
		t.Errorf("stored status = %s, want error", stored.Status)
	}
}

func TestUploadRollsBackWhenStorageFails(t *testing.T) {
	svc, registry, objects, _ := newTestIngest(t)
	objects.putErr = fmt.Errorf("storage offline")

	_, err := svc.Upload(context.Background(), uploadReq("content"))
	if err == nil {
		t.Fatal("Upload() succeeded with failing object store")
	}

	docs, total, err := registry.List(context.Background(), "owner1", "kb1", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 || len(docs) != 0 {
		t.Errorf("registry kept %d documents after rollback", total)
	}
}

func TestProcessTimeoutMarksError(t *testing.T) {
	svc, registry, _, _ := newTestIngest(t, rag.WithProcessTimeout(time.Nanosecond))

	doc, err := svc.Upload(context.Background(), uploadReq("content that will time out"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Status != rag.StatusError {
		t.Fatalf("document status = %s, want error", doc.Status)
	}

	stored, err := registry.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.FailReason == "" {
		t.Error("timeout reason not retained")
	}
}

func TestDeleteRemovesEverything(t *testing.T) {
	svc, registry, objects, vectors := newTestIngest(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, uploadReq(strings.Repeat("searchable text ", 30)))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, "owner1", doc.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := registry.Get(ctx, doc.ID); !errors.Is(err, rag.ErrDocumentNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrDocumentNotFound", err)
	}

	embedder := rag.NewHashEmbeddingProvider()
	vec, _ := embedder.Embed(ctx, "searchable text")
	matches, err := vectors.Query(ctx, "kb1", vec, 5, rag.QueryFilter{OwnerID: "owner1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("%d vectors remain after delete", len(matches))
	}

	if _, err := objects.Get(ctx, rag.ObjectName(doc.ID, doc.Filename)); err == nil {
		t.Error("stored upload remains after delete")
	}
}

func TestDeleteWrongOwner(t *testing.T) {
	svc, _, _, _ := newTestIngest(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, uploadReq("content"))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, "intruder", doc.ID); !errors.Is(err, rag.ErrDocumentNotFound) {
		t.Errorf("Delete() error = %v, want ErrDocumentNotFound", err)
	}
}

func TestReprocessIsIdempotent(t *testing.T) {
	svc, registry, _, vectors := newTestIngest(t)
	ctx := context.Background()

	doc, err := svc.Upload(ctx, uploadReq(strings.Repeat("repeatable content ", 30)))
	if err != nil {
		t.Fatal(err)
	}

	countMatches := func() int {
		embedder := rag.NewHashEmbeddingProvider()
		vec, _ := embedder.Embed(ctx, "repeatable content")
		matches, err := vectors.Query(ctx, "kb1", vec, 100, rag.QueryFilter{OwnerID: "owner1"})
		if err != nil {
			t.Fatal(err)
		}
		return len(matches)
	}

	before := countMatches()

	if err := registry.Reset(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Process(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}

	if after := countMatches(); after != before {
		t.Errorf("reprocessing changed vector count from %d to %d", before, after)
	}
}
