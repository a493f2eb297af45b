package rag_test

import (
	"context"
	"fmt"
	"sync"

	"nuvaru/src/core/rag"
)

// fakeRegistry is an in-memory rag.DocumentRegistry with the same duplicate
// and status-transition rules as the postgres implementation.
type fakeRegistry struct {
	mu   sync.Mutex
	docs map[string]*rag.Document
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{docs: make(map[string]*rag.Document)}
}

func (r *fakeRegistry) Register(_ context.Context, doc *rag.Document, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !force {
		for _, existing := range r.docs {
			if existing.OwnerID == doc.OwnerID &&
				existing.KnowledgeBaseID == doc.KnowledgeBaseID &&
				existing.ContentHash == doc.ContentHash {
				kind := rag.ContentDuplicate
				if existing.Filename == doc.Filename {
					kind = rag.ExactDuplicate
				}
				return &rag.DuplicateError{
					Kind:             kind,
					ExistingID:       existing.ID,
					ExistingFilename: existing.Filename,
				}
			}
		}
	}
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *fakeRegistry) Get(_ context.Context, id string) (*rag.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, rag.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeRegistry) List(_ context.Context, ownerID, knowledgeBaseID string, offset, limit int) ([]rag.Document, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []rag.Document
	for _, doc := range r.docs {
		if doc.OwnerID == ownerID && doc.KnowledgeBaseID == knowledgeBaseID {
			all = append(all, *doc)
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *fakeRegistry) transition(id string, from, to rag.DocumentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return rag.ErrDocumentNotFound
	}
	if doc.Status != from {
		return fmt.Errorf("%w: %s -> %s (current %s)", rag.ErrInvalidStatus, from, to, doc.Status)
	}
	doc.Status = to
	return nil
}

func (r *fakeRegistry) MarkProcessing(_ context.Context, id string) error {
	return r.transition(id, rag.StatusPending, rag.StatusProcessing)
}

func (r *fakeRegistry) MarkProcessed(_ context.Context, id string, chunkCount int) error {
	if err := r.transition(id, rag.StatusProcessing, rag.StatusProcessed); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[id].ChunkCount = chunkCount
	r.docs[id].FailReason = ""
	return nil
}

func (r *fakeRegistry) MarkError(_ context.Context, id string, reason string) error {
	if err := r.transition(id, rag.StatusProcessing, rag.StatusError); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[id].FailReason = reason
	return nil
}

func (r *fakeRegistry) Reset(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return rag.ErrDocumentNotFound
	}
	doc.Status = rag.StatusPending
	doc.FailReason = ""
	return nil
}

func (r *fakeRegistry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return rag.ErrDocumentNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *fakeRegistry) CountByKnowledgeBase(_ context.Context, knowledgeBaseID string) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var docs, chunks int64
	for _, doc := range r.docs {
		if doc.KnowledgeBaseID == knowledgeBaseID {
			docs++
			if doc.Status == rag.StatusProcessed {
				chunks += int64(doc.ChunkCount)
			}
		}
	}
	return docs, chunks, nil
}

// fakeKBRepo is an in-memory rag.KnowledgeBaseRepository.
type fakeKBRepo struct {
	mu  sync.Mutex
	kbs map[string]*rag.KnowledgeBase
}

func newFakeKBRepo(kbs ...*rag.KnowledgeBase) *fakeKBRepo {
	repo := &fakeKBRepo{kbs: make(map[string]*rag.KnowledgeBase)}
	for _, kb := range kbs {
		repo.kbs[kb.ID] = kb
	}
	return repo
}

func (r *fakeKBRepo) Create(_ context.Context, kb *rag.KnowledgeBase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kbs[kb.ID] = kb
	return nil
}

func (r *fakeKBRepo) Get(_ context.Context, id string) (*rag.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kb, ok := r.kbs[id]
	if !ok {
		return nil, rag.ErrKnowledgeBaseNotFound
	}
	return kb, nil
}

func (r *fakeKBRepo) List(_ context.Context, ownerID string) ([]rag.KnowledgeBase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []rag.KnowledgeBase
	for _, kb := range r.kbs {
		if kb.OwnerID == ownerID {
			out = append(out, *kb)
		}
	}
	return out, nil
}

func (r *fakeKBRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.kbs[id]; !ok {
		return rag.ErrKnowledgeBaseNotFound
	}
	delete(r.kbs, id)
	return nil
}

// fakeObjects is an in-memory rag.ObjectStore.
type fakeObjects struct {
	mu     sync.Mutex
	data   map[string][]byte
	putErr error
	getErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{data: make(map[string][]byte)}
}

func (o *fakeObjects) Put(_ context.Context, objectName string, content []byte, _ string) error {
	if o.putErr != nil {
		return o.putErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data[objectName] = append([]byte(nil), content...)
	return nil
}

func (o *fakeObjects) Get(_ context.Context, objectName string) ([]byte, error) {
	if o.getErr != nil {
		return nil, o.getErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	content, ok := o.data[objectName]
	if !ok {
		return nil, fmt.Errorf("object %s not found", objectName)
	}
	return content, nil
}

func (o *fakeObjects) Remove(_ context.Context, objectName string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.data, objectName)
	return nil
}

// fakeLLM returns a canned response or error.
type fakeLLM struct {
	response string
	err      error
	prompts  []string
}

func (l *fakeLLM) Generate(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	l.prompts = append(l.prompts, prompt)
	if l.err != nil {
		return "", l.err
	}
	return l.response, nil
}

// memTurnStore is an in-memory rag.TurnStore.
type memTurnStore struct {
	mu       sync.Mutex
	turns    map[string][]rag.Turn
	feedback []rag.Feedback
}

func newMemTurnStore() *memTurnStore {
	return &memTurnStore{turns: make(map[string][]rag.Turn)}
}

func (s *memTurnStore) SaveTurn(_ context.Context, turn rag.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

func (s *memTurnStore) ListTurns(_ context.Context, sessionID string) ([]rag.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]rag.Turn(nil), s.turns[sessionID]...), nil
}

func (s *memTurnStore) SaveFeedback(_ context.Context, fb rag.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feedback = append(s.feedback, fb)
	return nil
}
