package memvec

import (
	"context"
	"math"
	"sort"
	"sync"

	"nuvaru/src/core/rag"
)

// Store is an in-process rag.VectorStore used for development and tests. It
// performs exact cosine search over every entry in a collection.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	entries []entry          // insertion order, the tie-break order
	index   map[string]int   // ChunkID -> position in entries
}

type entry struct {
	chunkID  string
	vector   []float32
	text     string
	metadata rag.ChunkMetadata
}

func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) EnsureCollection(_ context.Context, knowledgeBaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[knowledgeBaseID]; !ok {
		s.collections[knowledgeBaseID] = &collection{index: make(map[string]int)}
	}
	return nil
}

// Upsert replaces entries in place so a re-written chunk keeps its original
// insertion position.
func (s *Store) Upsert(_ context.Context, knowledgeBaseID string, entries []rag.ChunkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[knowledgeBaseID]
	if !ok {
		col = &collection{index: make(map[string]int)}
		s.collections[knowledgeBaseID] = col
	}
	for _, e := range entries {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		ent := entry{chunkID: e.ChunkID, vector: vec, text: e.Text, metadata: e.Metadata}
		if pos, exists := col.index[e.ChunkID]; exists {
			col.entries[pos] = ent
			continue
		}
		col.index[e.ChunkID] = len(col.entries)
		col.entries = append(col.entries, ent)
	}
	return nil
}

// Query scans the collection in insertion order; the stable sort below then
// keeps that order among equal scores.
func (s *Store) Query(_ context.Context, knowledgeBaseID string, vector []float32, topK int, filter rag.QueryFilter) ([]rag.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[knowledgeBaseID]
	if !ok || topK <= 0 {
		return nil, nil
	}

	var matches []rag.Match
	for _, e := range col.entries {
		if filter.OwnerID != "" && e.metadata.OwnerID != filter.OwnerID {
			continue
		}
		if filter.DocumentID != "" && e.metadata.DocumentID != filter.DocumentID {
			continue
		}
		matches = append(matches, rag.Match{
			ChunkID:  e.chunkID,
			Text:     e.text,
			Score:    cosine(vector, e.vector),
			Metadata: e.metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) DeleteDocument(_ context.Context, knowledgeBaseID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[knowledgeBaseID]
	if !ok {
		return nil
	}
	kept := col.entries[:0]
	for _, e := range col.entries {
		if e.metadata.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	col.entries = kept
	col.index = make(map[string]int, len(kept))
	for i, e := range kept {
		col.index[e.chunkID] = i
	}
	return nil
}

func (s *Store) DeleteCollection(_ context.Context, knowledgeBaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, knowledgeBaseID)
	return nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ rag.VectorStore = (*Store)(nil)
