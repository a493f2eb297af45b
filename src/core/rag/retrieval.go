package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"nuvaru/src/log"
)

const (
	// DefaultTopK is the number of chunks fetched from the vector store per
	// query.
	DefaultTopK = 5

	// DefaultContextWindow and DefaultResponseReserve derive the character
	// budget available for assembled context: window minus the space
	// reserved for the model's response.
	DefaultContextWindow   = 4096
	DefaultResponseReserve = 500

	// ExcerptLength caps the per-source excerpt shown alongside an answer.
	ExcerptLength = 200
)

type retrievalService struct {
	embedder EmbeddingProvider
	vectors  VectorStore
	topK     int
	budget   int
}

// RetrievalOption tweaks retrievalService construction.
type RetrievalOption func(*retrievalService)

// WithTopK overrides how many chunks are fetched per query.
func WithTopK(k int) RetrievalOption {
	return func(s *retrievalService) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithContextBudget overrides the assembled-context character budget.
func WithContextBudget(chars int) RetrievalOption {
	return func(s *retrievalService) {
		if chars > 0 {
			s.budget = chars
		}
	}
}

func NewRetrievalService(embedder EmbeddingProvider, vectors VectorStore, opts ...RetrievalOption) RetrievalService {
	s := &retrievalService{
		embedder: embedder,
		vectors:  vectors,
		topK:     DefaultTopK,
		budget:   DefaultContextWindow - DefaultResponseReserve,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Retrieve embeds the query, fetches the top matches scoped to the owner and
// knowledge base, and assembles them into a bounded context string. Chunks
// are taken in score order; one that would overflow the budget is dropped
// whole and assembly moves to the next. Dropped chunks appear in neither the
// chunk list nor the source list: sources attribute only documents that
// contributed to the context.
func (s *retrievalService) Retrieve(ctx context.Context, ownerID, knowledgeBaseID, query string) (*RetrievalResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := s.vectors.Query(ctx, knowledgeBaseID, vector, s.topK, QueryFilter{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}

	result := &RetrievalResult{}
	if len(matches) == 0 {
		return result, nil
	}

	used := 0
	var sb strings.Builder
	for _, m := range matches {
		cost := utf8.RuneCountInString(m.Text)
		if used > 0 {
			cost += 2 // separator
		}
		if used+cost > s.budget {
			continue
		}
		if used > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(m.Text)
		used += cost

		result.Chunks = append(result.Chunks, ScoredChunk{
			DocumentID: m.Metadata.DocumentID,
			Filename:   m.Metadata.Filename,
			ChunkIndex: m.Metadata.ChunkIndex,
			Text:       m.Text,
			Score:      m.Score,
			CharStart:  m.Metadata.CharStart,
			CharEnd:    m.Metadata.CharEnd,
		})
	}
	result.Context = sb.String()
	result.Sources = buildSources(result.Chunks)

	log.Debug("retrieval complete",
		"knowledgeBaseId", knowledgeBaseID,
		"matches", len(matches),
		"contextChars", used)
	return result, nil
}

// buildSources collapses scored chunks to one source per document, keeping
// the best score and excerpting the highest-ranked chunk of each document.
func buildSources(chunks []ScoredChunk) []Source {
	var sources []Source
	seen := make(map[string]int)
	for _, c := range chunks {
		if idx, ok := seen[c.DocumentID]; ok {
			if c.Score > sources[idx].RelevanceScore {
				sources[idx].RelevanceScore = c.Score
			}
			continue
		}
		seen[c.DocumentID] = len(sources)
		sources = append(sources, Source{
			DocumentID:     c.DocumentID,
			Filename:       c.Filename,
			Excerpt:        Excerpt(c.Text),
			RelevanceScore: c.Score,
		})
	}
	return sources
}

// Excerpt truncates text to ExcerptLength runes for display.
func Excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= ExcerptLength {
		return text
	}
	return string(runes[:ExcerptLength]) + "…"
}

var _ RetrievalService = (*retrievalService)(nil)
