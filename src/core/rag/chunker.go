package rag

import (
	"fmt"
	"strings"
)

// Chunking defaults, matching the platform's long-standing configuration.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// emptyTextPlaceholder keeps the "every processed document has at least one
// chunk" invariant when a caller hands the chunker empty text directly.
const emptyTextPlaceholder = "This document produced no extractable text."

// Chunker splits normalized text into overlapping fixed-size passages with
// stable indices. Sizes and offsets are in runes so multi-byte text chunks
// cleanly.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the configuration: a step of size-overlap must stay
// positive or the window would never advance.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunkConfig, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split makes one pass over the text, advancing a window of size runes by
// size-overlap after each chunk. The final chunk may be shorter and is kept.
// Empty text yields exactly one placeholder chunk.
func (c *Chunker) Split(documentID, text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		text = emptyTextPlaceholder
	}

	runes := []rune(text)
	step := c.size - c.overlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Text:       string(runes[start:end]),
			CharStart:  start,
			CharEnd:    end,
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Size returns the configured window width in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured window overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }
