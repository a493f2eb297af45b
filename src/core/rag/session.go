package rag

import (
	"context"
	"time"
)

// Turn is one query/answer exchange within a chat session.
type Turn struct {
	SessionID string    `json:"sessionId"`
	TurnID    string    `json:"turnId"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Sources   []Source  `json:"sources,omitempty"`
	Generated bool      `json:"generated"`
	CreatedAt time.Time `json:"createdAt"`
}

// Feedback is a user rating attached to a turn. It is persisted for later
// analysis and has no effect on retrieval or generation.
type Feedback struct {
	SessionID string    `json:"sessionId"`
	TurnID    string    `json:"turnId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TurnStore persists chat turns and feedback.
type TurnStore interface {
	SaveTurn(ctx context.Context, turn Turn) error
	ListTurns(ctx context.Context, sessionID string) ([]Turn, error)
	SaveFeedback(ctx context.Context, fb Feedback) error
}
