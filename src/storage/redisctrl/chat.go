package redisctrl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nuvaru/src/core/rag"
)

const (
	chatKeyPrefix     = "chat:"
	feedbackKeyPrefix = "feedback:"
)

// ChatStore implements rag.TurnStore on Redis. Each session's turns live in
// one list, appended in order, so history reads come back chronologically.
type ChatStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewChatStore creates a store. A zero ttl keeps sessions forever.
func NewChatStore(client *redis.Client, ttl time.Duration) *ChatStore {
	return &ChatStore{client: client, ttl: ttl}
}

func (s *ChatStore) SaveTurn(ctx context.Context, turn rag.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %v", err)
	}

	key := chatKeyPrefix + turn.SessionID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save turn: %v", err)
	}
	return nil
}

func (s *ChatStore) ListTurns(ctx context.Context, sessionID string) ([]rag.Turn, error) {
	entries, err := s.client.LRange(ctx, chatKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %v", err)
	}

	turns := make([]rag.Turn, 0, len(entries))
	for _, entry := range entries {
		var turn rag.Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %v", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func (s *ChatStore) SaveFeedback(ctx context.Context, fb rag.Feedback) error {
	payload, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %v", err)
	}

	key := feedbackKeyPrefix + fb.SessionID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save feedback: %v", err)
	}
	return nil
}

var _ rag.TurnStore = (*ChatStore)(nil)
