package job

import (
	"context"
	"encoding/json"
	"time"
)

// Topic is the queue all ingestion jobs flow through.
const Topic = "ingest-jobs"

// TaskTypeIngestDocument processes one uploaded document end to end.
const TaskTypeIngestDocument = "ingest_document"

// IngestPayload identifies the document a job should process.
type IngestPayload struct {
	DocumentID string `json:"document_id"`
}

// JobStatus tracks a job record through its lifecycle.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is the durable record of a background task, kept alongside the queue
// message so failed runs stay inspectable.
type Job struct {
	ID        int             `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskType  string          `gorm:"not null" json:"task_type"`
	Payload   json.RawMessage `gorm:"type:jsonb" json:"payload"`
	Status    JobStatus       `gorm:"not null" json:"status"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// JobRepository persists job records.
type JobRepository interface {
	Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error)
	Get(ctx context.Context, id int) (*Job, error)
	UpdateStatus(ctx context.Context, id int, status JobStatus, err *string) error
}
