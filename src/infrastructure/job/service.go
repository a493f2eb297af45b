package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"nuvaru/src/core/rag"
)

// Processor runs one document through the ingestion pipeline. It is
// satisfied by rag.IngestService.
type Processor interface {
	Process(ctx context.Context, documentID string) error
}

// JobService enqueues ingestion work onto the message queue and, on the
// worker side, consumes and executes it.
type JobService struct {
	publisher message.Publisher
	repo      JobRepository
	logger    watermill.LoggerAdapter
	processor Processor
}

type JobMessage struct {
	JobID    int             `json:"job_id"`
	TaskType string          `json:"task_type"`
	Payload  json.RawMessage `json:"payload"`
}

func NewJobService(
	publisher message.Publisher,
	repo JobRepository,
	logger watermill.LoggerAdapter,
	processor Processor,
) *JobService {
	return &JobService{
		publisher: publisher,
		repo:      repo,
		logger:    logger,
		processor: processor,
	}
}

// EnqueueIngest records an ingestion job and publishes it. It satisfies
// rag.Enqueuer so the ingest service can hand processing to a worker.
func (s *JobService) EnqueueIngest(ctx context.Context, documentID string) error {
	payload, err := json.Marshal(IngestPayload{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("failed to marshal ingest payload: %w", err)
	}
	_, err = s.EnqueueJob(ctx, TaskTypeIngestDocument, payload)
	return err
}

// EnqueueJob creates a new job record and publishes it to the queue.
func (s *JobService) EnqueueJob(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	job, err := s.repo.Create(ctx, taskType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	jobMsg := JobMessage{
		JobID:    job.ID,
		TaskType: job.TaskType,
		Payload:  job.Payload,
	}

	msgPayload, err := json.Marshal(jobMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)
	if err := s.publisher.Publish(Topic, msg); err != nil {
		return nil, fmt.Errorf("failed to publish job message: %w", err)
	}

	return job, nil
}

// ProcessJobMessage consumes one queue message: it flips the job record to
// running, executes the task, and records the outcome.
func (s *JobService) ProcessJobMessage(msg *message.Message) error {
	var jobMsg JobMessage
	if err := json.Unmarshal(msg.Payload, &jobMsg); err != nil {
		return fmt.Errorf("failed to unmarshal job message: %w", err)
	}

	ctx := msg.Context()

	job, err := s.repo.Get(ctx, jobMsg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job not found: %d", jobMsg.JobID)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, JobStatusRunning, nil); err != nil {
		return fmt.Errorf("failed to update job status to running: %w", err)
	}

	if err := s.processJob(ctx, job); err != nil {
		errStr := err.Error()
		if updateErr := s.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, &errStr); updateErr != nil {
			s.logger.Error("Failed to update job status to failed", updateErr, watermill.LogFields{
				"job_id": job.ID,
			})
		}
		return fmt.Errorf("failed to process job: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, JobStatusCompleted, nil); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	return nil
}

func (s *JobService) processJob(ctx context.Context, job *Job) error {
	switch job.TaskType {
	case TaskTypeIngestDocument:
		var payload IngestPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal ingest payload: %w", err)
		}
		s.logger.Info("Processing document", watermill.LogFields{
			"job_id":      job.ID,
			"document_id": payload.DocumentID,
		})
		return s.processor.Process(ctx, payload.DocumentID)
	default:
		return fmt.Errorf("unknown task type: %s", job.TaskType)
	}
}

var _ rag.Enqueuer = (*JobService)(nil)
