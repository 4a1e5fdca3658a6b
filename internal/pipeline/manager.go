package pipeline

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"go-ingest-pipeline/internal/model"
	"go-ingest-pipeline/internal/queue"
	"go-ingest-pipeline/internal/store"
)

// DefaultMaxPageSize caps result queries when no cap is configured.
const DefaultMaxPageSize = 500

// Manager validates submissions, persists job records, enqueues work
// and serves status/result queries to the API layer. It never blocks
// on fetch or transform work.
type Manager struct {
	store       *store.Store
	queue       queue.Queue
	maxPageSize int
}

// NewManager wires a manager over the given store and work queue.
func NewManager(st *store.Store, q queue.Queue, maxPageSize int) *Manager {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return &Manager{store: st, queue: q, maxPageSize: maxPageSize}
}

// Submit validates the request, persists a pending job, enqueues it
// and returns the job id immediately. A *model.ValidationError means
// no job was created and nothing was enqueued.
func (m *Manager) Submit(sources []model.SourceSpec, rules []model.TransformationRule) (string, error) {
	if err := validateSubmission(sources, rules); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	job := &model.IngestionJob{
		ID:        uuid.New().String(),
		Status:    model.StatusPending,
		Sources:   sources,
		Rules:     rules,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.store.SaveJob(job); err != nil {
		return "", fmt.Errorf("save job: %w", err)
	}

	if err := m.queue.Enqueue(job.ID); err != nil {
		// the job exists but will never run; fail it so pollers are
		// not left watching a forever-pending id
		if _, claimErr := m.store.ClaimJob(job.ID); claimErr != nil {
			log.Printf("❌ job %s: claim after enqueue error: %v", job.ID, claimErr)
		} else if _, finErr := m.store.FinishJob(job.ID, model.StatusFailed, 0, fmt.Sprintf("enqueue: %v", err)); finErr != nil {
			log.Printf("❌ job %s: mark failed after enqueue error: %v", job.ID, finErr)
		}
		return "", fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	log.Printf("📥 job %s submitted (%d sources, %d rules)", job.ID, len(sources), len(rules))
	return job.ID, nil
}

// GetStatus returns the current job snapshot, or
// model.ErrJobNotFound for unknown ids.
func (m *Manager) GetStatus(jobID string) (*model.IngestionJob, error) {
	return m.store.GetJob(jobID)
}

// ListJobs returns all jobs, newest first.
func (m *Manager) ListJobs() ([]*model.IngestionJob, error) {
	return m.store.ListJobs()
}

// QueryResults returns processed records newest first, optionally
// filtered by category. The limit is clamped to the configured page
// cap so one query can never scan unbounded.
func (m *Manager) QueryResults(category string, limit, offset int) ([]*model.ProcessedRecord, error) {
	if limit <= 0 || limit > m.maxPageSize {
		limit = m.maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return m.store.QueryRecords(category, limit, offset)
}

func validateSubmission(sources []model.SourceSpec, rules []model.TransformationRule) error {
	if len(sources) == 0 {
		return &model.ValidationError{Field: "sources", Reason: "at least one source is required"}
	}
	for i, src := range sources {
		if src.URL == "" {
			return &model.ValidationError{
				Field:  fmt.Sprintf("sources[%d].url", i),
				Reason: "must not be empty",
			}
		}
		switch src.Type {
		case model.SourceREST, model.SourceGraphQL:
		default:
			return &model.ValidationError{
				Field:  fmt.Sprintf("sources[%d].source_type", i),
				Reason: fmt.Sprintf("unknown source type %q", src.Type),
			}
		}
		if src.Type == model.SourceGraphQL && src.Query == "" {
			return &model.ValidationError{
				Field:  fmt.Sprintf("sources[%d].query", i),
				Reason: "graphql sources require a query",
			}
		}
	}
	for _, rule := range rules {
		if err := ValidateRule(rule); err != nil {
			return err
		}
	}
	return nil
}
