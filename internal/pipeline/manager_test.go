package pipeline

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-ingest-pipeline/internal/model"
	"go-ingest-pipeline/internal/queue"
	"go-ingest-pipeline/internal/store"
)

func testManager(t *testing.T) (*Manager, *store.Store, *queue.MemoryQueue) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	q := queue.NewMemoryQueue(10)
	t.Cleanup(q.Close)

	return NewManager(st, q, 100), st, q
}

func validSources() []model.SourceSpec {
	return []model.SourceSpec{{Type: model.SourceREST, URL: "http://example.com/data"}}
}

func TestSubmitCreatesPendingJobAndEnqueues(t *testing.T) {
	m, st, q := testManager(t)

	start := time.Now()
	jobID, err := m.Submit(validSources(), []model.TransformationRule{renameRule("a", "b")})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	assert.Less(t, time.Since(start), time.Second, "submit must not block on fetch work")

	job, err := st.GetJob(jobID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, job.Status)

	assert.Equal(t, jobID, <-q.Jobs(), "the submitted job id must be enqueued")
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		sources []model.SourceSpec
		rules   []model.TransformationRule
	}{
		{"empty sources", nil, nil},
		{"unknown source type", []model.SourceSpec{{Type: "ftp", URL: "ftp://x"}}, nil},
		{"missing url", []model.SourceSpec{{Type: model.SourceREST}}, nil},
		{"graphql without query", []model.SourceSpec{{Type: model.SourceGraphQL, URL: "http://x"}}, nil},
		{
			"unknown operation",
			validSources(),
			[]model.TransformationRule{{Field: "a", Operation: "explode", Params: map[string]interface{}{}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, st, q := testManager(t)

			_, err := m.Submit(tt.sources, tt.rules)
			require.Error(t, err)

			var verr *model.ValidationError
			assert.True(t, errors.As(err, &verr), "expected a ValidationError, got %T", err)

			// rejected synchronously: no job created, nothing enqueued
			jobs, err := st.ListJobs()
			require.NoError(t, err)
			assert.Empty(t, jobs)
			select {
			case id := <-q.Jobs():
				t.Fatalf("unexpected enqueue of %s", id)
			default:
			}
		})
	}
}

func TestSubmitFullQueueFailsJob(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	q := queue.NewMemoryQueue(1)
	t.Cleanup(q.Close)
	m := NewManager(st, q, 100)

	_, err = m.Submit(validSources(), nil)
	require.NoError(t, err)

	// the second submission cannot be queued; it must synchronously
	// surface the failure and leave the job terminal-failed
	jobID, err := m.Submit(validSources(), nil)
	require.Error(t, err)
	assert.Empty(t, jobID)

	jobs, err := st.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	failed := 0
	for _, job := range jobs {
		if job.Status == model.StatusFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestGetStatusNotFound(t *testing.T) {
	m, _, _ := testManager(t)
	_, err := m.GetStatus("missing")
	assert.ErrorIs(t, err, model.ErrJobNotFound)
}

func TestQueryResultsClampsLimit(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	q := queue.NewMemoryQueue(10)
	t.Cleanup(q.Close)
	m := NewManager(st, q, 5)

	records := make([]*model.ProcessedRecord, 0, 10)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		records = append(records, &model.ProcessedRecord{
			ID:        string(rune('a' + i)),
			JobID:     "job-1",
			Category:  model.DefaultCategory,
			Payload:   model.GenericRecord{"seq": float64(i)},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, st.InsertRecords(records))

	got, err := m.QueryResults("", 1000, 0)
	require.NoError(t, err)
	assert.Len(t, got, 5, "limit above the cap must be clamped")

	got, err = m.QueryResults("", 0, -3)
	require.NoError(t, err)
	assert.Len(t, got, 5, "zero limit and negative offset fall back to defaults")
}
