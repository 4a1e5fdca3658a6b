package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"go-ingest-pipeline/internal/model"
	"go-ingest-pipeline/internal/queue"
)

// JobStore is the persistence surface the dispatcher drives: the claim
// and finish compare-and-sets plus batch record inserts.
type JobStore interface {
	ClaimJob(jobID string) (bool, error)
	GetJob(jobID string) (*model.IngestionJob, error)
	FinishJob(jobID string, status model.JobStatus, recordsProcessed int, errSummary string) (bool, error)
	InsertRecords(records []*model.ProcessedRecord) error
}

// DispatcherConfig bounds the dispatcher's concurrency and retry
// behavior. Zero values fall back to defaults.
type DispatcherConfig struct {
	Workers           int               // concurrent jobs
	SourceConcurrency int               // concurrent fetches within one job
	Retry             model.RetryPolicy // per-source fetch retry
}

// Dispatcher consumes job ids from the work queue with a fixed-size
// worker pool. Each worker owns one job end-to-end: it claims the job
// (pending→running compare-and-set, so duplicate deliveries are
// no-ops), fans out across the job's sources with bounded concurrency,
// transforms and persists records, and writes the terminal status.
type Dispatcher struct {
	store   JobStore
	queue   queue.Queue
	fetcher Fetcher
	cfg     DispatcherConfig
	wg      sync.WaitGroup
}

// NewDispatcher wires a dispatcher over the store, queue and fetcher.
func NewDispatcher(st JobStore, q queue.Queue, fetcher Fetcher, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.SourceConcurrency <= 0 {
		cfg.SourceConcurrency = 4
	}
	cfg.Retry = cfg.Retry.Normalized()
	return &Dispatcher{store: st, queue: q, fetcher: fetcher, cfg: cfg}
}

// Start launches the worker pool. Workers exit when the queue is
// closed or ctx is cancelled; Wait blocks until they are done.
func (d *Dispatcher) Start(ctx context.Context) {
	log.Printf("🚀 dispatcher started with %d workers", d.cfg.Workers)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(workerID int) {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case jobID, ok := <-d.queue.Jobs():
					if !ok {
						return
					}
					d.runJob(ctx, workerID, jobID)
				}
			}
		}(i)
	}
}

// Wait blocks until all workers have exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// sourceResult aggregates the outcome of one source within a job.
type sourceResult struct {
	url       string
	inserted  int
	dropped   int
	recordErr int
	err       error
	fatal     bool // persistence failed beyond the single retry
}

func (d *Dispatcher) runJob(ctx context.Context, workerID int, jobID string) {
	claimed, err := d.store.ClaimJob(jobID)
	if err != nil {
		log.Printf("❌ worker %d: claim job %s: %v", workerID, jobID, err)
		return
	}
	if !claimed {
		// duplicate delivery or already terminal; the claim CAS makes
		// redelivered ids idempotent
		log.Printf("worker %d: job %s already claimed, skipping", workerID, jobID)
		return
	}

	job, err := d.store.GetJob(jobID)
	if err != nil {
		log.Printf("❌ worker %d: load job %s: %v", workerID, jobID, err)
		// the claim already flipped the job to running; it must not sit
		// there forever
		d.failClaimed(jobID, fmt.Sprintf("load job: %v", err))
		return
	}

	start := time.Now()
	log.Printf("⚙️ worker %d: running job %s (%d sources)", workerID, jobID, len(job.Sources))

	results := d.runSources(ctx, job)

	var (
		summary   []string
		inserted  int
		succeeded int
		fatal     bool
	)
	for _, res := range results {
		inserted += res.inserted
		if res.fatal {
			fatal = true
		}
		if res.err != nil {
			summary = append(summary, res.err.Error())
			continue
		}
		succeeded++
		if res.recordErr > 0 {
			summary = append(summary, fmt.Sprintf("source %s: %d records failed transformation", res.url, res.recordErr))
		}
	}

	status := model.StatusCompleted
	if fatal || succeeded == 0 {
		status = model.StatusFailed
	}

	ok, err := d.store.FinishJob(jobID, status, inserted, strings.Join(summary, "; "))
	if err != nil {
		log.Printf("❌ worker %d: persist terminal status for job %s: %v", workerID, jobID, err)
		d.failClaimed(jobID, fmt.Sprintf("persist terminal status: %v", err))
		return
	}
	if !ok {
		log.Printf("worker %d: job %s left running state concurrently, not overwriting", workerID, jobID)
		return
	}

	log.Printf("🏁 worker %d: job %s %s in %v (%d records, %d/%d sources ok)",
		workerID, jobID, status, time.Since(start), inserted, succeeded, len(results))
}

// failClaimed marks an already-claimed job failed with a short retry
// loop, so a persistence error mid-run cannot strand the job in the
// running state.
func (d *Dispatcher) failClaimed(jobID, reason string) {
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		ok, err := d.store.FinishJob(jobID, model.StatusFailed, 0, reason)
		if err == nil {
			if !ok {
				log.Printf("job %s already left running state, not marking failed", jobID)
			}
			return
		}
		log.Printf("❌ job %s: mark failed (attempt %d): %v", jobID, attempt+1, err)
	}
	log.Printf("❌ job %s stranded in running state: %s", jobID, reason)
}

// runSources fans out across the job's sources with bounded
// concurrency so one job cannot open unbounded outbound connections.
func (d *Dispatcher) runSources(ctx context.Context, job *model.IngestionJob) []sourceResult {
	results := make([]sourceResult, len(job.Sources))

	poolSize := d.cfg.SourceConcurrency
	if len(job.Sources) < poolSize {
		poolSize = len(job.Sources)
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		// fall back to sequential fetches rather than failing the job
		for i, src := range job.Sources {
			results[i] = d.runSource(ctx, job, src)
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, src := range job.Sources {
		i, src := i, src
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = d.runSource(ctx, job, src)
		}); err != nil {
			results[i] = sourceResult{url: src.URL, err: fmt.Errorf("source %s: submit fetch: %w", src.URL, err)}
			wg.Done()
		}
	}
	wg.Wait()

	return results
}

// runSource fetches one source (with retry), applies the rule chain to
// each record in yield order and persists the surviving records as a
// single batch. Per-record transformation failures are isolated.
func (d *Dispatcher) runSource(ctx context.Context, job *model.IngestionJob, src model.SourceSpec) sourceResult {
	res := sourceResult{url: src.URL}

	raw, err := fetchWithRetry(ctx, d.cfg.Retry, d.fetcher, src)
	if err != nil {
		res.err = err
		return res
	}

	now := time.Now().UTC()
	records := make([]*model.ProcessedRecord, 0, len(raw))
	for _, rec := range raw {
		transformed, keep, err := ApplyRules(rec, job.Rules)
		if err != nil {
			res.recordErr++
			log.Printf("⚠️ job %s: record from %s skipped: %v", job.ID, src.URL, err)
			continue
		}
		if !keep {
			res.dropped++
			continue
		}
		records = append(records, &model.ProcessedRecord{
			ID:         uuid.New().String(),
			JobID:      job.ID,
			SourceType: src.Type,
			Category:   recordCategory(transformed),
			Payload:    transformed,
			CreatedAt:  now,
		})
	}

	if err := d.store.InsertRecords(records); err != nil {
		// one retry for the batch before treating persistence as fatal
		log.Printf("⚠️ job %s: batch insert for %s failed, retrying once: %v", job.ID, src.URL, err)
		if err := d.store.InsertRecords(records); err != nil {
			res.err = fmt.Errorf("source %s: persist batch: %w", src.URL, err)
			res.fatal = true
			return res
		}
	}

	res.inserted = len(records)
	return res
}

// recordCategory lifts the classification tag from the transformed
// payload when present.
func recordCategory(rec model.GenericRecord) string {
	if c, ok := rec["category"].(string); ok && c != "" {
		return c
	}
	return model.DefaultCategory
}
