package model

import "time"

// GenericRecord is a schema-agnostic map for any data source
type GenericRecord map[string]interface{}

// Clone returns a shallow copy of the record.
func (r GenericRecord) Clone() GenericRecord {
	out := make(GenericRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// JobStatus is the lifecycle state of an ingestion job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SourceType identifies the protocol used to reach a data source
type SourceType string

const (
	SourceREST    SourceType = "rest"
	SourceGraphQL SourceType = "graphql"
)

// SourceSpec describes one external data source for an ingestion job
type SourceSpec struct {
	Type    SourceType        `json:"source_type"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Query   string            `json:"query,omitempty"`  // GraphQL query body
	Params  map[string]string `json:"params,omitempty"` // REST query parameters
}

// TransformationRule describes one step of the per-record rule chain.
// Rules are applied in declaration order; later rules see fields
// created or renamed by earlier ones.
type TransformationRule struct {
	Field     string                 `json:"field"`
	Operation string                 `json:"operation"`
	Params    map[string]interface{} `json:"params"`
}

// IngestionJob is the persisted state of one ingestion request.
// The job manager creates it with StatusPending; afterwards only the
// worker that claimed the job writes to it. Terminal jobs are immutable.
type IngestionJob struct {
	ID               string               `json:"id"`
	Status           JobStatus            `json:"status"`
	Sources          []SourceSpec         `json:"sources"`
	Rules            []TransformationRule `json:"transformation_rules"`
	RecordsProcessed int                  `json:"records_processed"`
	Error            string               `json:"error,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// DefaultCategory is assigned to records whose payload carries no usable
// category field.
const DefaultCategory = "uncategorized"

// ProcessedRecord is one transformed record persisted for later query.
// Records are insert-only.
type ProcessedRecord struct {
	ID         string        `json:"id"`
	JobID      string        `json:"job_id"`
	SourceType SourceType    `json:"source_type"`
	Category   string        `json:"category"`
	Payload    GenericRecord `json:"payload"`
	CreatedAt  time.Time     `json:"created_at"`
}
