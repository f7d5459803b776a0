package job

// Job is the stored state of a background task.
type Job struct {
	JobID   string    `json:"job_id"`
	Type    Type      `json:"type"`
	Status  Status    `json:"status"`
	Error   string    `json:"error,omitempty"`
	Results JobResult `json:"results,omitempty"`
}

type Type string

const (
	TypeIngest Type = "ingest"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

type JobResult struct {
	IngestResult *IngestResult `json:"ingest_result,omitempty"`
}

// IngestResult counts what one listing file produced.
type IngestResult struct {
	FileName string `json:"file_name"`
	Total    int    `json:"total"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Errors   int    `json:"errors"`
}
