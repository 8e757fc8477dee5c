package pipeline

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/ner"
)

// JobStatus represents the state of an extraction job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusExtracting  JobStatus = "extracting"
	StatusRecognizing JobStatus = "recognizing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// Job tracks the state of a single resume extraction.
type Job struct {
	mu sync.Mutex

	ID       string
	Filename string

	Status JobStatus
	Phase  string

	Result   *ner.Result
	Failure  *Failure
	Attempts int

	CreatedAt time.Time
	UpdatedAt time.Time

	// Internal: not serialized.
	fileData []byte
}

// NewJob creates a queued job holding the uploaded document.
func NewJob(filename string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        ulid.Make().String(),
		Filename:  filename,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs and reports how many were dropped.
func (s *JobStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	n := 0
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			n++
		}
	}
	return n
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// IncrAttempts counts one recognition attempt.
func (j *Job) IncrAttempts() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Attempts++
	j.UpdatedAt = time.Now()
}

// Complete stores the recognition result and releases the document bytes.
func (j *Job) Complete(res ner.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = &res
	j.Status = StatusCompleted
	j.Phase = "done"
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// Fail records a classified failure. The phase is left as it was so callers
// can see where the job stopped.
func (j *Job) Fail(err error) {
	f := Classify(err)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Failure = &f
	j.Status = StatusFailed
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID           string            `json:"job_id"`
	Status       JobStatus         `json:"status"`
	Phase        string            `json:"phase"`
	Filename     string            `json:"filename"`
	Attempts     int               `json:"attempts"`
	Entities     ner.EntityMapping `json:"entities,omitzero"`
	Words        int               `json:"words,omitempty"`
	LabeledWords int               `json:"labeled_words,omitempty"`
	Truncated    bool              `json:"truncated,omitempty"`
	Error        string            `json:"error,omitempty"`
	ErrorKind    ErrorKind         `json:"error_kind,omitempty"`
	Retryable    bool              `json:"retryable,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := JobSnapshot{
		ID:        j.ID,
		Status:    j.Status,
		Phase:     j.Phase,
		Filename:  j.Filename,
		Attempts:  j.Attempts,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Result != nil {
		s.Entities = j.Result.Entities
		if s.Entities == nil {
			s.Entities = ner.EntityMapping{}
		}
		s.Words = j.Result.Words
		s.LabeledWords = j.Result.LabeledWords
		s.Truncated = j.Result.Truncated
	}
	if j.Failure != nil {
		s.Error = j.Failure.Message
		s.ErrorKind = j.Failure.Kind
		s.Retryable = j.Failure.Retryable
	}
	return s
}
