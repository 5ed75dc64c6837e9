package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fetchkit/fetchd/internal/platform"
)

var (
	ErrNotFound    = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
)

// Request holds the immutable parameters of one download job.
type Request struct {
	URL           string
	Platform      platform.Platform
	Kind          string // "audio" or "video"
	Quality       string
	TitleOverride string
}

// Job is one requested download. The store owns every Job for its whole
// lifetime; executors mutate fields only through the store's accessors.
type Job struct {
	mu sync.Mutex

	ID        string
	Request   Request
	CreatedAt time.Time

	status       Status
	progress     int
	speed        string
	eta          string
	filePath     string
	displayTitle string
	errMessage   string
}

// Snapshot is a consistent read-only copy of a job's state.
type Snapshot struct {
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	Platform     platform.Platform `json:"platform"`
	Kind         string            `json:"format"`
	Quality      string            `json:"quality"`
	Status       Status            `json:"status"`
	Progress     int               `json:"progress"`
	Speed        string            `json:"speed,omitempty"`
	ETA          string            `json:"eta,omitempty"`
	FilePath     string            `json:"-"`
	DisplayTitle string            `json:"title,omitempty"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Store is the concurrent job registry and the single source of truth for
// progress polling. The store mutex guards only the id map; each job
// carries its own lock so updates to different jobs never serialize.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a new job in the queued state and returns its id.
func (s *Store) Create(req Request) string {
	job := &Job{
		ID:        uuid.New().String(),
		Request:   req,
		CreatedAt: time.Now(),
		status:    StatusQueued,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job.ID
}

// Get returns a snapshot of the job's current state.
func (s *Store) Get(id string) (Snapshot, bool) {
	job := s.lookup(id)
	if job == nil {
		return Snapshot{}, false
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return Snapshot{
		ID:           job.ID,
		URL:          job.Request.URL,
		Platform:     job.Request.Platform,
		Kind:         job.Request.Kind,
		Quality:      job.Request.Quality,
		Status:       job.status,
		Progress:     job.progress,
		Speed:        job.speed,
		ETA:          job.eta,
		FilePath:     job.filePath,
		DisplayTitle: job.displayTitle,
		Error:        job.errMessage,
		CreatedAt:    job.CreatedAt,
	}, true
}

// SetProgress records a progress event. The first event moves a queued job
// to downloading. Percent, speed and eta are written as one atomic group;
// events that would move percent backwards are dropped, as are events
// arriving after the download phase ended.
func (s *Store) SetProgress(id string, percent int, speed, eta string) error {
	job := s.lookup(id)
	if job == nil {
		return ErrNotFound
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.status.Terminal() {
		return ErrJobFinished
	}
	if job.status == StatusProcessing {
		return nil
	}
	if job.status == StatusQueued {
		job.status = StatusDownloading
	}
	if percent < job.progress {
		return nil
	}
	job.progress = percent
	job.speed = speed
	job.eta = eta
	return nil
}

// MarkProcessing moves the job into the post-processing phase. Calling it
// on a job already processing is a no-op.
func (s *Store) MarkProcessing(id string) error {
	job := s.lookup(id)
	if job == nil {
		return ErrNotFound
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.status == StatusProcessing {
		return nil
	}
	if !CanTransition(job.status, StatusProcessing) {
		return ErrJobFinished
	}
	job.status = StatusProcessing
	job.progress = 100
	job.speed = ""
	job.eta = ""
	return nil
}

// MarkDone finalizes a job with its artifact path and display title.
func (s *Store) MarkDone(id, filePath, displayTitle string) error {
	job := s.lookup(id)
	if job == nil {
		return ErrNotFound
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if !CanTransition(job.status, StatusDone) {
		return ErrJobFinished
	}
	job.status = StatusDone
	job.progress = 100
	job.filePath = filePath
	job.displayTitle = displayTitle
	return nil
}

// Fail moves a job to the terminal error state with a human-readable
// message. Failing an already-finished job is rejected.
func (s *Store) Fail(id, message string) error {
	job := s.lookup(id)
	if job == nil {
		return ErrNotFound
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if !CanTransition(job.status, StatusError) {
		return ErrJobFinished
	}
	job.status = StatusError
	job.errMessage = message
	return nil
}

func (s *Store) lookup(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}
