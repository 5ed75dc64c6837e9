package download

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fetchkit/fetchd/internal/engine"
	"github.com/fetchkit/fetchd/internal/history"
	"github.com/fetchkit/fetchd/internal/jobs"
	"github.com/fetchkit/fetchd/internal/platform"
	"github.com/fetchkit/fetchd/internal/settings"
)

// RejectReason classifies a synchronous submission rejection.
type RejectReason string

const (
	RejectInvalidURL     RejectReason = "invalid_url"
	RejectNotSingle      RejectReason = "not_single"
	RejectSourceDisabled RejectReason = "source_disabled"
	RejectBadFormat      RejectReason = "bad_format"
	RejectBadPlatform    RejectReason = "bad_platform"
)

// RejectionError is a validation failure: the request was refused before a
// job was created.
type RejectionError struct {
	Reason  RejectReason
	Message string
}

func (e *RejectionError) Error() string { return e.Message }

func reject(reason RejectReason, format string, args ...any) error {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Reason extracts the rejection reason from an error, if it carries one.
func Reason(err error) (RejectReason, bool) {
	var r *RejectionError
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}

// Request is the produced create-job interface.
type Request struct {
	URL           string `json:"url"`
	Format        string `json:"format"`
	Quality       string `json:"quality"`
	TitleOverride string `json:"title"`
	Platform      string `json:"platform"`
}

// Service validates download requests, owns the job store, and dispatches
// one executor goroutine per accepted job.
type Service struct {
	store      *jobs.Store
	eng        engine.Engine
	settings   *settings.Manager
	history    *history.Log
	httpClient *http.Client
}

func NewService(eng engine.Engine, cfg *settings.Manager, hist *history.Log) *Service {
	return &Service{
		store:      jobs.NewStore(),
		eng:        eng,
		settings:   cfg,
		history:    hist,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Submit validates a request, creates a job and dispatches its executor.
// It returns the job id immediately; progress is observed only through
// polling. Validation failures return a RejectionError and create no job.
func (s *Service) Submit(req Request) (string, error) {
	kind := req.Format
	if kind == "" {
		kind = "video"
	}
	if kind != "audio" && kind != "video" {
		return "", reject(RejectBadFormat, "unsupported format %q, want audio or video", req.Format)
	}
	if req.Platform != "" {
		if _, err := platform.Parse(req.Platform); err != nil {
			return "", reject(RejectBadPlatform, "%v", err)
		}
	}
	p, err := platform.Classify(req.URL)
	if err != nil {
		if errors.Is(err, platform.ErrNotSingleVideo) {
			return "", reject(RejectNotSingle, "%v", err)
		}
		return "", reject(RejectInvalidURL, "%v", err)
	}
	if req.Platform != "" && req.Platform != string(p) {
		return "", reject(RejectInvalidURL, "URL belongs to %s, not %s", p, req.Platform)
	}
	if !s.settings.Enabled(p) {
		return "", reject(RejectSourceDisabled, "source %s is disabled", p)
	}

	jreq := jobs.Request{
		URL:           req.URL,
		Platform:      p,
		Kind:          kind,
		Quality:       req.Quality,
		TitleOverride: req.TitleOverride,
	}
	id := s.store.Create(jreq)
	go s.run(id, jreq)
	return id, nil
}

// Job returns the current snapshot of a job.
func (s *Service) Job(id string) (jobs.Snapshot, bool) {
	return s.store.Get(id)
}

var ErrNotReady = errors.New("job has not produced an artifact")

// Artifact returns the file path and display title of a completed job.
func (s *Service) Artifact(id string) (string, string, error) {
	snap, ok := s.store.Get(id)
	if !ok {
		return "", "", jobs.ErrNotFound
	}
	if snap.Status != jobs.StatusDone {
		return "", "", ErrNotReady
	}
	return snap.FilePath, snap.DisplayTitle, nil
}
