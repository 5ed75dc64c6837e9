package jobs

// Status is the lifecycle state of a download job.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// Terminal reports whether no further mutation is permitted.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// validNext enumerates the allowed forward transitions. Error is reachable
// from any non-terminal state and is handled separately.
var validNext = map[Status][]Status{
	StatusQueued:      {StatusDownloading, StatusProcessing},
	StatusDownloading: {StatusProcessing},
	StatusProcessing:  {StatusDone},
}

// CanTransition reports whether moving from one status to another follows
// the job state machine.
func CanTransition(from, to Status) bool {
	if to == StatusError {
		return !from.Terminal()
	}
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}
