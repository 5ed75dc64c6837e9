package engine

import "context"

// Metadata is the subset of extracted video metadata the orchestrator
// cares about.
type Metadata struct {
	Title       string
	Description string
}

// Format is one selectable encoding reported by the engine.
type Format struct {
	ID     string
	Ext    string
	Height int
	TBR    float64
	VCodec string
	Note   string
}

// HasVideo reports whether the format carries a decoded video stream.
func (f Format) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// ProbeResult is the capability snapshot for one video: the distinct
// heights it offers in ascending order, the full format candidate list,
// and the extracted metadata.
type ProbeResult struct {
	Heights []int
	Formats []Format
	Meta    Metadata
}

const (
	PhaseDownloading = "downloading"
	PhaseFinished    = "finished"
)

// Progress is one progress event relayed from the engine during a
// download.
type Progress struct {
	Phase           string
	DownloadedBytes int64
	TotalBytes      int64
	Speed           float64 // bytes per second, 0 if unknown
	ETA             int     // seconds, -1 if unknown
}

// ProgressFunc receives progress events. It may be called concurrently
// with the download itself but never after Download returns.
type ProgressFunc func(Progress)

// Options composes the format selection, post-processing steps and
// resilience tuning for one engine invocation. Zero values mean "engine
// default".
type Options struct {
	Selector     string
	MergeFormat  string
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
	FastStart    bool

	OutputTemplate string

	ChunkSizeBytes      int64
	ConcurrentFragments int
	Retries             int
	FragmentRetries     int
	SocketTimeoutSec    int
	CookiesFile         string
}

// DownloadResult is the final artifact of a successful download.
type DownloadResult struct {
	FilePath string
	Meta     Metadata
}

// Engine is the external extraction/download capability. Probe performs a
// read-only capability query; Download writes exactly one artifact at the
// path derived from Options.OutputTemplate.
type Engine interface {
	Probe(ctx context.Context, url string, opts Options) (*ProbeResult, error)
	Download(ctx context.Context, url string, opts Options, progress ProgressFunc) (*DownloadResult, error)
}
