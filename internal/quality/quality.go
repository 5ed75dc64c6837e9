package quality

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fetchkit/fetchd/internal/engine"
	"github.com/fetchkit/fetchd/internal/platform"
)

// Kind distinguishes audio-only extraction from video downloads.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

const (
	audioFormat  = "mp3"
	audioQuality = "192K"

	// lowest height the "low" tier will pick when the source offers one
	lowTierFloor = 240
)

// Capability is the per-job capability snapshot driving resolution. When
// probing failed, Probed is false and Heights holds the static tier table.
type Capability struct {
	Probed  bool
	Heights []int
	Formats []engine.Format
}

// StaticTiers is the fallback capability used when probing the source
// fails: a fixed 480/720/1080 height table.
func StaticTiers() Capability {
	return Capability{Heights: []int{480, 720, 1080}}
}

// Spec is the concrete format selection handed to the engine.
type Spec struct {
	Selector     string
	MergeFormat  string
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
	FastStart    bool
}

// UnavailableError reports an explicit height request that exceeds what
// the source offers.
type UnavailableError struct {
	Requested int
	Max       int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("requested %dp but the source only offers up to %dp", e.Requested, e.Max)
}

// Resolve turns a requested quality token plus probed capability data into
// a concrete format spec, applying platform-specific selection rules.
func Resolve(p platform.Platform, kind Kind, quality string, cap Capability) (Spec, error) {
	if kind == KindAudio {
		// audio requests ignore quality entirely
		return Spec{
			Selector:     "bestaudio/best",
			ExtractAudio: true,
			AudioFormat:  audioFormat,
			AudioQuality: audioQuality,
		}, nil
	}
	quality = strings.ToLower(strings.TrimSpace(quality))
	switch p {
	case platform.TikTok:
		return resolveCandidates(quality, cap)
	case platform.Facebook:
		return resolveFixedMP4(quality), nil
	default:
		return resolveGeneric(quality, cap)
	}
}

// resolveGeneric maps the quality token to a height ceiling from the
// capability snapshot and lets the engine pick the best match under it.
func resolveGeneric(quality string, cap Capability) (Spec, error) {
	if n, err := strconv.Atoi(quality); err == nil {
		if !cap.Probed || len(cap.Heights) == 0 {
			return Spec{}, fmt.Errorf("cannot honor explicit %dp request: source capabilities unknown", n)
		}
		max := cap.Heights[len(cap.Heights)-1]
		if n > max {
			return Spec{}, &UnavailableError{Requested: n, Max: max}
		}
		return boundedSpec(n), nil
	}
	if len(cap.Heights) == 0 {
		return Spec{Selector: "bestvideo+bestaudio/best"}, nil
	}
	var height int
	switch quality {
	case "low":
		height = cap.Heights[0]
		for _, h := range cap.Heights {
			if h >= lowTierFloor {
				height = h
				break
			}
		}
	case "medium":
		// lower median of the sorted distinct heights
		height = cap.Heights[(len(cap.Heights)-1)/2]
	default: // "high" or unspecified
		height = cap.Heights[len(cap.Heights)-1]
	}
	return boundedSpec(height), nil
}

func boundedSpec(height int) Spec {
	return Spec{
		Selector: fmt.Sprintf(
			"bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%d]/best",
			height, height),
	}
}

// resolveCandidates picks an explicit format id from the candidate list.
// Watermarked candidates are dropped when at least one clean candidate
// exists; the remainder is ranked by (height, bitrate) ascending.
func resolveCandidates(quality string, cap Capability) (Spec, error) {
	var candidates []engine.Format
	for _, f := range cap.Formats {
		if f.HasVideo() {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return Spec{}, fmt.Errorf("no downloadable video stream among %d formats", len(cap.Formats))
	}
	var clean []engine.Format
	for _, f := range candidates {
		if !watermarked(f) {
			clean = append(clean, f)
		}
	}
	if len(clean) > 0 {
		candidates = clean
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Height != candidates[j].Height {
			return candidates[i].Height < candidates[j].Height
		}
		return candidates[i].TBR < candidates[j].TBR
	})
	var idx int
	switch quality {
	case "low":
		idx = 0
	case "medium":
		idx = len(candidates) / 2
	default: // "high" or unspecified
		idx = len(candidates) - 1
	}
	return Spec{Selector: candidates[idx].ID}, nil
}

func watermarked(f engine.Format) bool {
	return strings.Contains(strings.ToLower(f.Note), "watermark") ||
		strings.Contains(strings.ToLower(f.ID), "watermark")
}

// resolveFixedMP4 handles the stability-sensitive platform: fixed height
// ceilings regardless of probed capability, an mp4 container, and a
// faststart remux for playback.
func resolveFixedMP4(quality string) Spec {
	height := 1080
	switch quality {
	case "low":
		height = 480
	case "medium":
		height = 720
	}
	if n, err := strconv.Atoi(quality); err == nil && n > 0 {
		height = n
	}
	return Spec{
		Selector: fmt.Sprintf(
			"bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%d][ext=mp4]/best",
			height, height),
		MergeFormat: "mp4",
		FastStart:   true,
	}
}
