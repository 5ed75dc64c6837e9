package engine

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type infoJSON struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Formats     []formatJSON `json:"formats"`
}

type formatJSON struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	Height     *int     `json:"height"`
	TBR        *float64 `json:"tbr"`
	VCodec     string   `json:"vcodec"`
	FormatNote string   `json:"format_note"`
}

// parseProbeJSON turns the engine's single-video info dump into a
// ProbeResult. Heights are the distinct video heights in ascending order;
// audio-only formats contribute no height.
func parseProbeJSON(data []byte) (*ProbeResult, error) {
	var info infoJSON
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("error parsing probe output: %v", err)
	}
	result := &ProbeResult{
		Meta: Metadata{Title: info.Title, Description: info.Description},
	}
	for _, f := range info.Formats {
		format := Format{
			ID:     f.FormatID,
			Ext:    f.Ext,
			VCodec: f.VCodec,
			Note:   f.FormatNote,
		}
		if f.Height != nil {
			format.Height = *f.Height
		}
		if f.TBR != nil {
			format.TBR = *f.TBR
		}
		result.Formats = append(result.Formats, format)
		if format.HasVideo() && format.Height > 0 {
			result.Heights = append(result.Heights, format.Height)
		}
	}
	slices.Sort(result.Heights)
	result.Heights = slices.Compact(result.Heights)
	return result, nil
}

// progressPrefix marks machine-readable progress lines emitted through the
// engine's progress template (see progressTemplate in ytdlp.go).
const progressPrefix = "fetchd-progress;"

// parseProgressLine parses one templated progress line. Fields are
// status;downloaded;total;total_estimate;speed;eta with "NA" for unknown
// values.
func parseProgressLine(line string) (Progress, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, progressPrefix) {
		return Progress{}, false
	}
	fields := strings.Split(strings.TrimPrefix(line, progressPrefix), ";")
	if len(fields) < 6 {
		return Progress{}, false
	}
	p := Progress{Phase: fields[0], ETA: -1}
	p.DownloadedBytes = parseInt64Field(fields[1])
	p.TotalBytes = parseInt64Field(fields[2])
	if p.TotalBytes <= 0 {
		p.TotalBytes = parseInt64Field(fields[3])
	}
	p.Speed = parseFloatField(fields[4])
	if eta := parseInt64Field(fields[5]); eta > 0 {
		p.ETA = int(eta)
	}
	return p, true
}

func parseInt64Field(s string) int64 {
	// the engine renders unknown numeric fields as "NA" or "null" and
	// known ones occasionally as floats
	f := parseFloatField(s)
	return int64(f)
}

func parseFloatField(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "NA" || s == "null" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
