package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/fetchkit/fetchd/internal/output"
)

// progressTemplate renders download progress as machine-readable lines on
// stdout. The "download:" prefix selects the template type; everything
// after it is the rendered line.
const progressTemplate = "download:" + progressPrefix +
	"%(progress.status)s;" +
	"%(progress.downloaded_bytes|0)s;" +
	"%(progress.total_bytes|0)s;" +
	"%(progress.total_bytes_estimate|0)s;" +
	"%(progress.speed|0)s;" +
	"%(progress.eta|-1)s"

const (
	filepathPrefix = "fetchd-filepath;"
	titlePrefix    = "fetchd-title;"
)

// YTDLP drives the yt-dlp binary as the extraction/download engine.
type YTDLP struct {
	binaryPath string
}

// NewYTDLP locates the yt-dlp binary, fetching the latest release build
// into a temp directory when it is not installed.
func NewYTDLP() (*YTDLP, error) {
	path := findBinary()
	if path == "" {
		var err error
		path, err = fetchBinary()
		if err != nil {
			return nil, fmt.Errorf("yt-dlp not found and failed to download: %v", err)
		}
	}
	return &YTDLP{binaryPath: path}, nil
}

// Probe queries the engine for a video's capabilities without downloading.
func (e *YTDLP) Probe(ctx context.Context, url string, opts Options) (*ProbeResult, error) {
	log := output.GetLogger("engine")
	args := []string{"-J", "--no-playlist", "--skip-download", "--no-warnings"}
	args = appendNetworkArgs(args, opts)
	args = append(args, url)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probe failed: %v: %s", err, tailLines(stderr.String(), 3))
	}
	result, err := parseProbeJSON(out)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("url", url).Ints("heights", result.Heights).Int("formats", len(result.Formats)).Msg("Probe completed")
	return result, nil
}

// Download runs the engine with the composed options, relaying progress
// events into the sink and returning the final artifact path.
func (e *YTDLP) Download(ctx context.Context, url string, opts Options, progress ProgressFunc) (*DownloadResult, error) {
	log := output.GetLogger("engine")
	args := []string{
		"-q", "--progress", "--newline", "--progress-delta", "1",
		"--no-warnings", "--no-playlist", "--no-simulate",
		"--progress-template", progressTemplate,
		"--print", "after_move:" + filepathPrefix + "%(filepath)s",
		"--print", "after_move:" + titlePrefix + "%(title)s",
	}
	args = appendFormatArgs(args, opts)
	args = appendNetworkArgs(args, opts)
	args = append(args, "-o", opts.OutputTemplate, url)

	cmd := exec.CommandContext(ctx, e.binaryPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %v", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stderr pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting yt-dlp: %v", err)
	}

	stderrCh := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(stderrPipe)
		stderrCh <- string(data)
	}()

	result := &DownloadResult{}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if p, ok := parseProgressLine(line); ok {
			if progress != nil {
				progress(p)
			}
			continue
		}
		if strings.HasPrefix(line, filepathPrefix) {
			result.FilePath = strings.TrimSpace(strings.TrimPrefix(line, filepathPrefix))
		} else if strings.HasPrefix(line, titlePrefix) {
			result.Meta.Title = strings.TrimSpace(strings.TrimPrefix(line, titlePrefix))
		}
	}
	stderrTail := tailLines(<-stderrCh, 5)

	if err := cmd.Wait(); err != nil {
		if stderrTail != "" {
			return nil, fmt.Errorf("yt-dlp failed: %v: %s", err, stderrTail)
		}
		return nil, fmt.Errorf("yt-dlp failed: %v", err)
	}
	if result.FilePath == "" {
		return nil, fmt.Errorf("yt-dlp did not report an output file")
	}
	log.Debug().Str("url", url).Str("file", result.FilePath).Msg("Download completed")
	return result, nil
}

func appendFormatArgs(args []string, opts Options) []string {
	if opts.ExtractAudio {
		args = append(args, "-x", "--audio-format", opts.AudioFormat, "--audio-quality", opts.AudioQuality)
		return args
	}
	if opts.Selector != "" {
		args = append(args, "-f", opts.Selector)
	}
	if opts.MergeFormat != "" {
		args = append(args, "--merge-output-format", opts.MergeFormat)
	}
	if opts.FastStart {
		args = append(args, "--postprocessor-args", "ffmpeg:-movflags +faststart")
	}
	return args
}

func appendNetworkArgs(args []string, opts Options) []string {
	if opts.ChunkSizeBytes > 0 {
		args = append(args, "--http-chunk-size", strconv.FormatInt(opts.ChunkSizeBytes, 10))
	}
	if opts.ConcurrentFragments > 0 {
		args = append(args, "--concurrent-fragments", strconv.Itoa(opts.ConcurrentFragments))
	}
	if opts.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(opts.Retries))
	}
	if opts.FragmentRetries > 0 {
		args = append(args, "--fragment-retries", strconv.Itoa(opts.FragmentRetries))
	}
	if opts.SocketTimeoutSec > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(opts.SocketTimeoutSec))
	}
	if opts.CookiesFile != "" {
		args = append(args, "--cookies", opts.CookiesFile)
	}
	return args
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, " | "))
}

func findBinary() string {
	// checks if "yt-dlp" is in PATH or next to the executable
	path, err := exec.LookPath("yt-dlp")
	if err == nil {
		return path
	}
	executable, err := os.Executable()
	if err == nil {
		for _, name := range []string{"yt-dlp", "yt-dlp.exe"} {
			candidate := filepath.Join(filepath.Dir(executable), name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

func fetchBinary() (string, error) {
	var filename string
	switch {
	case runtime.GOOS == "windows" && runtime.GOARCH == "amd64":
		filename = "yt-dlp.exe"
	case runtime.GOOS == "linux" && runtime.GOARCH == "amd64":
		filename = "yt-dlp_linux"
	case runtime.GOOS == "linux" && runtime.GOARCH == "arm64":
		filename = "yt-dlp_linux_aarch64"
	case runtime.GOOS == "darwin":
		filename = "yt-dlp_macos"
	default:
		return "", fmt.Errorf("unsupported OS/architecture combination: %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	tempDir := filepath.Join(os.TempDir(), "fetchd-engine")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", fmt.Errorf("error creating temp directory: %v", err)
	}
	downloadURL := "https://github.com/yt-dlp/yt-dlp/releases/latest/download/" + filename
	filePath := filepath.Join(tempDir, filename)

	client := &http.Client{Timeout: 3 * time.Minute}
	resp, err := client.Get(downloadURL)
	if err != nil {
		return "", fmt.Errorf("error downloading yt-dlp: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("error downloading yt-dlp: status code %d", resp.StatusCode)
	}
	out, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("error creating file: %v", err)
	}
	defer out.Close()
	if runtime.GOOS != "windows" {
		if err := out.Chmod(0755); err != nil {
			return "", fmt.Errorf("error setting file permissions: %v", err)
		}
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("error writing to file: %v", err)
	}
	return filePath, nil
}
