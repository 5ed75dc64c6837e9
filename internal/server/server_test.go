package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fetchkit/fetchd/internal/download"
	"github.com/fetchkit/fetchd/internal/engine"
	"github.com/fetchkit/fetchd/internal/jobs"
	"github.com/fetchkit/fetchd/internal/settings"
)

type stubEngine struct {
	filePath string
}

func (s *stubEngine) Probe(context.Context, string, engine.Options) (*engine.ProbeResult, error) {
	return &engine.ProbeResult{
		Heights: []int{480, 720},
		Meta:    engine.Metadata{Title: "Stub Video"},
	}, nil
}

func (s *stubEngine) Download(_ context.Context, _ string, _ engine.Options, progress engine.ProgressFunc) (*engine.DownloadResult, error) {
	progress(engine.Progress{Phase: engine.PhaseFinished})
	return &engine.DownloadResult{FilePath: s.filePath}, nil
}

func newTestServer(t *testing.T, adminKey string) (*Server, *stubEngine) {
	t.Helper()
	dir := t.TempDir()
	artifact := filepath.Join(dir, "artifact.mp4")
	require.NoError(t, os.WriteFile(artifact, []byte("video-bytes"), 0644))

	cfg, err := settings.Load(filepath.Join(dir, "fetchd.yaml"))
	require.NoError(t, err)
	eng := &stubEngine{filePath: artifact}
	return &Server{
		Service:  download.NewService(eng, cfg, nil),
		Settings: cfg,
		AdminKey: adminKey,
	}, eng
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func awaitDone(t *testing.T, handler http.Handler, id string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/api/progress/"+id, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var snap map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
		status := jobs.Status(snap["status"].(string))
		if status.Terminal() {
			require.Equal(t, jobs.StatusDone, status, "job failed: %v", snap["error"])
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job did not complete")
	return nil
}

func TestCreateAndPollAndFetch(t *testing.T) {
	srv, _ := newTestServer(t, "")
	handler := srv.Router()

	rec := postJSON(t, handler, "/api/download", map[string]string{
		"url": "https://youtu.be/abc", "quality": "high",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["job_id"]
	require.NotEmpty(t, id)

	snap := awaitDone(t, handler, id)
	require.Equal(t, "Stub Video", snap["title"])

	req := httptest.NewRequest(http.MethodGet, "/api/file/"+id, nil)
	fileRec := httptest.NewRecorder()
	handler.ServeHTTP(fileRec, req)
	require.Equal(t, http.StatusOK, fileRec.Code)
	require.Contains(t, fileRec.Header().Get("Content-Disposition"), "Stub Video.mp4")
	require.Equal(t, "video-bytes", fileRec.Body.String())
}

func TestCreate_RejectionCarriesReason(t *testing.T) {
	srv, _ := newTestServer(t, "")
	handler := srv.Router()

	rec := postJSON(t, handler, "/api/download", map[string]string{"url": "https://example.com/v/1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "invalid_url", body["reason"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/download", bytes.NewReader([]byte("{not json"))))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgress_UnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, "")
	handler := srv.Router()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/progress/no-such-id", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFile_NotReady(t *testing.T) {
	srv, _ := newTestServer(t, "")
	handler := srv.Router()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/file/no-such-id", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettings_AdminKeyRequired(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	handler := srv.Router()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("X-Admin-Key", "secret")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSettings_UpdateDisablesSource(t *testing.T) {
	srv, _ := newTestServer(t, "")
	handler := srv.Router()

	rec := postJSON(t, handler, "/api/settings", map[string]any{
		"sources": map[string]bool{"youtube": false},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, handler, "/api/download", map[string]string{"url": "https://youtu.be/abc"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "source_disabled", body["reason"])
}
