package jobs

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/fetchkit/fetchd/internal/platform"
)

func testRequest() Request {
	return Request{
		URL:      "https://www.youtube.com/watch?v=abc",
		Platform: platform.YouTube,
		Kind:     "video",
		Quality:  "high",
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusQueued, StatusDownloading},
		{StatusQueued, StatusProcessing},
		{StatusDownloading, StatusProcessing},
		{StatusProcessing, StatusDone},
		{StatusQueued, StatusError},
		{StatusDownloading, StatusError},
		{StatusProcessing, StatusError},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}
	rejected := []struct{ from, to Status }{
		{StatusQueued, StatusDone},
		{StatusDownloading, StatusDone},
		{StatusDone, StatusError},
		{StatusError, StatusError},
		{StatusDone, StatusDownloading},
		{StatusProcessing, StatusDownloading},
	}
	for _, tc := range rejected {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore()
	id := store.Create(testRequest())
	snap, ok := store.Get(id)
	if !ok {
		t.Fatal("created job not found")
	}
	if snap.Status != StatusQueued || snap.Progress != 0 {
		t.Fatalf("new job should be queued at 0%%, got %s %d", snap.Status, snap.Progress)
	}
	if _, ok := store.Get("no-such-job"); ok {
		t.Fatal("unknown id should not resolve")
	}
}

func TestStore_FirstProgressStartsDownloading(t *testing.T) {
	store := NewStore()
	id := store.Create(testRequest())
	if err := store.SetProgress(id, 10, "1.00 MB/s", "01:00"); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	snap, _ := store.Get(id)
	if snap.Status != StatusDownloading {
		t.Fatalf("expected downloading, got %s", snap.Status)
	}
	if snap.Progress != 10 || snap.Speed != "1.00 MB/s" || snap.ETA != "01:00" {
		t.Fatalf("progress group not applied: %+v", snap)
	}
}

func TestStore_ProgressMonotonic(t *testing.T) {
	store := NewStore()
	id := store.Create(testRequest())
	_ = store.SetProgress(id, 50, "2.00 MB/s", "00:30")
	_ = store.SetProgress(id, 30, "9.00 MB/s", "00:05")
	snap, _ := store.Get(id)
	if snap.Progress != 50 {
		t.Fatalf("progress went backwards: %d", snap.Progress)
	}
	if snap.Speed != "2.00 MB/s" {
		t.Fatalf("stale update leaked through: %q", snap.Speed)
	}
}

func TestStore_ProcessingIgnoresLateProgress(t *testing.T) {
	store := NewStore()
	id := store.Create(testRequest())
	_ = store.SetProgress(id, 80, "", "")
	if err := store.MarkProcessing(id); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}
	if err := store.SetProgress(id, 90, "", ""); err != nil {
		t.Fatalf("late progress during processing should be dropped silently: %v", err)
	}
	snap, _ := store.Get(id)
	if snap.Status != StatusProcessing || snap.Progress != 100 {
		t.Fatalf("unexpected state after processing: %s %d", snap.Status, snap.Progress)
	}
}

func TestStore_TerminalStatesRejectMutation(t *testing.T) {
	store := NewStore()
	id := store.Create(testRequest())
	_ = store.SetProgress(id, 100, "", "")
	_ = store.MarkProcessing(id)
	if err := store.MarkDone(id, "/tmp/out.mp4", "A Title"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := store.SetProgress(id, 100, "", ""); !errors.Is(err, ErrJobFinished) {
		t.Fatalf("expected ErrJobFinished, got %v", err)
	}
	if err := store.Fail(id, "late failure"); !errors.Is(err, ErrJobFinished) {
		t.Fatalf("expected ErrJobFinished, got %v", err)
	}
	if err := store.MarkDone(id, "/tmp/other.mp4", "Other"); !errors.Is(err, ErrJobFinished) {
		t.Fatalf("expected ErrJobFinished, got %v", err)
	}
}

func TestStore_DoneRequiresProcessing(t *testing.T) {
	store := NewStore()
	id := store.Create(testRequest())
	if err := store.MarkDone(id, "/tmp/out.mp4", "Title"); err == nil {
		t.Fatal("done straight from queued must be rejected")
	}
}

func TestStore_FailFromAnyActiveState(t *testing.T) {
	store := NewStore()
	for _, advance := range []func(*Store, string){
		func(*Store, string) {},
		func(s *Store, id string) { _ = s.SetProgress(id, 5, "", "") },
		func(s *Store, id string) { _ = s.MarkProcessing(id) },
	} {
		id := store.Create(testRequest())
		advance(store, id)
		if err := store.Fail(id, "boom"); err != nil {
			t.Fatalf("Fail: %v", err)
		}
		snap, _ := store.Get(id)
		if snap.Status != StatusError || snap.Error != "boom" {
			t.Fatalf("unexpected failed snapshot: %+v", snap)
		}
	}
}

func TestStore_CompletedPollingIsIdempotent(t *testing.T) {
	store := NewStore()
	id := store.Create(testRequest())
	_ = store.SetProgress(id, 100, "", "")
	_ = store.MarkProcessing(id)
	_ = store.MarkDone(id, "/tmp/final.mp4", "Final Title")
	first, _ := store.Get(id)
	second, _ := store.Get(id)
	if first.FilePath != second.FilePath || first.DisplayTitle != second.DisplayTitle {
		t.Fatalf("polls disagree: %+v vs %+v", first, second)
	}
}

func TestStore_DuplicateSubmissionsAreIndependent(t *testing.T) {
	store := NewStore()
	a := store.Create(testRequest())
	b := store.Create(testRequest())
	if a == b {
		t.Fatal("duplicate submissions must get distinct ids")
	}
	_ = store.SetProgress(a, 40, "", "")
	_ = store.MarkProcessing(a)
	_ = store.MarkDone(a, "/tmp/a.mp4", "A")
	snapB, _ := store.Get(b)
	if snapB.Status != StatusQueued {
		t.Fatalf("sibling job was affected: %s", snapB.Status)
	}
}

func TestStore_ConcurrentProgressCallbacks(t *testing.T) {
	store := NewStore()
	id := store.Create(testRequest())
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(percent int) {
			defer wg.Done()
			_ = store.SetProgress(id, percent, fmt.Sprintf("%d B/s", percent), "")
		}(i)
	}
	wg.Wait()
	snap, _ := store.Get(id)
	if snap.Progress != 99 {
		t.Fatalf("expected max percent to win, got %d", snap.Progress)
	}
	if snap.Status != StatusDownloading {
		t.Fatalf("expected downloading, got %s", snap.Status)
	}
}
