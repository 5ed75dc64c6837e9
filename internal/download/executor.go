package download

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fetchkit/fetchd/internal/engine"
	"github.com/fetchkit/fetchd/internal/history"
	"github.com/fetchkit/fetchd/internal/jobs"
	"github.com/fetchkit/fetchd/internal/output"
	"github.com/fetchkit/fetchd/internal/platform"
	"github.com/fetchkit/fetchd/internal/policy"
	"github.com/fetchkit/fetchd/internal/quality"
)

// run executes one job through the full pipeline: short-link expansion,
// capability probe, quality resolution, policy build, engine download,
// title resolution. Any failure along the way marks the job as errored;
// there is no partial artifact referenced afterwards.
func (s *Service) run(id string, req jobs.Request) {
	log := output.GetLogger("executor").With().Str("job", id).Logger()
	ctx := context.Background()

	url := req.URL
	if platform.IsShortLink(url) {
		url = platform.ExpandShortLink(ctx, s.httpClient, url)
		log.Debug().Str("resolved", url).Msg("Expanded short link")
	}

	pol := policy.Build(req.Platform, s.settings.CookiesEnabled())
	cookies := ""
	if pol.UseCookies {
		cookies = s.settings.CookieFile()
	}
	probeOpts := engine.Options{
		SocketTimeoutSec: pol.SocketTimeoutSec,
		CookiesFile:      cookies,
	}

	// Probing is best-effort: tier tokens fall back to the static height
	// table, only explicit numeric requests need real capability data.
	capability := quality.StaticTiers()
	var meta engine.Metadata
	probe, err := s.eng.Probe(ctx, url, probeOpts)
	if err != nil {
		log.Warn().Err(err).Str("url", req.URL).Msg("Probe failed, using static height tiers")
	} else {
		capability = quality.Capability{Probed: true, Heights: probe.Heights, Formats: probe.Formats}
		meta = probe.Meta
	}

	spec, err := quality.Resolve(req.Platform, quality.Kind(req.Kind), req.Quality, capability)
	if err != nil {
		s.fail(id, req.Platform, req.URL, err)
		return
	}

	opts := composeOptions(spec, pol, cookies, filepath.Join(s.settings.DownloadDir(), id+".%(ext)s"))
	result, err := s.eng.Download(ctx, url, opts, func(p engine.Progress) {
		s.relayProgress(id, p)
	})
	if err != nil {
		s.fail(id, req.Platform, req.URL, err)
		return
	}

	if err := s.store.MarkProcessing(id); err != nil && !errors.Is(err, jobs.ErrJobFinished) {
		log.Error().Err(err).Msg("Could not enter processing state")
	}
	if result.Meta.Title != "" {
		meta.Title = result.Meta.Title
	}
	title := platform.ResolveTitle(req.TitleOverride, meta.Title, meta.Description, req.Platform)

	if s.history != nil {
		err := s.history.Append(history.Entry{
			JobID:       id,
			URL:         req.URL,
			Platform:    req.Platform,
			Title:       title,
			FilePath:    result.FilePath,
			CompletedAt: time.Now(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("Could not append history entry")
		}
	}

	if err := s.store.MarkDone(id, result.FilePath, title); err != nil {
		log.Panic().Err(err).Msg("Store rejected terminal update, job state corrupted")
	}
	log.Info().Str("title", title).Str("file", result.FilePath).Msg("Job completed")
}

// relayProgress converts one engine progress event into a store update.
func (s *Service) relayProgress(id string, p engine.Progress) {
	if p.Phase == engine.PhaseFinished {
		_ = s.store.MarkProcessing(id)
		return
	}
	percent := 0
	if p.TotalBytes > 0 {
		percent = int(p.DownloadedBytes * 100 / p.TotalBytes)
	}
	_ = s.store.SetProgress(id, percent, output.FormatSpeed(p.Speed), output.FormatETA(p.ETA))
}

// fail records a terminal error with enough context to diagnose the
// platform and URL involved. A store that cannot record the error means
// the registry is corrupted, which the core does not try to survive.
func (s *Service) fail(id string, p platform.Platform, url string, cause error) {
	log := output.GetLogger("executor").With().Str("job", id).Logger()
	msg := fmt.Sprintf("%s download failed for %s: %v", p, url, cause)
	log.Error().Str("url", url).Err(cause).Msg("Job failed")
	if err := s.store.Fail(id, msg); err != nil {
		log.Panic().Err(err).Msg("Store rejected error update, job state corrupted")
	}
}

func composeOptions(spec quality.Spec, pol policy.Policy, cookies, outputTemplate string) engine.Options {
	return engine.Options{
		Selector:            spec.Selector,
		MergeFormat:         spec.MergeFormat,
		ExtractAudio:        spec.ExtractAudio,
		AudioFormat:         spec.AudioFormat,
		AudioQuality:        spec.AudioQuality,
		FastStart:           spec.FastStart,
		OutputTemplate:      outputTemplate,
		ChunkSizeBytes:      pol.ChunkSizeBytes,
		ConcurrentFragments: pol.ConcurrentFragments,
		Retries:             pol.Retries,
		FragmentRetries:     pol.FragmentRetries,
		SocketTimeoutSec:    pol.SocketTimeoutSec,
		CookiesFile:         cookies,
	}
}
