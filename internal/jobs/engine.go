// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/epgmerge/internal/cache"
	"github.com/ManuGH/epgmerge/internal/epg"
	"github.com/ManuGH/epgmerge/internal/fetch"
	"github.com/ManuGH/epgmerge/internal/heuristics"
	xglog "github.com/ManuGH/epgmerge/internal/log"
	"github.com/ManuGH/epgmerge/internal/metrics"
	platformnet "github.com/ManuGH/epgmerge/internal/platform/net"
	"github.com/ManuGH/epgmerge/internal/progress"
	"github.com/ManuGH/epgmerge/internal/telemetry"
)

const tracerName = "github.com/ManuGH/epgmerge/internal/jobs"

// EngineConfig holds the timing knobs of a FetchAndMerge run.
type EngineConfig struct {
	// SourceTimeout bounds one source pipeline (download plus decode).
	SourceTimeout time.Duration
	// Deadline optionally bounds the whole run. Sources still running when it
	// expires fail with a timeout; the run itself still merges.
	Deadline time.Duration
	// TimeParser interprets XMLTV timestamps.
	TimeParser epg.TimeParser
	// TickInterval drives the synthetic parse progress. Zero uses the default.
	TickInterval time.Duration
	// Clock replaces the wall clock for parse progress in tests.
	Clock progress.Clock
}

// Engine runs the fetch, decode and merge pipeline for a list of sources.
type Engine struct {
	cfg        EngineConfig
	fetcher    *fetch.Fetcher
	heuristics heuristics.Store
	cache      *cache.Store
}

// NewEngine wires an Engine. heur and store may be nil, in which case
// observations are not persisted and merged results are not cached.
func NewEngine(cfg EngineConfig, fetcher *fetch.Fetcher, heur heuristics.Store, store *cache.Store) *Engine {
	if fetcher == nil {
		fetcher = fetch.New(fetch.Options{Sizes: heur})
	}
	return &Engine{cfg: cfg, fetcher: fetcher, heuristics: heur, cache: store}
}

// SourceReport summarizes one source pipeline.
type SourceReport struct {
	URL        string        `json:"url"` // sanitized
	OK         bool          `json:"ok"`
	Encoding   string        `json:"encoding,omitempty"`
	WireBytes  int64         `json:"wire_bytes,omitempty"`
	Bytes      int64         `json:"bytes,omitempty"`
	Channels   int           `json:"channels"`
	Programmes int           `json:"programmes"`
	Dropped    int           `json:"dropped"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Result is the outcome of a successful FetchAndMerge.
type Result struct {
	Schedule  epg.Schedule
	Names     epg.ChannelNameIndex
	Sources   []SourceReport
	Conflicts []epg.NameConflict
	StartedAt time.Time
	Duration  time.Duration
}

// AllSourcesFailed reports whether sources were configured and none of them
// contributed. Such a result must not replace previously merged data.
func (r *Result) AllSourcesFailed() bool {
	return len(r.Sources) > 0 && countFailed(r.Sources) == len(r.Sources)
}

// Describe builds descriptors for urls, filling expected sizes and parse
// durations from the heuristics store. Lookup failures leave the fields zero.
func (e *Engine) Describe(ctx context.Context, urls []string) []epg.SourceDescriptor {
	out := make([]epg.SourceDescriptor, len(urls))
	for i, u := range urls {
		out[i] = epg.SourceDescriptor{URL: u}
		if e.heuristics == nil {
			continue
		}
		obs, ok, err := e.heuristics.Get(ctx, u)
		if err != nil {
			metrics.IncHeuristicsError("get")
			logger := xglog.WithComponentFromContext(ctx, "jobs")
			logger.Debug().
				Err(err).
				Str(xglog.FieldSourceURL, platformnet.SanitizeURL(u)).
				Msg("heuristics lookup failed")
			continue
		}
		if ok {
			out[i].ExpectedByteSize = obs.ByteSize
			out[i].ExpectedParseDuration = obs.ParseDuration
		}
	}
	return out
}

type sourceResult struct {
	partial epg.Partial
	report  SourceReport
}

// FetchAndMerge fetches every source concurrently, decodes each into a
// partial schedule and merges the partials in source order. onProgress
// receives the monotonic overall fraction and ends at 1.0 on success.
//
// Failed sources contribute nothing and are listed in Result.Sources. A run
// in which every source failed is not cached (see Result.AllSourcesFailed). The
// only error returned is ctx.Err() after cancellation; in that case the sink
// is silent from the moment cancellation is observed and nothing is cached.
func (e *Engine) FetchAndMerge(ctx context.Context, sources []epg.SourceDescriptor, onProgress progress.Sink) (*Result, error) {
	started := time.Now()
	logger := xglog.WithComponentFromContext(ctx, "jobs")

	if len(sources) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(1)
		}
		return &Result{
			Schedule:  epg.Schedule{},
			Names:     epg.ChannelNameIndex{},
			Sources:   []SourceReport{},
			StartedAt: started,
		}, nil
	}

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "epg.fetch_and_merge",
		trace.WithAttributes(attribute.Int(telemetry.EPGSourcesKey, len(sources))))
	defer span.End()

	logger.Info().
		Str(xglog.FieldEvent, "refresh.start").
		Int(xglog.FieldSources, len(sources)).
		Msg("starting EPG refresh")

	runCtx := ctx
	if e.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Deadline)
		defer cancel()
	}

	agg := progress.NewAggregator(ctx, len(sources), func(f float64) {
		metrics.SetRefreshProgress(f)
		if onProgress != nil {
			onProgress(f)
		}
	})

	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup
	for i, desc := range sources {
		wg.Go(func() {
			results[i] = e.runSource(runCtx, i, desc, agg.Reporter(i))
		})
	}
	wg.Wait()
	agg.Close()

	if err := ctx.Err(); err != nil {
		metrics.RecordRefresh(true, 0, 0, time.Since(started))
		telemetry.RecordError(span, err, "cancelled")
		logger.Info().
			Str(xglog.FieldEvent, "refresh.cancelled").
			Int64(xglog.FieldDurationMS, time.Since(started).Milliseconds()).
			Msg("EPG refresh cancelled")
		return nil, err
	}

	parts := make([]epg.Partial, len(results))
	reports := make([]SourceReport, len(results))
	for i, r := range results {
		parts[i] = r.partial
		reports[i] = r.report
	}

	sched, names, conflicts := epg.MergeWithConflicts(parts)
	for _, c := range conflicts {
		logger.Debug().
			Str(xglog.FieldEvent, "merge.name_conflict").
			Str("name", c.Name).
			Str("previous", c.Previous).
			Str("winner", c.Winner).
			Msg("display name claimed by several channels")
	}
	metrics.IncNameConflicts(len(conflicts))

	res := &Result{
		Schedule:  sched,
		Names:     names,
		Sources:   reports,
		Conflicts: conflicts,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	programmes := sched.Programmes()
	span.SetAttributes(telemetry.MergeAttributes(len(sources), len(sched), programmes, len(names), len(conflicts))...)

	if res.AllSourcesFailed() {
		metrics.RecordRefreshFailed(res.Duration)
		telemetry.RecordError(span, ErrAllSourcesFailed, "failed")
		logger.Warn().
			Str(xglog.FieldEvent, "refresh.all_failed").
			Int(xglog.FieldSources, len(sources)).
			Int64(xglog.FieldDurationMS, res.Duration.Milliseconds()).
			Msg("every source failed, keeping previous schedule")
		return res, nil
	}

	if e.cache != nil {
		if err := e.cache.Save(ctx, sched, names); err != nil {
			logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "cache.save_failed").
				Str(xglog.FieldPath, e.cache.Path()).
				Msg("failed to persist merged schedule")
		}
	}

	metrics.RecordRefresh(false, len(sched), programmes, res.Duration)
	logger.Info().
		Str(xglog.FieldEvent, "refresh.success").
		Int(xglog.FieldSources, len(sources)).
		Int("failed_sources", countFailed(reports)).
		Int(xglog.FieldChannels, len(sched)).
		Int(xglog.FieldProgrammes, programmes).
		Int(xglog.FieldNames, len(names)).
		Int64(xglog.FieldDurationMS, res.Duration.Milliseconds()).
		Msg("EPG refresh completed")

	return res, nil
}

// runSource executes fetch then decode for one source. It never returns an
// error; failures produce an empty partial and a report carrying the reason.
// The source is reported as complete in every case.
func (e *Engine) runSource(ctx context.Context, index int, desc epg.SourceDescriptor, report func(float64)) sourceResult {
	started := time.Now()
	safeURL := platformnet.SanitizeURL(desc.URL)
	rep := SourceReport{URL: safeURL}

	if e.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.SourceTimeout)
		defer cancel()
	}
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "epg.source",
		trace.WithAttributes(telemetry.SourceAttributes(safeURL, index, e.cfg.SourceTimeout.Milliseconds())...))
	defer span.End()

	logger := xglog.WithComponentFromContext(ctx, "jobs").With().
		Str(xglog.FieldSourceURL, safeURL).
		Int(xglog.FieldSourceIndex, index).
		Logger()

	opts := []progress.TrackerOption{progress.WithTickInterval(e.cfg.TickInterval)}
	if e.cfg.Clock != nil {
		opts = append(opts, progress.WithClock(e.cfg.Clock))
	}
	tracker := progress.NewTracker(ctx, report, desc.ParseEstimate(), opts...)

	fail := func(err error, kind string) sourceResult {
		tracker.EndParse()
		report(1)
		rep.Error = err.Error()
		rep.Duration = time.Since(started)
		metrics.ObserveSourcePipeline(false, rep.Duration)
		telemetry.RecordError(span, err, kind)
		if !errors.Is(err, context.Canceled) {
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "source.failed").
				Str("reason", kind).
				Msg("source skipped")
		}
		return sourceResult{partial: epg.Partial{}, report: rep}
	}

	payload, err := e.fetcher.Fetch(ctx, desc, tracker.Download)
	if err != nil {
		return fail(err, fetch.Outcome(err))
	}
	defer func() {
		if cerr := payload.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("remove scratch payload")
		}
	}()
	rep.Encoding = string(payload.Encoding)
	rep.WireBytes = payload.WireBytes
	rep.Bytes = payload.Bytes
	span.SetAttributes(telemetry.PayloadAttributes(rep.Encoding, rep.WireBytes, rep.Bytes)...)

	tracker.BeginParse()
	part, stats, err := epg.NewDecoder(e.cfg.TimeParser).Decode(ctx, payload)
	parseDur := tracker.EndParse()
	metrics.AddProgrammesDropped(stats.Dropped)
	if err != nil {
		if ctx.Err() == nil {
			metrics.IncSourceDecodeFailure()
		}
		return fail(err, "decode")
	}

	e.recordParseDuration(ctx, desc.URL, parseDur)
	tracker.Done()

	rep.OK = true
	rep.Channels = len(part.Schedule)
	rep.Programmes = stats.Programmes
	rep.Dropped = stats.Dropped
	rep.Duration = time.Since(started)
	metrics.ObserveSourcePipeline(true, rep.Duration)

	logger.Debug().
		Str(xglog.FieldEvent, "source.decoded").
		Int(xglog.FieldChannels, rep.Channels).
		Int(xglog.FieldProgrammes, rep.Programmes).
		Int(xglog.FieldNames, stats.Names).
		Int("dropped", stats.Dropped).
		Dur("parse", parseDur).
		Msg("source decoded")

	return sourceResult{partial: part, report: rep}
}

func (e *Engine) recordParseDuration(ctx context.Context, url string, d time.Duration) {
	if e.heuristics == nil || d <= 0 {
		return
	}
	if err := e.heuristics.RecordParseDuration(ctx, url, d); err != nil {
		metrics.IncHeuristicsError("record_duration")
		logger := xglog.WithComponentFromContext(ctx, "jobs")
		logger.Debug().Err(err).Msg("record parse duration")
	}
}

func countFailed(reports []SourceReport) int {
	n := 0
	for _, r := range reports {
		if !r.OK {
			n++
		}
	}
	return n
}
