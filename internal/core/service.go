package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/releasemerge/internal/archive"
	"github.com/JonMunkholm/releasemerge/internal/audit"
	"github.com/JonMunkholm/releasemerge/internal/component"
	"github.com/JonMunkholm/releasemerge/internal/config"
	"github.com/JonMunkholm/releasemerge/internal/delta"
	"github.com/JonMunkholm/releasemerge/internal/logging"
	"github.com/JonMunkholm/releasemerge/internal/merge"
	"github.com/JonMunkholm/releasemerge/internal/metrics"
	"github.com/JonMunkholm/releasemerge/internal/rf2"
	"golang.org/x/sync/errgroup"
)

// Deps holds the collaborators a Service runs with. Every field is optional.
type Deps struct {
	// Source supplies published values to merge-fix when no baseline
	// archive is given.
	Source component.Source
	Owners audit.OwnerLookup
	Sink   audit.Sink
	// Metrics receives run counters; nil disables them.
	Metrics *metrics.Metrics
}

// Service runs merge operations.
type Service struct {
	cfg  *config.Config
	deps Deps
}

// NewService creates a new Service instance.
func NewService(cfg *config.Config, deps Deps) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	return &Service{cfg: cfg, deps: deps}, nil
}

// ApplyRequest describes an apply-delta run.
type ApplyRequest struct {
	Base  string
	Delta string
	// PrimaryLocaleDelta is an optional second delta consulted for the
	// regional language refset override.
	PrimaryLocaleDelta string
	OutDir             string
	// EffectiveTime defaults to the token in the delta archive name.
	EffectiveTime string
	// PackageDir defaults to the configured package dir, then to the base
	// archive name with its effective time replaced.
	PackageDir string
}

// ApplyReport summarises a successful apply-delta run.
type ApplyReport struct {
	RunID         string
	Output        string
	EffectiveTime string
	PackageDir    string
	DeltaStats    delta.Stats
	Result        merge.ApplyResult
	Duration      time.Duration
}

// ApplyDelta merges the delta archive into the base package and writes the
// new package to OutDir. On failure nothing is left at the output path.
func (s *Service) ApplyDelta(ctx context.Context, req ApplyRequest) (report *ApplyReport, err error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		s.observeRun(OpApplyDelta, start, err)
		err = newRunError(OpApplyDelta, err)
	}()

	logger := logging.WithFields(ctx, "op", OpApplyDelta, "base", req.Base, "delta", req.Delta)
	logger.Info("merge started")

	effectiveTime, err := resolveEffectiveTime(req.EffectiveTime, req.Delta)
	if err != nil {
		return nil, err
	}
	packageDir, err := s.resolvePackageDir(req.PackageDir, req.Base, effectiveTime)
	if err != nil {
		return nil, err
	}

	opts := s.loadOptions(ctx, rf2.ReleaseDelta)
	var (
		ix, primary *delta.Index
		stats       delta.Stats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ix, stats, err = delta.Load(gctx, req.Delta, opts)
		return err
	})
	if req.PrimaryLocaleDelta != "" {
		g.Go(func() error {
			var err error
			primary, _, err = delta.Load(gctx, req.PrimaryLocaleDelta, opts)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.observeLoad("delta", stats)

	merger, err := merge.NewArchiveMerger(merge.ApplyOptions{
		Codec:                 opts.Codec,
		DesignatedLocale:      s.cfg.Release.DesignatedLocale,
		RegionalShortKey:      s.cfg.Release.RegionalShortKey,
		PrimaryLocaleShortKey: s.cfg.Release.PrimaryLocaleShortKey,
		PrimaryLocale:         primary,
		PackageDir:            packageDir,
		EffectiveTime:         effectiveTime,
		Audit:                 s.recorder(),
	})
	if err != nil {
		return nil, err
	}

	base, err := archive.Open(req.Base)
	if err != nil {
		return nil, err
	}
	defer base.Close()

	out, err := archive.Create(filepath.Join(req.OutDir, packageDir+".zip"))
	if err != nil {
		return nil, err
	}
	result, err := merger.Merge(ctx, base, ix, out)
	if err != nil {
		if abortErr := out.Abort(); abortErr != nil {
			logger.Warn("failed to remove partial output", "error", abortErr)
		}
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}
	s.observeApply(result)

	report = &ApplyReport{
		RunID:         logging.RunID(ctx),
		Output:        out.Dest(),
		EffectiveTime: effectiveTime,
		PackageDir:    packageDir,
		DeltaStats:    stats,
		Result:        result,
		Duration:      time.Since(start),
	}
	logger.Info("merge completed", "output", report.Output, "duration", report.Duration)
	return report, nil
}

// FixRequest describes a merge-fix run.
type FixRequest struct {
	Current string
	Fix     string
	Out     string
	// PublishedBefore defaults to the configured cutoff.
	PublishedBefore string
	// Baseline is an optional Snapshot package used as the component value
	// source in place of the configured one.
	Baseline string
}

// FixReport summarises a successful merge-fix run.
type FixReport struct {
	RunID    string
	Output   string
	Result   merge.FixResult
	Duration time.Duration
}

// MergeFix reconciles the fix delta with the current delta and writes the
// merged delta archive to Out.
func (s *Service) MergeFix(ctx context.Context, req FixRequest) (report *FixReport, err error) {
	ctx, cancel := s.runContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		s.observeRun(OpMergeFix, start, err)
		err = newRunError(OpMergeFix, err)
	}()

	logger := logging.WithFields(ctx, "op", OpMergeFix, "current", req.Current, "fix", req.Fix)
	logger.Info("merge started")

	cutoffText := req.PublishedBefore
	if cutoffText == "" {
		cutoffText = s.cfg.Merge.PublishedBefore
	}
	if cutoffText == "" {
		return nil, errors.New("published-before cutoff is required")
	}
	cutoff, err := merge.ParseEffectiveTime(cutoffText)
	if err != nil {
		return nil, fmt.Errorf("published-before: %w", err)
	}

	opts := s.loadOptions(ctx, rf2.ReleaseDelta)
	var (
		fix, current       *delta.Index
		fixStats, curStats delta.Stats
	)
	source := s.deps.Source
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fix, fixStats, err = delta.Load(gctx, req.Fix, opts)
		return err
	})
	g.Go(func() error {
		var err error
		current, curStats, err = delta.Load(gctx, req.Current, opts)
		return err
	})
	if req.Baseline != "" {
		g.Go(func() error {
			snapshot, err := component.LoadSnapshot(gctx, req.Baseline, opts.Codec, opts.Logger)
			if err != nil {
				return err
			}
			source = snapshot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.observeLoad("fix", fixStats)
	s.observeLoad("current", curStats)

	merger, err := merge.NewFieldMerger(merge.FixOptions{
		PublishedBefore: cutoff,
		Source:          source,
		Audit:           s.recorder(),
	})
	if err != nil {
		return nil, err
	}

	out, err := archive.Create(req.Out)
	if err != nil {
		return nil, err
	}
	result, err := merger.Merge(ctx, fix, current, out)
	if err != nil {
		if abortErr := out.Abort(); abortErr != nil {
			logger.Warn("failed to remove partial output", "error", abortErr)
		}
		return nil, err
	}
	if err := out.Commit(); err != nil {
		return nil, err
	}
	s.observeFix(result)

	report = &FixReport{
		RunID:    logging.RunID(ctx),
		Output:   out.Dest(),
		Result:   result,
		Duration: time.Since(start),
	}
	logger.Info("merge completed", "output", report.Output, "duration", report.Duration)
	return report, nil
}

// runContext tags ctx with a run id and applies the configured timeout.
func (s *Service) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if logging.RunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, logging.NewRunID())
	}
	if s.cfg.Merge.Timeout > 0 {
		return context.WithTimeout(ctx, s.cfg.Merge.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) loadOptions(ctx context.Context, only rf2.ReleaseType) delta.Options {
	return delta.Options{
		Codec:  s.cfg.Codec(),
		Only:   only,
		Logger: logging.FromContext(ctx),
	}
}

func (s *Service) recorder() *audit.Recorder {
	return audit.NewRecorder(s.deps.Sink, s.deps.Owners)
}

// resolveEffectiveTime returns the explicit target date, or the date carried
// by the delta archive name.
func resolveEffectiveTime(explicit, deltaPath string) (string, error) {
	source := explicit
	if source == "" {
		source = filepath.Base(deltaPath)
	}
	et, ok := rf2.EffectiveTime(source)
	if !ok {
		return "", fmt.Errorf("target effective time from %q: %w", source, rf2.ErrNoEffectiveTime)
	}
	return strings.TrimSuffix(et, "T"), nil
}

func (s *Service) resolvePackageDir(explicit, basePath, effectiveTime string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if s.cfg.Merge.PackageDir != "" {
		return s.cfg.Merge.PackageDir, nil
	}
	name := strings.TrimSuffix(filepath.Base(basePath), filepath.Ext(basePath))
	dir, err := rf2.ReplaceEffectiveTime(name, effectiveTime)
	if err != nil {
		return "", fmt.Errorf("derive package dir from base archive: %w", err)
	}
	return dir, nil
}

func (s *Service) observeRun(op string, start time.Time, err error) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveRun(op, start, err)
	}
}

func (s *Service) observeLoad(input string, stats delta.Stats) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveLoad(input, stats.Rows, stats.BytesRead)
	}
}

func (s *Service) observeApply(r merge.ApplyResult) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	m.AddRows("passed", r.Passed)
	m.AddRows("replaced", r.Replaced)
	m.AddRows("appended", r.Appended)
	m.AddRows("new", r.New)
	m.AddRows("suppressed", r.Suppressed)
	m.AddRows("dropped", r.Dropped)
	m.AddRows("overridden", r.Overridden)
	m.UnmergedKeysTotal.Add(float64(len(r.Unmerged)))
	m.OutputMembersTotal.Add(float64(r.Members))
}

func (s *Service) observeFix(r merge.FixResult) {
	m := s.deps.Metrics
	if m == nil {
		return
	}
	for _, kind := range []merge.OutcomeKind{
		merge.OutcomeEmitFix,
		merge.OutcomeDiscard,
		merge.OutcomeTimestampCollapsed,
		merge.OutcomeMerged,
	} {
		m.AddFixOutcome(string(kind), r.Outcomes[kind])
	}
	m.OutputMembersTotal.Add(float64(r.Members))
}
