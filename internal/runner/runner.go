package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"radiex/internal/aggregate"
	"radiex/internal/cases"
	"radiex/internal/config"
	"radiex/internal/extraction"
	"radiex/internal/logging"
	"radiex/internal/report"
	"radiex/internal/runstore"
	"radiex/internal/scratch"
)

// Input selects what one run operates on. Exactly one of the single-case
// pair or the batch pair must be set. OnlyCases, when non-empty, restricts
// the resolved cases to the named ids (used for failed-subset retries).
type Input struct {
	ImagePath string
	MaskPath  string

	ImageDir string
	MaskDir  string

	OnlyCases []string
}

func (in Input) batch() bool {
	return in.ImageDir != ""
}

// Report is the result of one completed run.
type Report struct {
	RunID      string
	OutputDir  string
	StartedAt  time.Time
	FinishedAt time.Time

	Submitted int
	Succeeded int
	Skipped   int
	Failed    int

	Outcomes  []extraction.Outcome
	Unmatched []cases.Unmatched
	Table     aggregate.Table
	Failures  []aggregate.Failure

	// CompletedWithErrors marks a run that finished but carries failed or
	// unmatched cases. It is a report state, not an error.
	CompletedWithErrors bool
}

// Runner executes runs against a resolved configuration. Extractor and
// Store may be nil: the extractor defaults to the configured external
// tool, and a nil store skips history persistence.
type Runner struct {
	Config    *config.RunConfig
	Extractor extraction.Extractor
	Store     *runstore.Store
	Logger    *slog.Logger

	// Observe, when non-nil, receives each outcome as jobs complete.
	Observe func(extraction.Outcome)
}

// Run executes one full extraction run. Fatal conditions (bad inputs, no
// cases, unusable scratch space) return an error before any job runs;
// per-case failures end up in the report instead.
func (r *Runner) Run(ctx context.Context, in Input) (*Report, error) {
	rc := r.Config
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "runner")

	startedAt := time.Now().UTC()
	runID := newRunID(startedAt)
	logger = logger.With(logging.String(logging.FieldRunID, runID))

	list, unmatched, err := r.resolveCases(in)
	if err != nil {
		return nil, err
	}
	if len(in.OnlyCases) > 0 {
		list = filterCases(list, in.OnlyCases)
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: none of the requested case ids resolved", cases.ErrNoCasesFound)
		}
	}
	logger.Info("resolved cases",
		logging.Int("matched", len(list)),
		logging.Int("unmatched", len(unmatched)))

	if rc.ScratchSweepAge > 0 {
		if removed, err := scratch.SweepStale(rc.ScratchDir, rc.ScratchSweepAge); err != nil {
			logger.Warn("stale scratch sweep failed", logging.Error(err))
		} else if removed > 0 {
			logger.Info("swept stale scratch directories", logging.Int("removed", removed))
		}
	}

	cache := scratch.New(rc.ScratchDir)
	defer func() {
		if err := cache.Cleanup(); err != nil {
			logger.Warn("scratch cleanup failed", logging.Error(err))
		}
	}()
	// Fail before scheduling anything if scratch space is unusable.
	if _, err := cache.RunDir(); err != nil {
		return nil, fmt.Errorf("%w: %v", extraction.ErrResource, err)
	}

	extractor := r.Extractor
	if extractor == nil {
		extractor = extraction.NewToolExtractor(rc, r.Logger)
	}

	pool := &extraction.Pool{
		Workers:            rc.Workers,
		MinROIVolume:       rc.MinROIVolume,
		CancelGrace:        rc.CancelGrace,
		ResourceErrorLimit: rc.ResourceErrorLimit,
		Extractor:          extractor,
		Scratch:            cache,
		Logger:             r.Logger,
	}
	outcomes := pool.Run(ctx, list, rc, r.Observe)

	table, failures := aggregate.Build(outcomes, unmatched, aggregate.Options{
		AggregateLesions: rc.AggregateLesions && rc.ROISelection == config.ROIPerRegion,
	})
	warnings := report.CollectWarnings(outcomes)

	outputDir := filepath.Join(rc.OutputDir, runID)
	if err := report.Write(outputDir, table, failures, warnings, rc); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	rep := &Report{
		RunID:      runID,
		OutputDir:  outputDir,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Submitted:  len(list),
		Outcomes:   outcomes,
		Unmatched:  unmatched,
		Table:      table,
		Failures:   failures,
	}
	for _, out := range outcomes {
		switch out.Status {
		case extraction.StatusSuccess:
			rep.Succeeded++
		case extraction.StatusSkipped:
			rep.Skipped++
		case extraction.StatusFailed:
			rep.Failed++
		}
	}
	rep.CompletedWithErrors = rep.Failed > 0 || len(unmatched) > 0

	if err := r.persist(ctx, in, rep); err != nil {
		logger.Warn("run history not saved", logging.Error(err))
	}

	logger.Info("run complete",
		logging.Int("submitted", rep.Submitted),
		logging.Int("succeeded", rep.Succeeded),
		logging.Int("skipped", rep.Skipped),
		logging.Int("failed", rep.Failed),
		logging.String("output_dir", outputDir))
	return rep, nil
}

func (r *Runner) resolveCases(in Input) ([]cases.Case, []cases.Unmatched, error) {
	if in.batch() {
		return cases.Resolve(in.ImageDir, in.MaskDir)
	}
	list, err := cases.Single(in.ImagePath, in.MaskPath)
	return list, nil, err
}

func (r *Runner) persist(ctx context.Context, in Input, rep *Report) error {
	if r.Store == nil {
		return nil
	}

	params, err := json.Marshal(flattenParams(r.Config))
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}

	run := runstore.Run{
		ID:                  rep.RunID,
		Mode:                string(r.Config.Mode),
		StartedAt:           rep.StartedAt,
		FinishedAt:          rep.FinishedAt,
		Submitted:           rep.Submitted,
		Succeeded:           rep.Succeeded,
		Skipped:             rep.Skipped,
		Failed:              rep.Failed,
		ImageInput:          firstNonEmpty(in.ImageDir, in.ImagePath),
		MaskInput:           firstNonEmpty(in.MaskDir, in.MaskPath),
		OutputDir:           rep.OutputDir,
		ParamsJSON:          string(params),
		CompletedWithErrors: rep.CompletedWithErrors,
	}

	// The store keys outcomes by (run_id, case_id). Unmatched entries keep
	// their relative path as the id so an image sharing a matched case's
	// stem (a.nii.gz next to a.nrrd) cannot collide with it.
	seen := make(map[string]bool, len(rep.Outcomes)+len(rep.Unmatched))
	uniqueID := func(id string) string {
		out := id
		for n := 2; seen[out]; n++ {
			out = fmt.Sprintf("%s#%d", id, n)
		}
		seen[out] = true
		return out
	}

	outcomes := make([]runstore.CaseOutcome, 0, len(rep.Outcomes)+len(rep.Unmatched))
	for _, out := range rep.Outcomes {
		outcomes = append(outcomes, runstore.CaseOutcome{
			CaseID:     uniqueID(out.CaseID),
			Status:     string(out.Status),
			Kind:       string(out.Kind),
			Message:    out.Message,
			DurationMS: out.Duration.Milliseconds(),
		})
	}
	for _, u := range rep.Unmatched {
		outcomes = append(outcomes, runstore.CaseOutcome{
			CaseID:  uniqueID(firstNonEmpty(u.RelPath, u.ID)),
			Status:  string(extraction.StatusFailed),
			Kind:    string(extraction.KindMatch),
			Message: u.Reason,
		})
	}

	return r.Store.SaveRun(ctx, run, outcomes)
}

func flattenParams(rc *config.RunConfig) map[string]string {
	params := make(map[string]string)
	for _, kv := range rc.Flatten() {
		params[kv.Key] = kv.Value
	}
	return params
}

func filterCases(list []cases.Case, ids []string) []cases.Case {
	// Run history stores unmatched entries under their relative path, so
	// retry inputs may carry either form; fold both onto the case id.
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
		wanted[cases.IDFor(id)] = true
	}
	out := make([]cases.Case, 0, len(ids))
	for _, c := range list {
		if wanted[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// newRunID combines the start timestamp with a short random suffix so run
// directories sort chronologically and never collide.
func newRunID(startedAt time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return startedAt.Format("20060102-150405") + "-" + suffix
}
