package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"radiex/internal/cases"
	"radiex/internal/config"
	"radiex/internal/logging"
)

const defaultCancelGrace = 30 * time.Second

// Scratch hands out disjoint per-case scratch directories.
type Scratch interface {
	JobDir(caseID string) (string, error)
}

// Pool executes one job per case with bounded concurrency. A job failure
// never propagates to sibling jobs; every admitted job ends as exactly one
// Outcome. Repeated resource failures abort the run early because they
// signal a broken environment, not bad case data.
type Pool struct {
	Workers            int
	MinROIVolume       float64
	CancelGrace        time.Duration
	ResourceErrorLimit int

	Extractor Extractor
	Scratch   Scratch
	Logger    *slog.Logger
}

// Run executes all cases and returns the outcome snapshot ordered by
// discovery order, so reruns with different worker counts report
// identically. observe, when non-nil, is called once per outcome as jobs
// complete; calls are serialized but completion order is not defined.
//
// On cancellation no further jobs are admitted; in-flight jobs get
// CancelGrace to finish and are dropped from the snapshot if they do not.
func (p *Pool) Run(ctx context.Context, list []cases.Case, rc *config.RunConfig, observe func(Outcome)) []Outcome {
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithComponent(logger, "pool")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu             sync.Mutex
		results        = make([]*Outcome, len(list))
		resourceStreak int
	)

	record := func(idx int, out Outcome) {
		mu.Lock()
		defer mu.Unlock()
		results[idx] = &out

		if out.Status == StatusFailed {
			logger.Warn("job failed",
				logging.String(logging.FieldCaseID, out.CaseID),
				logging.String(logging.FieldErrorKind, string(out.Kind)),
				logging.String("message", out.Message))
		}
		if out.Status == StatusFailed && out.Kind == KindResource {
			resourceStreak++
			if p.ResourceErrorLimit > 0 && resourceStreak >= p.ResourceErrorLimit {
				logger.Error("aborting run after repeated resource failures",
					logging.Int("consecutive", resourceStreak))
				cancel()
			}
		} else {
			resourceStreak = 0
		}
		if observe != nil {
			observe(out)
		}
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				record(idx, p.runJob(runCtx, list[idx], rc, logger))
			}
		}()
	}

feed:
	for idx := range list {
		select {
		case jobs <- idx:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-runCtx.Done():
		grace := p.CancelGrace
		if grace <= 0 {
			grace = defaultCancelGrace
		}
		select {
		case <-done:
		case <-time.After(grace):
			logger.Warn("abandoning in-flight jobs after cancellation grace period",
				logging.Duration("grace", grace))
		}
	}

	mu.Lock()
	defer mu.Unlock()
	snapshot := make([]Outcome, 0, len(list))
	for _, out := range results {
		if out != nil {
			snapshot = append(snapshot, *out)
		}
	}
	return snapshot
}

// runJob drives one case to a terminal outcome. Panics from the extractor
// are contained here so one broken case cannot take the pool down.
func (p *Pool) runJob(ctx context.Context, c cases.Case, rc *config.RunConfig, logger *slog.Logger) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked",
				logging.String(logging.FieldCaseID, c.ID),
				logging.Any("panic", r))
			out = Outcome{
				CaseID:   c.ID,
				Status:   StatusFailed,
				Kind:     KindExtraction,
				Message:  fmt.Sprintf("panic during extraction: %v", r),
				Duration: time.Since(start),
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		return p.failure(c, start, err)
	}

	scratchDir, err := p.Scratch.JobDir(c.ID)
	if err != nil {
		return Outcome{
			CaseID:   c.ID,
			Status:   StatusFailed,
			Kind:     KindResource,
			Message:  err.Error(),
			Duration: time.Since(start),
		}
	}

	volume, err := p.Extractor.MaskVolume(ctx, c.MaskPath)
	if err != nil {
		return p.failure(c, start, err)
	}
	if volume < p.MinROIVolume {
		logger.Info("skipping case below minimum roi volume",
			logging.String(logging.FieldCaseID, c.ID),
			logging.Float64("volume_mm3", volume),
			logging.Float64("minimum_mm3", p.MinROIVolume))
		return Outcome{
			CaseID:   c.ID,
			Status:   StatusSkipped,
			Message:  fmt.Sprintf("roi volume %g mm3 below minimum %g mm3", volume, p.MinROIVolume),
			Duration: time.Since(start),
		}
	}

	rec, err := p.Extractor.Extract(ctx, c, rc, scratchDir)
	if err != nil {
		return p.failure(c, start, err)
	}
	rec.CaseID = c.ID
	rec.LesionGroup = c.LesionGroup
	if rec.ROIVolume == 0 {
		rec.ROIVolume = volume
	}
	if rec.Duration == 0 {
		rec.Duration = time.Since(start)
	}

	return Outcome{
		CaseID:   c.ID,
		Status:   StatusSuccess,
		Record:   rec,
		Duration: time.Since(start),
	}
}

func (p *Pool) failure(c cases.Case, start time.Time, err error) Outcome {
	return Outcome{
		CaseID:   c.ID,
		Status:   StatusFailed,
		Kind:     kindFor(err),
		Message:  err.Error(),
		Duration: time.Since(start),
	}
}
