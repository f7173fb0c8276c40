package extraction

import (
	"context"
	"sync"
	"time"

	"radiex/internal/cases"
	"radiex/internal/config"
)

// StubExtractor is an in-process Extractor for tests. Behavior is keyed by
// case id; unknown ids succeed with the default feature set.
type StubExtractor struct {
	// Volumes maps mask paths to reported ROI volumes. Missing entries
	// report DefaultVolume.
	Volumes       map[string]float64
	DefaultVolume float64

	// Errors maps case ids to the error Extract should return.
	Errors map[string]error

	// Features maps case ids to the record payload. Missing entries get
	// a single "stub_feature" value of 1.
	Features map[string][]FeatureValue

	// Delay stalls every Extract call, for cancellation tests.
	Delay time.Duration

	mu    sync.Mutex
	calls []string
}

func (s *StubExtractor) Extract(ctx context.Context, c cases.Case, rc *config.RunConfig, scratchDir string) (*Record, error) {
	s.mu.Lock()
	s.calls = append(s.calls, c.ID)
	s.mu.Unlock()

	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := s.Errors[c.ID]; ok {
		return nil, err
	}

	features := s.Features[c.ID]
	if features == nil {
		features = []FeatureValue{{Name: "stub_feature", Value: 1}}
	}
	return &Record{
		CaseID:      c.ID,
		LesionGroup: c.LesionGroup,
		ROIVolume:   s.volumeFor(c.MaskPath),
		Features:    features,
	}, nil
}

func (s *StubExtractor) MaskVolume(ctx context.Context, maskPath string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.volumeFor(maskPath), nil
}

func (s *StubExtractor) volumeFor(maskPath string) float64 {
	if v, ok := s.Volumes[maskPath]; ok {
		return v
	}
	if s.DefaultVolume > 0 {
		return s.DefaultVolume
	}
	return 100
}

// Calls returns the case ids Extract has been invoked with, in call order.
func (s *StubExtractor) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
