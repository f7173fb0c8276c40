package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"radiex/internal/cases"
	"radiex/internal/config"
	"radiex/internal/logging"
)

var commandContext = exec.CommandContext

// resourceExitCode is the exit status the extraction tool uses to signal
// environment exhaustion (memory, disk) rather than bad case data.
const resourceExitCode = 3

// ToolExtractor invokes the configured external feature-extraction command
// once per call. Concurrent use is safe because every invocation gets its
// own process and scratch directory.
type ToolExtractor struct {
	command string
	timeout time.Duration
	logger  *slog.Logger
}

// NewToolExtractor builds the extractor client for a resolved run.
func NewToolExtractor(rc *config.RunConfig, logger *slog.Logger) *ToolExtractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ToolExtractor{
		command: rc.ExtractorCommand,
		timeout: rc.ExtractorTimeout,
		logger:  logging.WithComponent(logger, "extractor"),
	}
}

type toolResult struct {
	Features  []FeatureValue `json:"features"`
	ROIVolume float64        `json:"roi_volume"`
	Warnings  []string       `json:"warnings"`
}

// Extract runs `<command> extract` for one case. The resolved parameters
// travel as a JSON file inside the job's scratch directory.
func (t *ToolExtractor) Extract(ctx context.Context, c cases.Case, rc *config.RunConfig, scratchDir string) (*Record, error) {
	start := time.Now()

	paramsPath := filepath.Join(scratchDir, "params.json")
	if err := writeParams(paramsPath, rc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResource, err)
	}

	args := []string{
		"extract",
		"--image", c.ImagePath,
		"--mask", c.MaskPath,
		"--scratch", scratchDir,
		"--params", paramsPath,
	}
	t.logger.Debug("invoking extractor",
		logging.String(logging.FieldCaseID, c.ID),
		logging.String("command", t.command))

	output, err := t.run(ctx, args)
	if err != nil {
		return nil, err
	}

	var result toolResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed extractor output: %v", ErrExtraction, err)
	}
	if len(result.Features) == 0 {
		return nil, fmt.Errorf("%w: extractor returned no features", ErrExtraction)
	}

	return &Record{
		CaseID:      c.ID,
		LesionGroup: c.LesionGroup,
		ROIVolume:   result.ROIVolume,
		Features:    result.Features,
		Warnings:    result.Warnings,
		Duration:    time.Since(start),
	}, nil
}

// MaskVolume runs `<command> volume` to measure a mask's effective ROI
// volume before extraction is attempted.
func (t *ToolExtractor) MaskVolume(ctx context.Context, maskPath string) (float64, error) {
	output, err := t.run(ctx, []string{"volume", "--mask", maskPath})
	if err != nil {
		return 0, err
	}
	var result toolResult
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, fmt.Errorf("%w: malformed volume output: %v", ErrExtraction, err)
	}
	return result.ROIVolume, nil
}

func (t *ToolExtractor) run(ctx context.Context, args []string) ([]byte, error) {
	if t.command == "" {
		return nil, fmt.Errorf("%w: no extractor command configured", ErrResource)
	}

	runCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := commandContext(runCtx, t.command, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("extractor timed out after %s: %w", t.timeout, context.DeadlineExceeded)
		}
		if ctx.Err() == context.Canceled {
			return nil, fmt.Errorf("extractor interrupted: %w", context.Canceled)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.ExitCode() == resourceExitCode {
				return nil, fmt.Errorf("%w: %s", ErrResource, stderrTail(&stderr))
			}
			return nil, fmt.Errorf("%w: exit status %d: %s", ErrExtraction, exitErr.ExitCode(), stderrTail(&stderr))
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: extractor command %q not found", ErrResource, t.command)
		}
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	return stdout.Bytes(), nil
}

func writeParams(path string, rc *config.RunConfig) error {
	params := make(map[string]string)
	for _, kv := range rc.Flatten() {
		params[kv.Key] = kv.Value
	}
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func stderrTail(buf *bytes.Buffer) string {
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "no diagnostic output"
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, " | ")
}
