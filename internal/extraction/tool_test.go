package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"radiex/internal/cases"
	"radiex/internal/config"
)

func setHelperCommand(t *testing.T, mode string) *[]string {
	t.Helper()
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("RADIEX_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &capturedArgs
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("RADIEX_HELPER_MODE") {
	case "success":
		fmt.Println(`{"features":[{"name":"stat_mean","value":12.5},{"name":"ivh_v10","value":0,"undefined":true}],"roi_volume":42.5,"warnings":["resampled"]}`)
		os.Exit(0)
	case "volume":
		fmt.Println(`{"roi_volume":3.25}`)
		os.Exit(0)
	case "garbage":
		fmt.Println("not json")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "corrupt mask geometry")
		os.Exit(1)
	case "resource":
		fmt.Fprintln(os.Stderr, "out of memory")
		os.Exit(3)
	case "slow":
		time.Sleep(10 * time.Second)
		os.Exit(0)
	}
	os.Exit(2)
}

func toolRunConfig(command string, timeout time.Duration) *config.RunConfig {
	return &config.RunConfig{
		Mode:             config.ModeHandcrafted,
		ExtractorCommand: command,
		ExtractorTimeout: timeout,
		Handcrafted:      &config.HandcraftedParams{BinSize: 25},
	}
}

func TestToolExtractorSuccess(t *testing.T) {
	args := setHelperCommand(t, "success")
	rc := toolRunConfig("pysera-extract", time.Minute)
	tool := NewToolExtractor(rc, nil)
	scratch := t.TempDir()

	c := cases.Case{ID: "patient7", ImagePath: "/img/patient7.nii.gz", MaskPath: "/msk/patient7.nii.gz", LesionGroup: "patient7"}
	rec, err := tool.Extract(context.Background(), c, rc, scratch)
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if rec.CaseID != "patient7" || rec.ROIVolume != 42.5 {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Features) != 2 || rec.Features[0].Name != "stat_mean" {
		t.Errorf("features = %+v", rec.Features)
	}
	if !rec.Features[1].Undefined {
		t.Error("second feature should be undefined")
	}
	if len(rec.Warnings) != 1 {
		t.Errorf("warnings = %v", rec.Warnings)
	}

	if (*args)[0] != "extract" {
		t.Errorf("first arg = %q, want extract", (*args)[0])
	}
	if _, err := os.Stat(filepath.Join(scratch, "params.json")); err != nil {
		t.Errorf("params file not written: %v", err)
	}
}

func TestToolExtractorFailure(t *testing.T) {
	setHelperCommand(t, "fail")
	rc := toolRunConfig("pysera-extract", time.Minute)
	tool := NewToolExtractor(rc, nil)

	_, err := tool.Extract(context.Background(), cases.Case{ID: "x"}, rc, t.TempDir())
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("error = %v, want ErrExtraction", err)
	}
	if kindFor(err) != KindExtraction {
		t.Errorf("kind = %q, want extraction", kindFor(err))
	}
}

func TestToolExtractorResourceExit(t *testing.T) {
	setHelperCommand(t, "resource")
	rc := toolRunConfig("pysera-extract", time.Minute)
	tool := NewToolExtractor(rc, nil)

	_, err := tool.Extract(context.Background(), cases.Case{ID: "x"}, rc, t.TempDir())
	if !errors.Is(err, ErrResource) {
		t.Fatalf("error = %v, want ErrResource", err)
	}
	if kindFor(err) != KindResource {
		t.Errorf("kind = %q, want resource", kindFor(err))
	}
}

func TestToolExtractorTimeout(t *testing.T) {
	setHelperCommand(t, "slow")
	rc := toolRunConfig("pysera-extract", 100*time.Millisecond)
	tool := NewToolExtractor(rc, nil)

	_, err := tool.Extract(context.Background(), cases.Case{ID: "x"}, rc, t.TempDir())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want DeadlineExceeded", err)
	}
	if kindFor(err) != KindTimeout {
		t.Errorf("kind = %q, want timeout", kindFor(err))
	}
}

func TestToolExtractorGarbageOutput(t *testing.T) {
	setHelperCommand(t, "garbage")
	rc := toolRunConfig("pysera-extract", time.Minute)
	tool := NewToolExtractor(rc, nil)

	_, err := tool.Extract(context.Background(), cases.Case{ID: "x"}, rc, t.TempDir())
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("error = %v, want ErrExtraction", err)
	}
}

func TestToolExtractorMaskVolume(t *testing.T) {
	args := setHelperCommand(t, "volume")
	rc := toolRunConfig("pysera-extract", time.Minute)
	tool := NewToolExtractor(rc, nil)

	volume, err := tool.MaskVolume(context.Background(), "/msk/tiny.nii.gz")
	if err != nil {
		t.Fatalf("MaskVolume returned error: %v", err)
	}
	if volume != 3.25 {
		t.Errorf("volume = %v, want 3.25", volume)
	}
	if (*args)[0] != "volume" {
		t.Errorf("first arg = %q, want volume", (*args)[0])
	}
}

func TestToolExtractorMissingCommand(t *testing.T) {
	rc := toolRunConfig("", time.Minute)
	tool := NewToolExtractor(rc, nil)
	_, err := tool.MaskVolume(context.Background(), "/msk/x.nii.gz")
	if !errors.Is(err, ErrResource) {
		t.Fatalf("error = %v, want ErrResource", err)
	}
}
