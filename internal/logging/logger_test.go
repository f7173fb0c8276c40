package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		input string
		want  slog.Level
	}{
		{"all", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.input); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseLevelNoneSilencesEverything(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(ParseLevel("none"))
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Error("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected no output at verbosity none, got %q", buf.String())
	}
}

func TestConsoleHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger = WithComponent(logger, "scheduler")
	logger.Info("case finished", String(FieldCaseID, "sub01/lesion_1"), Int("features", 42))

	line := strings.TrimSpace(buf.String())
	if !strings.Contains(line, "INFO scheduler: case finished") {
		t.Errorf("missing component prefix: %q", line)
	}
	if !strings.Contains(line, `case_id=sub01/lesion_1`) {
		t.Errorf("missing case_id attr: %q", line)
	}
	if !strings.Contains(line, "features=42") {
		t.Errorf("missing int attr: %q", line)
	}
}

func TestConsoleHandlerQuotesAwkwardValues(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Info("msg", String("path", "a dir/with spaces"))
	if !strings.Contains(buf.String(), `path="a dir/with spaces"`) {
		t.Errorf("value with spaces should be quoted: %q", buf.String())
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
