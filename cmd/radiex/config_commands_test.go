package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	output, err := executeCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init returned error: %v", err)
	}
	if !strings.Contains(output, target) {
		t.Errorf("output does not mention target path: %s", output)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("sample not written: %v", err)
	}
	if !strings.Contains(string(data), "[handcrafted]") {
		t.Error("sample config missing handcrafted section")
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if _, err := executeCommand(t, "config", "init", "--path", target); err != nil {
		t.Fatalf("first init returned error: %v", err)
	}
	if _, err := executeCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init should refuse to overwrite")
	}
	if _, err := executeCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite returned error: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Setenv("RADIEX_EXTRACTOR", "pysera-extract")

	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "[run]\nmode = \"handcrafted\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	output, err := executeCommand(t, "--config", path, "config", "validate")
	if err != nil {
		t.Fatalf("validate returned error: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Configuration valid") {
		t.Errorf("output = %s", output)
	}
}

func TestConfigValidateReportsAllProblems(t *testing.T) {
	t.Setenv("RADIEX_EXTRACTOR", "pysera-extract")

	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "[run]\nmode = \"psychic\"\nworkers = \"-1\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := executeCommand(t, "--config", path, "config", "validate")
	if err == nil {
		t.Fatal("invalid config accepted")
	}
	msg := err.Error()
	for _, want := range []string{"run.mode", "run.workers"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %s", want, msg)
		}
	}
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := "[run]\nworkers = \"4\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	output, err := executeCommand(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("show returned error: %v", err)
	}
	if !strings.Contains(output, "workers = '4'") && !strings.Contains(output, `workers = "4"`) {
		t.Errorf("output missing workers value:\n%s", output)
	}
}
