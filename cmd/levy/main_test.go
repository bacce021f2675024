package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/levy-ai/levy/pkg/config"
)

func TestLoadConfigFallsBackToDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := newAskCmd()
	cfg, err := loadConfig(cmd, defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.SimilarityThreshold != 0.85 {
		t.Errorf("expected defaults, got threshold %v", cfg.Cache.SimilarityThreshold)
	}

	if err := cmd.Flags().Set("config", "missing.yaml"); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(cmd, "missing.yaml"); err == nil {
		t.Error("expected error for explicitly named missing file")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Errorf("expected json output, got %q", buf.String())
	}

	if _, err := newLogger(&buf, config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for bad level")
	}
	if _, err := newLogger(&buf, config.LogConfig{Format: "xml"}); err == nil {
		t.Error("expected error for bad format")
	}
}

func TestReadPrompts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.txt")
	if err := os.WriteFile(path, []byte("first\n\n  second  \n"), 0644); err != nil {
		t.Fatal(err)
	}
	prompts, err := readPrompts(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(prompts) != 2 || prompts[0] != "first" || prompts[1] != "second" {
		t.Errorf("unexpected prompts %q", prompts)
	}

	empty := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(empty, []byte("\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := readPrompts(empty); err == nil {
		t.Error("expected error for empty prompt file")
	}
}

func TestReplayCompare(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "levy.yaml")
	content := `
llm:
  mock_latency: 0s
embedding:
  provider: hashing
log:
  level: error
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := newReplayCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", cfgPath, "--compare"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	for _, want := range []string{
		"--- Baseline (no cache) ---",
		"--- Exact cache only ---",
		"--- Exact + similarity cache ---",
		"LevyMetrics(Requests=8, Hits=0 (0.0%)",
		"LevyMetrics(Requests=8, Hits=2 (25.0%)",
		"exact-match",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
