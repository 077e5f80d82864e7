package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureGenerate swaps the generate runner for one that records the
// resolved config. Callers must not run in parallel.
func captureGenerate(t *testing.T) **GenerateConfig {
	t.Helper()
	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })
	return &captured
}

func TestGenerateConfigDefaults(t *testing.T) {
	captured := captureGenerate(t)

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"generate"})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.Input != defaultInput {
		t.Errorf("input: want %q got %q", defaultInput, cfg.Input)
	}
	if cfg.Out != defaultOut {
		t.Errorf("out: want %q got %q", defaultOut, cfg.Out)
	}
	if cfg.Master != "" || cfg.Seed != 0 || cfg.Strict || cfg.NoPayloadCheck || cfg.DryRun {
		t.Errorf("unexpected non-default values: %+v", cfg)
	}
}

func TestGenerateConfigFromFlags(t *testing.T) {
	captured := captureGenerate(t)

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"--verbose",
		"--no-color",
		"generate",
		"--input", "spec.yaml",
		"--out", "./build",
		"--master", "./build-master.js",
		"--include-tags", "foo,bar",
		"--exclude-tags", "baz",
		"--methods", "get,Post",
		"--paths", "^/users",
		"--seed", "42",
		"--strict",
		"--no-payload-check",
		"--dry-run",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}

	if cfg.Input != "spec.yaml" {
		t.Errorf("input mismatch: got %q", cfg.Input)
	}
	if cfg.Out != "./build" {
		t.Errorf("out mismatch: got %q", cfg.Out)
	}
	if cfg.Master != "./build-master.js" {
		t.Errorf("master mismatch: got %q", cfg.Master)
	}
	if want := []string{"foo", "bar"}; !equalStringSlices(cfg.IncludeTags, want) {
		t.Errorf("include tags mismatch: got %v", cfg.IncludeTags)
	}
	if want := []string{"baz"}; !equalStringSlices(cfg.ExcludeTags, want) {
		t.Errorf("exclude tags mismatch: got %v", cfg.ExcludeTags)
	}
	if want := []string{"GET", "POST"}; !equalStringSlices(cfg.Methods, want) {
		t.Errorf("methods mismatch: got %v", cfg.Methods)
	}
	if want := []string{"^/users"}; !equalStringSlices(cfg.Paths, want) {
		t.Errorf("paths mismatch: got %v", cfg.Paths)
	}
	if cfg.Seed != 42 {
		t.Errorf("seed mismatch: got %d", cfg.Seed)
	}
	if !cfg.Strict || !cfg.NoPayloadCheck || !cfg.DryRun {
		t.Errorf("expected strict, no-payload-check and dry-run: %+v", cfg)
	}
	if !cfg.Verbose || !cfg.NoColor {
		t.Errorf("expected persistent flags to apply: %+v", cfg)
	}
}

func TestGenerateConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`input: config-spec.yaml
out: from-config
includeTags:
  - cfgFoo
excludeTags: cfgBar
methods: get
seed: "7"
dry-run: true
no_payload_check: true
verbose: true
`) + "\n"

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	captured := captureGenerate(t)

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"--config", configPath,
		"generate",
		"--input", "flag-spec.yaml",
		"--include-tags", "flagTag",
		"--seed", "9",
		"--dry-run=false",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}

	if cfg.Input != "flag-spec.yaml" {
		t.Errorf("input: want %q got %q", "flag-spec.yaml", cfg.Input)
	}
	if cfg.Out != "from-config" {
		t.Errorf("out: want from-config got %q", cfg.Out)
	}
	if want := []string{"flagTag"}; !equalStringSlices(cfg.IncludeTags, want) {
		t.Errorf("include tags: want %v got %v", want, cfg.IncludeTags)
	}
	if want := []string{"cfgBar"}; !equalStringSlices(cfg.ExcludeTags, want) {
		t.Errorf("exclude tags: want %v got %v", want, cfg.ExcludeTags)
	}
	if want := []string{"GET"}; !equalStringSlices(cfg.Methods, want) {
		t.Errorf("methods: want %v got %v", want, cfg.Methods)
	}
	if cfg.Seed != 9 {
		t.Errorf("seed: want 9 got %d", cfg.Seed)
	}
	if cfg.DryRun {
		t.Errorf("expected dry-run false after flag override")
	}
	if !cfg.NoPayloadCheck {
		t.Errorf("expected no-payload-check true from config file")
	}
	if !cfg.Verbose {
		t.Errorf("expected verbose true from config file")
	}
	if cfg.ConfigPath != configPath {
		t.Errorf("config path mismatch: got %q", cfg.ConfigPath)
	}
}

func TestGenerateConfigUnknownKey(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("unknown: value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{
		"--config", configPath,
		"generate",
		"--input", "spec.yaml",
	})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestGenerateConfigValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"overlapping tags", []string{"--include-tags", "a,b", "--exclude-tags", "b"}, "overlap"},
		{"bad method", []string{"--methods", "fetch"}, "unsupported --methods"},
		{"bad path pattern", []string{"--paths", "("}, "invalid --paths"},
		{"bad seed in config", nil, "config field"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			args := append([]string{"generate", "--input", "spec.yaml"}, tc.args...)
			if tc.args == nil {
				configPath := filepath.Join(t.TempDir(), "c.yaml")
				if err := os.WriteFile(configPath, []byte("seed: many\n"), 0o600); err != nil {
					t.Fatalf("write config: %v", err)
				}
				args = append([]string{"--config", configPath}, args...)
			}
			root := NewRootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(args)

			err := root.Execute()
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValueAsInt64(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      any
		want    int64
		wantErr bool
	}{
		{in: 5, want: 5},
		{in: "12", want: 12},
		{in: 3.0, want: 3},
		{in: nil, want: 0},
		{in: 2.5, wantErr: true},
		{in: "x", wantErr: true},
		{in: true, wantErr: true},
	}
	for _, tc := range cases {
		got, err := valueAsInt64(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("valueAsInt64(%v): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("valueAsInt64(%v) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
	}
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
