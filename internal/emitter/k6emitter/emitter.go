// Package k6emitter renders one k6 script per API operation plus a master
// script that runs them all, and writes the suite to disk.
package k6emitter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/swagger2k6/internal/spec"
	"github.com/mark3labs/swagger2k6/internal/synth"
)

// Options controls how a suite is rendered and written.
type Options struct {
	OutDir     string // required; replaced as a whole on every run
	MasterPath string // defaults to <parent of OutDir>/master-test.js
	DryRun     bool   // render and plan only
	Verbose    bool
	Logger     *slog.Logger
	// Synthesizer produces request bodies; a default one is used when nil.
	Synthesizer *synth.Synthesizer
	// Protect lists paths the output directory must not contain, such as the input spec.
	Protect []string
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Warning is a recovered per-operation problem. The operation's script was
// still written, without a request body.
type Warning struct {
	Method string
	Path   string
	Err    error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %v", w.Method, w.Path, w.Err)
}

// Result describes the rendered suite.
type Result struct {
	OutDir     string
	MasterPath string
	Scripts    []Script
	// Planned lists the scripts relative to OutDir, sorted.
	Planned  []PlannedFile
	Master   PlannedFile
	Warnings []Warning
}

// Emit renders a script for every operation, aggregates them into the master
// script and, unless DryRun is set, replaces OutDir with the new suite.
// Everything is rendered before the file system is touched, so a failure
// before the write phase leaves any previous suite intact.
func Emit(ctx context.Context, baseURL string, ops []spec.Operation, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("k6emitter: OutDir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	outAbs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("k6emitter: resolve output directory: %w", err)
	}
	masterAbs := opts.MasterPath
	if strings.TrimSpace(masterAbs) == "" {
		masterAbs = filepath.Join(filepath.Dir(outAbs), MasterFileName)
	}
	if masterAbs, err = filepath.Abs(masterAbs); err != nil {
		return nil, fmt.Errorf("k6emitter: resolve master path: %w", err)
	}
	if err := guardOutDir(outAbs, masterAbs, opts.Protect); err != nil {
		return nil, err
	}

	gen := opts.Synthesizer
	if gen == nil {
		gen = synth.New()
	}

	res := &Result{OutDir: outAbs, MasterPath: masterAbs}
	files := make(map[string][]byte, len(ops))
	for _, op := range ops {
		var payload any
		if op.HasBody() {
			v, err := gen.Synthesize(op.RequestSchema)
			if err != nil {
				logger.Warn("could not synthesize request body, sending none", "method", op.Method, "path", op.Path, "err", err)
				res.Warnings = append(res.Warnings, Warning{Method: op.Method, Path: op.Path, Err: err})
			} else {
				payload = v
			}
		}
		script, err := RenderScript(baseURL, op, payload)
		if err != nil {
			return nil, err
		}
		res.Scripts = append(res.Scripts, script)
		files[script.RelPath] = script.Content
	}

	importDir, err := relImportDir(filepath.Dir(masterAbs), outAbs)
	if err != nil {
		return nil, err
	}
	master, err := Aggregate(res.Scripts, importDir)
	if err != nil {
		return nil, err
	}

	for _, s := range res.Scripts {
		res.Planned = append(res.Planned, PlannedFile{RelPath: s.RelPath, Size: len(s.Content), Mode: fileMode})
	}
	sort.Slice(res.Planned, func(i, j int) bool { return res.Planned[i].RelPath < res.Planned[j].RelPath })
	res.Master = PlannedFile{RelPath: filepath.Base(masterAbs), Size: len(master), Mode: fileMode}

	if opts.DryRun {
		return res, nil
	}
	if err := writeSuite(ctx, outAbs, masterAbs, files, master, logger); err != nil {
		return nil, err
	}
	if opts.Verbose {
		for _, p := range res.Planned {
			logger.Info("wrote script", "path", filepath.Join(outAbs, filepath.FromSlash(p.RelPath)), "bytes", p.Size)
		}
	}
	logger.Debug("suite written", "out", outAbs, "master", masterAbs, "scripts", len(res.Scripts), "warnings", len(res.Warnings))
	return res, nil
}

// relImportDir returns outDir relative to the master's directory, with
// forward slashes.
func relImportDir(masterDir, outDir string) (string, error) {
	rel, err := filepath.Rel(masterDir, outDir)
	if err != nil {
		return "", fmt.Errorf("k6emitter: output directory %s is not reachable from %s: %w", outDir, masterDir, err)
	}
	return filepath.ToSlash(rel), nil
}
