package k6emitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrUnsafeOutDir is returned when the output directory must not be replaced.
// Nothing has been touched when it is returned.
var ErrUnsafeOutDir = errors.New("k6emitter: refusing to replace output directory")

// WriteError reports a failure while writing the suite. Files may already
// have been created or moved when it is returned.
type WriteError struct {
	Op    string
	Path  string
	Cause error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("k6emitter: %s %s: %v (output may be incomplete)", e.Op, e.Path, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }

const (
	dirMode  os.FileMode = 0o755
	fileMode os.FileMode = 0o644
)

// guardOutDir refuses targets whose replacement would destroy something
// other than a previous suite.
func guardOutDir(outAbs, masterAbs string, protect []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("%w: cannot determine the working directory: %v", ErrUnsafeOutDir, err)
	}
	return checkOutDir(outAbs, masterAbs, wd, protect)
}

func checkOutDir(outAbs, masterAbs, wd string, protect []string) error {
	if filepath.Dir(outAbs) == outAbs {
		return fmt.Errorf("%w: %s is a filesystem root", ErrUnsafeOutDir, outAbs)
	}
	if within(outAbs, wd) {
		return fmt.Errorf("%w: %s contains the working directory", ErrUnsafeOutDir, outAbs)
	}
	if st, err := os.Stat(outAbs); err == nil && !st.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrUnsafeOutDir, outAbs)
	} else if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: cannot access %s: %v", ErrUnsafeOutDir, outAbs, err)
	}
	if within(outAbs, masterAbs) {
		return fmt.Errorf("%w: master script %s would be inside it", ErrUnsafeOutDir, masterAbs)
	}
	for _, p := range protect {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if within(outAbs, abs) {
			return fmt.Errorf("%w: it contains %s", ErrUnsafeOutDir, abs)
		}
	}
	return nil
}

// within reports whether p is dir or lies below it.
func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// writeSuite replaces outAbs with a directory holding files and writes the
// master script. Everything is staged next to its destination first; the old
// suite is only moved aside once staging succeeded, and it is restored if
// the swap fails.
func writeSuite(ctx context.Context, outAbs, masterAbs string, files map[string][]byte, master []byte, logger *slog.Logger) error {
	parent := filepath.Dir(outAbs)
	if err := os.MkdirAll(parent, dirMode); err != nil {
		return &WriteError{Op: "create", Path: parent, Cause: err}
	}
	if err := os.MkdirAll(filepath.Dir(masterAbs), dirMode); err != nil {
		return &WriteError{Op: "create", Path: filepath.Dir(masterAbs), Cause: err}
	}

	stage, err := os.MkdirTemp(parent, ".swagger2k6-stage-*")
	if err != nil {
		return &WriteError{Op: "stage", Path: parent, Cause: err}
	}
	staged := false
	defer func() {
		if !staged {
			_ = os.RemoveAll(stage)
		}
	}()
	if err := os.Chmod(stage, dirMode); err != nil {
		return &WriteError{Op: "stage", Path: stage, Cause: err}
	}
	for rel, content := range files {
		full := filepath.Join(stage, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), dirMode); err != nil {
			return &WriteError{Op: "stage", Path: full, Cause: err}
		}
		if err := os.WriteFile(full, content, fileMode); err != nil {
			return &WriteError{Op: "stage", Path: full, Cause: err}
		}
	}

	masterTmp, err := stageFile(filepath.Dir(masterAbs), master)
	if err != nil {
		return &WriteError{Op: "stage", Path: masterAbs, Cause: err}
	}
	masterStaged := false
	defer func() {
		if !masterStaged {
			_ = os.Remove(masterTmp)
		}
	}()

	// Last chance to back out before anything existing is touched.
	if err := ctx.Err(); err != nil {
		return err
	}

	backup := ""
	if _, err := os.Stat(outAbs); err == nil {
		backup = filepath.Join(parent, "."+filepath.Base(outAbs)+".old-"+strconv.FormatInt(time.Now().UnixNano(), 36))
		if err := os.Rename(outAbs, backup); err != nil {
			return &WriteError{Op: "backup", Path: outAbs, Cause: err}
		}
	}
	restore := func() {
		if backup == "" {
			return
		}
		if err := os.Rename(backup, outAbs); err != nil {
			logger.Error("could not restore previous suite", "backup", backup, "err", err)
		}
	}

	if err := os.Rename(stage, outAbs); err != nil {
		restore()
		return &WriteError{Op: "swap", Path: outAbs, Cause: err}
	}
	staged = true
	if err := os.Rename(masterTmp, masterAbs); err != nil {
		_ = os.RemoveAll(outAbs)
		restore()
		return &WriteError{Op: "swap", Path: masterAbs, Cause: err}
	}
	masterStaged = true

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			logger.Warn("could not remove previous suite", "path", backup, "err", err)
		}
	}
	return nil
}

// stageFile writes content to a synced temp file in dir and returns its path.
func stageFile(dir string, content []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".tmp-swagger2k6-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()
	if _, err := tmp.Write(content); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(fileMode); err != nil {
		return "", fmt.Errorf("set file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	ok = true
	return tmpPath, nil
}
