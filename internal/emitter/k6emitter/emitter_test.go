package k6emitter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mark3labs/swagger2k6/internal/schema"
	"github.com/mark3labs/swagger2k6/internal/spec"
	"github.com/mark3labs/swagger2k6/internal/synth"
)

func usersOps() []spec.Operation {
	return []spec.Operation{
		{Path: "/users", Method: "GET"},
		{Path: "/users", Method: "POST", RequestSchema: &schema.Object{
			Properties: []schema.Property{{Name: "name", Schema: &schema.String{}}},
			Required:   []string{"name"},
		}},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEmit_WritesSuite(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	out := filepath.Join(root, "tests")

	res, err := Emit(context.Background(), testBaseURL, usersOps(), Options{
		OutDir:      out,
		Logger:      quietLogger(),
		Synthesizer: synth.New(synth.WithSeed(1)),
	})
	require.NoError(t, err)
	assert.Equal(t, out, res.OutDir)
	assert.Equal(t, filepath.Join(root, MasterFileName), res.MasterPath)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Planned, 2)
	assert.Equal(t, "users/GET.js", res.Planned[0].RelPath)
	assert.Equal(t, "users/POST.js", res.Planned[1].RelPath)

	get, err := os.ReadFile(filepath.Join(out, "users", "GET.js"))
	require.NoError(t, err)
	assert.Contains(t, string(get), `http.request("GET", url, null, params);`)

	post, err := os.ReadFile(filepath.Join(out, "users", "POST.js"))
	require.NoError(t, err)
	assert.Contains(t, string(post), "JSON.stringify(payload)")
	assert.Equal(t, gjson.String, gjson.GetBytes(res.Scripts[1].Payload, "name").Type)

	master, err := os.ReadFile(res.MasterPath)
	require.NoError(t, err)
	assert.Contains(t, string(master), `from "./tests/users/GET.js";`)
	assert.Contains(t, string(master), `from "./tests/users/POST.js";`)
	assert.Contains(t, string(master), "iterations: 2,")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no staging leftovers next to the suite")
}

func TestEmit_ReplacesPreviousSuite(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	out := filepath.Join(root, "tests")
	stale := filepath.Join(out, "old", "DELETE.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	_, err := Emit(context.Background(), testBaseURL, usersOps(), Options{OutDir: out, Logger: quietLogger()})
	require.NoError(t, err)
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale script must be gone")

	// A second run with fewer operations leaves exactly the new suite.
	_, err = Emit(context.Background(), testBaseURL, usersOps()[:1], Options{OutDir: out, Logger: quietLogger()})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "users", "POST.js"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(out, "users", "GET.js"))
	assert.NoError(t, err)
}

func TestEmit_SynthesisFailureDegradesToBodyless(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	ops := []spec.Operation{{Path: "/broken", Method: "PUT", RequestSchema: &schema.Invalid{Reason: "unsupported type"}}}

	res, err := Emit(context.Background(), testBaseURL, ops, Options{
		OutDir: filepath.Join(t.TempDir(), "tests"),
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "PUT", res.Warnings[0].Method)
	assert.Equal(t, "/broken", res.Warnings[0].Path)
	assert.ErrorIs(t, res.Warnings[0].Err, synth.ErrSynthesis)
	assert.Contains(t, string(res.Scripts[0].Content), `http.request("PUT", url, null, params);`)
	assert.Contains(t, logs.String(), "path=/broken")
}

func TestEmit_DryRunWritesNothing(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	res, err := Emit(context.Background(), testBaseURL, usersOps(), Options{OutDir: filepath.Join(root, "tests"), DryRun: true, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Len(t, res.Planned, 2)
	assert.Equal(t, MasterFileName, res.Master.RelPath)
	assert.Positive(t, res.Master.Size)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEmit_ConsistencyErrorKeepsOldSuite(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "tests")
	keep := filepath.Join(out, "keep.js")
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(keep, []byte("keep"), 0o644))

	ops := []spec.Operation{{Path: "/a/b", Method: "GET"}, {Path: "/a_b", Method: "GET"}}
	_, err := Emit(context.Background(), testBaseURL, ops, Options{OutDir: out, Logger: quietLogger()})
	var ce *ConsistencyError
	require.ErrorAs(t, err, &ce)
	_, err = os.Stat(keep)
	assert.NoError(t, err)
}

func TestEmit_CanceledContextKeepsOldSuite(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	out := filepath.Join(root, "tests")
	keep := filepath.Join(out, "keep.js")
	require.NoError(t, os.MkdirAll(out, 0o755))
	require.NoError(t, os.WriteFile(keep, []byte("keep"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Emit(ctx, testBaseURL, usersOps(), Options{OutDir: out, Logger: quietLogger()})
	require.ErrorIs(t, err, context.Canceled)
	_, err = os.Stat(keep)
	assert.NoError(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging must be cleaned up")
}

func TestEmit_Guard(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	out := filepath.Join(root, "tests")
	require.NoError(t, os.MkdirAll(out, 0o755))
	input := filepath.Join(out, "swagger.json")
	require.NoError(t, os.WriteFile(input, []byte("{}"), 0o644))

	_, err := Emit(context.Background(), testBaseURL, usersOps(), Options{OutDir: out, Protect: []string{input}, Logger: quietLogger()})
	assert.ErrorIs(t, err, ErrUnsafeOutDir)

	_, err = Emit(context.Background(), testBaseURL, usersOps(), Options{OutDir: out, MasterPath: filepath.Join(out, "m.js"), Logger: quietLogger()})
	assert.ErrorIs(t, err, ErrUnsafeOutDir)

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = Emit(context.Background(), testBaseURL, nil, Options{OutDir: file, Logger: quietLogger()})
	assert.ErrorIs(t, err, ErrUnsafeOutDir)

	_, err = Emit(context.Background(), testBaseURL, nil, Options{OutDir: string(filepath.Separator), Logger: quietLogger()})
	assert.ErrorIs(t, err, ErrUnsafeOutDir)

	_, err = Emit(context.Background(), testBaseURL, nil, Options{Logger: quietLogger()})
	assert.Error(t, err)
}

func TestCheckOutDir_RefusesAncestorsOfWorkingDir(t *testing.T) {
	t.Parallel()
	project := t.TempDir()
	src := filepath.Join(project, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))
	master := filepath.Join(filepath.Dir(project), MasterFileName)

	assert.ErrorIs(t, checkOutDir(project, master, src, nil), ErrUnsafeOutDir)
	assert.ErrorIs(t, checkOutDir(src, filepath.Join(project, MasterFileName), src, nil), ErrUnsafeOutDir)
	assert.NoError(t, checkOutDir(filepath.Join(project, "tests"), filepath.Join(project, MasterFileName), src, nil))
	assert.NoError(t, checkOutDir(filepath.Join(src, "tests"), filepath.Join(src, MasterFileName), src, nil))
}

func TestEmit_RefusesParentOfWorkingDir(t *testing.T) {
	t.Parallel()
	wd, err := os.Getwd()
	require.NoError(t, err)

	// Dry run so a broken guard still cannot touch the tree.
	_, err = Emit(context.Background(), testBaseURL, usersOps(), Options{
		OutDir:     filepath.Dir(wd),
		MasterPath: filepath.Join(t.TempDir(), MasterFileName),
		DryRun:     true,
		Logger:     quietLogger(),
	})
	assert.ErrorIs(t, err, ErrUnsafeOutDir)
}

func TestEmit_WriteErrorIsMarkedIncomplete(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	// The master's directory cannot be created below a regular file.
	_, err := Emit(context.Background(), testBaseURL, usersOps(), Options{
		OutDir:     filepath.Join(root, "tests"),
		MasterPath: filepath.Join(blocker, "master-test.js"),
		Logger:     quietLogger(),
	})
	var we *WriteError
	require.True(t, errors.As(err, &we), "got %v", err)
	assert.Contains(t, we.Error(), "output may be incomplete")
}

func TestEmit_CustomMasterLocation(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	res, err := Emit(context.Background(), testBaseURL, usersOps()[:1], Options{
		OutDir:     filepath.Join(root, "suites", "api"),
		MasterPath: filepath.Join(root, "runner", "all.js"),
		Logger:     quietLogger(),
	})
	require.NoError(t, err)
	master, err := os.ReadFile(res.MasterPath)
	require.NoError(t, err)
	assert.Contains(t, string(master), `from "../suites/api/users/GET.js";`)
}
