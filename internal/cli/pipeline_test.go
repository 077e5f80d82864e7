package cli

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/swagger2k6/internal/spec"
)

const usersSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"servers:\n" +
	"  - url: http://api.test\n" +
	"paths:\n" +
	"  /users:\n" +
	"    get:\n" +
	"      tags: [read]\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n" +
	"    post:\n" +
	"      tags: [write]\n" +
	"      requestBody:\n" +
	"        content:\n" +
	"          application/json:\n" +
	"            schema:\n" +
	"              type: object\n" +
	"              required: [name]\n" +
	"              properties:\n" +
	"                name:\n" +
	"                  type: string\n" +
	"      responses:\n" +
	"        '201':\n" +
	"          description: created\n"

func writeUsersSpec(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	specPath := filepath.Join(dir, "spec.yaml")
	if err := os.WriteFile(specPath, []byte(usersSpecYAML), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return dir, specPath
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func TestGeneratePipeline_DryRun(t *testing.T) {
	t.Parallel()
	dir, specPath := writeUsersSpec(t)
	outDir := filepath.Join(dir, "tests")

	out, err := runRoot(t, "generate", "--input", specPath, "--out", outDir, "--dry-run")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Planned writes to") {
		t.Fatalf("expected dry-run plan output, got: %s", out)
	}
	for _, want := range []string{"users/GET.js", "users/POST.js", "master-test.js"} {
		if !strings.Contains(out, want) {
			t.Fatalf("plan is missing %s: %s", want, out)
		}
	}
	if _, err := os.Stat(outDir); err == nil {
		t.Fatalf("expected no writes on dry-run")
	}
}

func TestGeneratePipeline_WritesSuite(t *testing.T) {
	t.Parallel()
	dir, specPath := writeUsersSpec(t)
	outDir := filepath.Join(dir, "tests")

	out, err := runRoot(t, "--no-color", "generate", "--input", specPath, "--out", outDir, "--seed", "3")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Generated 2 k6 scripts") {
		t.Fatalf("unexpected output: %s", out)
	}
	for _, rel := range []string{"users/GET.js", "users/POST.js"} {
		data, err := os.ReadFile(filepath.Join(outDir, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if !strings.Contains(string(data), `"http://api.test/users"`) {
			t.Fatalf("%s does not target the base url:\n%s", rel, data)
		}
	}
	master, err := os.ReadFile(filepath.Join(dir, "master-test.js"))
	if err != nil {
		t.Fatalf("read master: %v", err)
	}
	if !strings.Contains(string(master), "./tests/users/GET.js") {
		t.Fatalf("master does not import scripts:\n%s", master)
	}
}

func TestGeneratePipeline_FiltersApply(t *testing.T) {
	t.Parallel()
	dir, specPath := writeUsersSpec(t)
	outDir := filepath.Join(dir, "tests")

	if _, err := runRoot(t, "generate", "--input", specPath, "--out", outDir, "--exclude-tags", "write"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "users", "POST.js")); !os.IsNotExist(err) {
		t.Fatalf("excluded operation was generated: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "users", "GET.js")); err != nil {
		t.Fatalf("GET script missing: %v", err)
	}
}

func TestGeneratePipeline_LoadErrorLeavesOutputAlone(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	outDir := filepath.Join(dir, "tests")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	keep := filepath.Join(outDir, "keep.js")
	if err := os.WriteFile(keep, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := runRoot(t, "generate", "--input", filepath.Join(dir, "missing.yaml"), "--out", outDir)
	var le *spec.LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *spec.LoadError, got %T: %v", err, err)
	}
	if le.Code != spec.InputError {
		t.Fatalf("expected InputError, got %s", le.Code)
	}
	if !strings.HasPrefix(err.Error(), "spec InputError:") {
		t.Fatalf("unexpected message: %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("existing output was touched: %v", err)
	}
}

func TestGeneratePipeline_UnsafeOutDir(t *testing.T) {
	t.Parallel()
	_, specPath := writeUsersSpec(t)

	_, err := runRoot(t, "generate", "--input", specPath, "--out", "/")
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "dedicated --out") {
		t.Fatalf("missing hint: %v", err)
	}
}

func TestListPipeline(t *testing.T) {
	t.Parallel()
	_, specPath := writeUsersSpec(t)

	out, err := runRoot(t, "list", "--input", specPath)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("unexpected list output:\n%s", out)
	}
	if lines[0] != "Base URL: http://api.test" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "GET") || strings.Contains(lines[1], "[body]") {
		t.Fatalf("unexpected GET line %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "POST") || !strings.HasSuffix(lines[2], "/users [body]") {
		t.Fatalf("unexpected POST line %q", lines[2])
	}
	if lines[3] != "2 operation(s)" {
		t.Fatalf("unexpected footer %q", lines[3])
	}
}
