package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestInlineQueriesAreMarked(t *testing.T) {
	var stderr bytes.Buffer
	if code := run([]string{"../../sqlinline"}, &stderr); code != 0 {
		t.Fatalf("sqlinline has marker problems:\n%s", stderr.String())
	}
}

func TestRunReportsMissingMarker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "q.go", "package q\n\nconst QBad = `select 1`\n\nconst Label = \"selection\"\n")

	var stderr bytes.Buffer
	code := run([]string{dir}, &stderr)

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "QBad") || strings.Contains(stderr.String(), "Label") {
		t.Fatalf("unexpected report:\n%s", stderr.String())
	}
}

func TestRunReportsDuplicateMarker(t *testing.T) {
	dir := t.TempDir()
	marker := "--sql 0f6a4c52-3b7e-4e0e-9a57-1f2d3c4b5a69"
	writeFile(t, dir, "a.go", "package q\n\nconst QOne = `"+marker+"\nselect 1;\n`\n")
	writeFile(t, dir, "b.go", "package q\n\nconst QTwo = `"+marker+"\nselect 2;\n`\n")

	var stderr bytes.Buffer
	code := run([]string{dir}, &stderr)

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "QTwo") || !strings.Contains(stderr.String(), "already used by QOne") {
		t.Fatalf("unexpected report:\n%s", stderr.String())
	}
}

func TestRunAcceptsMarkedQueries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package q\n\nconst QOne = `--sql 7d0f4f3e-8a43-4b8e-b7a1-2c9c1d3e4f50\nupdate t set x = 1;\n`\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 0 {
		t.Fatalf("exit code = %d:\n%s", code, stderr.String())
	}
}
