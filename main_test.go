package main

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/vamdeps/internal/config"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeTestPackage(t *testing.T, root, name string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for entry, content := range entries {
		w, err := zw.Create(entry)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, root, filepath.Join("AddonPackages", name), buf.String())
}

// createSampleLibrary builds a library where a loose scene needs a look
// package, which in turn needs a hair package.
func createSampleLibrary(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeTestPackage(t, dir, "Me.Hair.1.var", map[string]string{
		"meta.json":                         "{}",
		"Custom/Hair/Female/Me/bob/bob.vam": `{"uid":"bob-uid"}`,
		"Custom/Hair/Female/Me/bob/bob.vaj": "{}",
		"Custom/Hair/Female/Me/bob/bob.jpg": "jpg",
	})
	writeTestPackage(t, dir, "Me.Look.1.var", map[string]string{
		"meta.json": "{}",
		"Saves/scene/look.json": `{"atoms":[{"storables":[{"hair":[
			{"id":"Me.Hair.1:/Custom/Hair/Female/Me/bob/bob.vam","internalId":"bob-uid"}
		]}]}]}`,
	})

	writeTestFile(t, dir, "Custom/Hair/Female/Me/loose/loose.vam", `{"uid":"loose-uid"}`)
	writeTestFile(t, dir, "Custom/Hair/Female/Me/loose/loose.vaj", "{}")
	writeTestFile(t, dir, "Saves/scene/party.json", `{
		"base": "Me.Look.1:/Saves/scene/look.json",
		"atoms": [{"storables": [{"hair": [
			{"id": "Custom/Hair/Female/Elsewhere/bob.vam", "internalId": "bob-uid"}
		], "clothing": [
			{"id": "Custom/Clothing/Female/Gone/gone.vam", "internalId": "gone-uid"}
		]}]}]
	}`)
	return dir
}

func runQuiet(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"--log-level", "disabled"}, args...), &stdout, &stderr)
	return stdout.String(), err
}

func TestRunBasic(t *testing.T) {
	t.Parallel()
	dir := createSampleLibrary(t)

	out, err := runQuiet(t, dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, want := range []string{
		"name: " + filepath.Base(dir),
		"packages[2]{package,dependencies,free_dependencies}:",
		`  Me.Hair.1,"",""`,
		`  Me.Look.1,Me.Hair.1,""`,
		"free[1]{file,dependencies,free_dependencies}:",
		`party.json,Me.Look.1,""`,
		"unresolved[1]{owner,location,document}:",
		"Custom/Clothing/Female/Gone/gone.vam",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunLogsToStderr(t *testing.T) {
	t.Parallel()
	dir := createSampleLibrary(t)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"-vam-dir", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	logs := stderr.String()
	for _, want := range []string{`"event":"scan_complete"`, `"event":"index_built"`, `"run_id":`} {
		if !strings.Contains(logs, want) {
			t.Errorf("logs missing %s:\n%s", want, logs)
		}
	}
	if strings.Contains(stdout.String(), `"level"`) {
		t.Error("logs leaked into stdout")
	}
}

func TestRunSelect(t *testing.T) {
	t.Parallel()
	dir := createSampleLibrary(t)

	out, err := runQuiet(t, "-s", "party", dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "packages[0]") {
		t.Errorf("selection should drop packages:\n%s", out)
	}
	if !strings.Contains(out, "free[1]") {
		t.Errorf("selection should keep party.json:\n%s", out)
	}
}

func TestRunSecondaryRepo(t *testing.T) {
	t.Parallel()
	dir := createSampleLibrary(t)
	repo := t.TempDir()
	writeTestPackage(t, repo, "You.Extra.2.var", map[string]string{
		"Saves/scene/extra.json": `{"ref":"Me.Hair.1:/Custom/Hair/Female/Me/bob/bob.vam"}`,
	})

	out, err := runQuiet(t, "-repo-dir", repo, dir)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, `  You.Extra.2,Me.Hair.1,""`) {
		t.Errorf("secondary package missing:\n%s", out)
	}
}

func TestRunCache(t *testing.T) {
	t.Parallel()
	dir := createSampleLibrary(t)
	cachePath := filepath.Join(t.TempDir(), "scan.json")

	first, err := runQuiet(t, "--cache", cachePath, dir)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	data, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("cache not written: %v", err)
	}
	if !strings.Contains(string(data), "loose-uid") {
		t.Errorf("cache missing loose.vam identity:\n%s", data)
	}

	second, err := runQuiet(t, "--cache", cachePath, dir)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first != second {
		t.Errorf("cached run differs:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestRunCorruptDescriptor(t *testing.T) {
	t.Parallel()
	dir := createSampleLibrary(t)
	writeTestFile(t, dir, "Custom/Clothing/Female/Bad/bad.vam", `{"uid": `)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), `  Me.Look.1,Me.Hair.1,""`) {
		t.Errorf("report missing after a bad descriptor:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "bad.vam") {
		t.Errorf("bad descriptor not logged:\n%s", stderr.String())
	}
}

func TestRunMetricsFile(t *testing.T) {
	t.Parallel()
	dir := createSampleLibrary(t)
	metricsPath := filepath.Join(t.TempDir(), "vamdeps.prom")

	if _, err := runQuiet(t, "-metrics-file", metricsPath, dir); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics not written: %v", err)
	}
	for _, want := range []string{"vamdeps_references_total", "vamdeps_phase_duration_seconds"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	out, err := runQuiet(t, "-V")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "vamdeps") {
		t.Errorf("version output: %q", out)
	}
}

func TestRunNotADirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "file.txt", "hello")

	_, err := runQuiet(t, filepath.Join(dir, "file.txt"))
	if err == nil {
		t.Fatal("expected error for non-directory")
	}
	if !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunNoPrimaryDir(t *testing.T) {
	t.Parallel()
	if os.Getenv("VAMDEPS_VAM_DIR") != "" {
		t.Skip("VAMDEPS_VAM_DIR is set")
	}

	_, err := runQuiet(t)
	if !errors.Is(err, config.ErrNoPrimaryDir) {
		t.Errorf("err = %v, want ErrNoPrimaryDir", err)
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	dir := createSampleLibrary(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{"--log-level", "disabled", dir}, &stdout, &stderr)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestReorderArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"flags first", []string{"-j", "4", "."}, []string{"-j", "4", "."}},
		{"positional first", []string{".", "-j", "4"}, []string{"-j", "4", "."}},
		{"mixed", []string{"-s", "outfit", ".", "--cache", "c.json"}, []string{"-s", "outfit", "--cache", "c.json", "."}},
		{"list value", []string{"-ignore-morphs", "A,B", "."}, []string{"-ignore-morphs", "A,B", "."}},
		{"no flags", []string{"."}, []string{"."}},
		{"no args", nil, nil},
		{"bool flag", []string{"-V"}, []string{"-V"}},
		{"double dash", []string{"-V", "--", "-odd"}, []string{"-V", "-odd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := reorderArgs(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len: got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("index %d: got %q, want %q (full: %v)", i, got[i], tt.want[i], got)
					break
				}
			}
		})
	}
}
