package config

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer zr.Close()

	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func TestReportClose_WritesEntries(t *testing.T) {
	dir := t.TempDir()
	conf := ReporterConfig{Destination: filepath.Join(dir, "report.zip")}
	r, err := conf.Prepare()
	if err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}

	stored := filepath.Join(dir, "stored.log")
	if err := os.WriteFile(stored, []byte("log line"), 0644); err != nil {
		t.Fatalf("write stored file: %v", err)
	}
	r.Store("final.log", stored)
	r.Store("absent.log", filepath.Join(dir, "missing.log"))
	r.StoreData("config/config.yaml", []byte("version: 1"))
	r.StoreFieldChange(7, "#notes", "<p>old</p>", "<p>new</p>", func() string { return "outline" })

	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	files := readArchive(t, conf.Destination)
	if files["final.log"] != "log line" {
		t.Errorf("final.log = %q", files["final.log"])
	}
	if _, ok := files["absent.log"]; ok {
		t.Error("absent file should be skipped")
	}
	if files["config/config.yaml"] != "version: 1" {
		t.Errorf("config data = %q", files["config/config.yaml"])
	}
	if files["fields/7/notes.before.html"] != "<p>old</p>" || files["fields/7/notes.after.html"] != "<p>new</p>" {
		t.Errorf("field change not stored: %v", files)
	}
	if files["fields/7/notes.outline.txt"] != "outline" {
		t.Errorf("outline = %q", files["fields/7/notes.outline.txt"])
	}
	if !strings.Contains(files["MANIFEST"], "final.log") {
		t.Errorf("manifest does not list stored file:\n%s", files["MANIFEST"])
	}
}

func TestReportStoreData_VersionsDuplicates(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	r.StoreData("same", []byte("1"))
	r.StoreData("same", []byte("2"))
	if len(r.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(r.entries))
	}
}

func TestReportClose_NilReport(t *testing.T) {
	var r *Report
	r.Store("x", "y")
	r.StoreData("x", nil)
	r.StoreFieldChange(1, "Comments", "", "", func() string {
		t.Error("outline produced for nil report")
		return ""
	})
	if err := r.Close(); err != nil {
		t.Errorf("Close on nil report should not error, got: %v", err)
	}
	if r.Name() != "" {
		t.Errorf("Name on nil report = %q", r.Name())
	}
}

func TestReportClose_NilFile(t *testing.T) {
	r := &Report{entries: make(map[string]entry)}
	if err := r.Close(); err != nil {
		t.Errorf("Close with nil file should not error, got: %v", err)
	}
}
