package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"annmerge/adapter"
	"annmerge/annotation"
	"annmerge/common"
	"annmerge/config"
	"annmerge/field"
	"annmerge/library"
	"annmerge/merge"
	"annmerge/staging"
)

const dumpJSON = `{
  "reader": "Marvin",
  "books": [
    {"uuid": "u-dune", "title": "Dune (ignored)", "annotations": [
      {"annotation_id": "1", "highlight_text": "Fear is the mind-killer.", "location_sort": "12", "last_modification": 100}
    ]},
    {"title": "the hobbit", "author": "Tolkien", "annotations": [
      {"highlight_text": "In a hole in the ground", "location_sort": "1", "last_modification": 200},
      {"note_text": "second breakfast", "location_sort": "2", "last_modification": 300}
    ]},
    {"title": "Not In Library", "active": false, "annotations": [
      {"highlight_text": "orphan", "last_modification": 400}
    ]}
  ]
}`

type fixture struct {
	cfg    *config.Config
	lib    *library.Library
	engine *merge.Engine
	dune   int64
	hobbit int64
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	cfg := &config.Config{
		Library: config.LibraryConfig{Destination: config.CommentsField, ClippingsTitle: "My Clippings"},
		Appearance: config.AppearanceConfig{
			DividerText:     "*",
			SortKey:         common.SortKeyLocation,
			TimestampFormat: "2006-01-02",
			Legacy:          common.LegacyPolicyConcatenate,
		},
		Import: config.ImportConfig{DefaultReader: "Unknown"},
	}
	lib, err := library.Open(":memory:", log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { lib.Close() })

	f := &fixture{cfg: cfg, lib: lib, engine: merge.New(&cfg.Appearance, nil, log), dir: t.TempDir()}
	if f.dune, err = lib.CreateBook(ctx, library.Metadata{UUID: "u-dune", Title: "Dune", Comments: "<p>Desert planet.</p>"}); err != nil {
		t.Fatal(err)
	}
	if f.hobbit, err = lib.CreateBook(ctx, library.Metadata{Title: "The Hobbit"}); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) importer(t *testing.T, claims *staging.Claims) *Importer {
	return New(f.cfg, f.lib, f.engine, claims, zaptest.NewLogger(t))
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func (f *fixture) annotations(t *testing.T, id int64) []annotation.Annotation {
	t.Helper()
	raw, err := f.lib.Field(context.Background(), id, config.CommentsField)
	if err != nil {
		t.Fatal(err)
	}
	return field.Split(raw).Subtree.Annotations(id)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	imp := f.importer(t, nil)
	src := f.write(t, "marvin.json", dumpJSON)

	sum, err := imp.Run(ctx, src)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Books != 3 || sum.Reported != 4 || sum.Annotations != 4 || sum.Updated != 3 || sum.Failed != 0 || sum.Reader != "Marvin" {
		t.Errorf("summary = %+v", sum)
	}
	if !strings.HasPrefix(sum.String(), src+": 4 of 4 annotations for 3 books") {
		t.Errorf("String() = %q", sum.String())
	}

	raw, _ := f.lib.Field(ctx, f.dune, config.CommentsField)
	if !strings.HasPrefix(raw, "<p>Desert planet.</p>") {
		t.Errorf("user text lost:\n%s", raw)
	}
	if got := f.annotations(t, f.dune); len(got) != 1 || got[0].Reader != "Marvin" {
		t.Errorf("dune annotations = %+v", got)
	}
	if got := f.annotations(t, f.hobbit); len(got) != 2 || got[0].HighlightText != "In a hole in the ground" {
		t.Errorf("hobbit annotations = %+v", got)
	}

	cid, err := f.lib.ClippingsBook(ctx, "My Clippings")
	if err != nil {
		t.Fatal(err)
	}
	if got := f.annotations(t, cid); len(got) != 1 || got[0].HighlightText != "orphan" {
		t.Errorf("clippings annotations = %+v", got)
	}

	t.Run("repeated import changes nothing", func(t *testing.T) {
		sum, err := imp.Run(ctx, src)
		if err != nil {
			t.Fatal(err)
		}
		if sum.Updated != 0 {
			t.Errorf("summary = %+v", sum)
		}
	})
}

func TestRunActiveOnly(t *testing.T) {
	f := newFixture(t)
	f.cfg.Import.ActiveOnly = true

	sum, err := f.importer(t, nil).Run(context.Background(), f.write(t, "marvin.json", dumpJSON))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Books != 2 || sum.Reported != 4 || sum.Annotations != 3 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunBusyBook(t *testing.T) {
	f := newFixture(t)
	claims := staging.NewClaims()
	other, err := staging.Open(claims, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	if err := other.Claim(f.hobbit); err != nil {
		t.Fatal(err)
	}

	sum, err := f.importer(t, claims).Run(context.Background(), f.write(t, "marvin.json", dumpJSON))
	if err != nil {
		t.Fatal(err)
	}
	if sum.Failed != 1 || !errors.Is(sum.Errors, staging.ErrBookBusy) {
		t.Errorf("summary = %+v", sum)
	}
	if got := f.annotations(t, f.hobbit); len(got) != 0 {
		t.Errorf("busy book was written: %+v", got)
	}
	if got := f.annotations(t, f.dune); len(got) != 1 {
		t.Errorf("other books not imported: %+v", got)
	}
}

func TestRunAdapterFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.importer(t, nil).Run(context.Background(), f.write(t, "bad.json", `{"books": 1}`))
	if !errors.Is(err, adapter.ErrInvalid) {
		t.Errorf("Run() error = %v", err)
	}
}

func TestWorker(t *testing.T) {
	f := newFixture(t)
	w := f.importer(t, nil).Start(context.Background())

	first := w.Submit(f.write(t, "a.json", dumpJSON))
	second := w.Submit(filepath.Join(f.dir, "missing.json"))

	if r := <-first; r.Err != nil || r.Summary.Updated != 3 {
		t.Errorf("first result = %+v", r)
	}
	if r := <-second; !errors.Is(r.Err, os.ErrNotExist) {
		t.Errorf("second result = %+v", r)
	}

	w.Stop()
	if r := <-w.Submit("late.json"); !errors.Is(r.Err, ErrStopped) {
		t.Errorf("result after Stop = %+v", r)
	}
	w.Stop()
}

func TestWatch(t *testing.T) {
	f := newFixture(t)
	w := f.importer(t, nil).Start(context.Background())
	defer w.Stop()

	watched := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan Result, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, watched, w, 100*time.Millisecond, func(r Result) { results <- r })
	}()

	// give watcher time to register
	time.Sleep(100 * time.Millisecond)
	os.WriteFile(filepath.Join(watched, "ignored.txt"), []byte("x"), 0o644)
	if err := os.WriteFile(filepath.Join(watched, "dump.json"), []byte(dumpJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case r := <-results:
		if r.Err != nil || filepath.Base(r.Source) != "dump.json" || r.Summary.Annotations != 4 {
			t.Errorf("result = %+v", r)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("dump was not imported")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch() error = %v", err)
	}
}
