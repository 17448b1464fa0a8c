package staging

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"annmerge/annotation"
)

func openStore(t *testing.T, claims *Claims) *Store {
	t.Helper()
	s, err := Open(claims, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAnnotation(t *testing.T) {
	t.Run("insert and read back", func(t *testing.T) {
		s := openStore(t, nil)
		ok, err := s.UpsertAnnotation(annotation.Annotation{BookID: 7, HighlightText: "hello", Location: "10", LastModification: 100})
		if err != nil || !ok {
			t.Fatalf("UpsertAnnotation() = %v, %v", ok, err)
		}
		list, err := s.Annotations(7)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].HighlightText != "hello" || list[0].BookID != 7 {
			t.Errorf("Annotations() = %+v", list)
		}
		books, err := s.Books()
		if err != nil {
			t.Fatal(err)
		}
		if len(books) != 1 || books[0].BookID != 7 || books[0].LastAnnotation != 100 {
			t.Errorf("Books() = %+v", books)
		}
	})

	t.Run("newer replaces", func(t *testing.T) {
		s := openStore(t, nil)
		a := annotation.Annotation{BookID: 1, AnnotationID: "x", HighlightText: "old", LastModification: 10}
		s.UpsertAnnotation(a)
		a.HighlightText, a.LastModification = "new", 20
		ok, err := s.UpsertAnnotation(a)
		if err != nil || !ok {
			t.Fatalf("UpsertAnnotation() = %v, %v", ok, err)
		}
		list, _ := s.Annotations(1)
		if len(list) != 1 || list[0].HighlightText != "new" {
			t.Errorf("Annotations() = %+v", list)
		}
	})

	t.Run("older ignored", func(t *testing.T) {
		s := openStore(t, nil)
		a := annotation.Annotation{BookID: 1, AnnotationID: "x", HighlightText: "new", LastModification: 20}
		s.UpsertAnnotation(a)
		a.HighlightText, a.LastModification = "old", 10
		ok, err := s.UpsertAnnotation(a)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("stale record reported as stored")
		}
		list, _ := s.Annotations(1)
		if len(list) != 1 || list[0].HighlightText != "new" {
			t.Errorf("Annotations() = %+v", list)
		}
		books, _ := s.Books()
		if books[0].LastAnnotation != 20 {
			t.Errorf("LastAnnotation = %v, want 20", books[0].LastAnnotation)
		}
	})

	t.Run("equal timestamp replaces", func(t *testing.T) {
		s := openStore(t, nil)
		a := annotation.Annotation{BookID: 1, AnnotationID: "x", NoteText: "first", LastModification: 5}
		s.UpsertAnnotation(a)
		a.NoteText = "second"
		ok, _ := s.UpsertAnnotation(a)
		if !ok {
			t.Error("re-import with equal timestamp was ignored")
		}
	})
}

func TestUpsertBook(t *testing.T) {
	s := openStore(t, nil)
	if _, err := s.UpsertAnnotation(annotation.Annotation{BookID: 3, HighlightText: "a", LastModification: 42}); err != nil {
		t.Fatal(err)
	}
	// last annotation supplied by caller is ignored
	if err := s.UpsertBook(annotation.Book{BookID: 3, Title: "T", Author: "A", Active: true, LastAnnotation: 1}); err != nil {
		t.Fatal(err)
	}
	books, _ := s.Books()
	if len(books) != 1 {
		t.Fatalf("Books() = %+v", books)
	}
	b := books[0]
	if b.Title != "T" || b.Author != "A" || !b.Active || b.LastAnnotation != 42 {
		t.Errorf("book = %+v", b)
	}

	t.Run("clippings id", func(t *testing.T) {
		if err := s.UpsertBook(annotation.Book{CID: 99, Title: "Clip"}); err != nil {
			t.Fatal(err)
		}
		books, _ := s.Books()
		if len(books) != 2 || books[1].BookID != 99 {
			t.Errorf("Books() = %+v", books)
		}
	})

	t.Run("no id", func(t *testing.T) {
		if err := s.UpsertBook(annotation.Book{Title: "orphan"}); err == nil {
			t.Error("expected error for book without id")
		}
	})
}

func TestClaims(t *testing.T) {
	claims := NewClaims()
	first := openStore(t, claims)
	second := openStore(t, claims)

	if _, err := first.UpsertAnnotation(annotation.Annotation{BookID: 5, HighlightText: "x"}); err != nil {
		t.Fatal(err)
	}
	_, err := second.UpsertAnnotation(annotation.Annotation{BookID: 5, HighlightText: "y"})
	if !errors.Is(err, ErrBookBusy) {
		t.Fatalf("second session error = %v, want ErrBookBusy", err)
	}
	if _, err := second.UpsertAnnotation(annotation.Annotation{BookID: 6, HighlightText: "y"}); err != nil {
		t.Errorf("other book rejected: %v", err)
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	if claims.busy(5) {
		t.Error("claim survived Close")
	}
	if err := second.Claim(5); err != nil {
		t.Errorf("Claim() after release = %v", err)
	}
	if _, err := first.Books(); !errors.Is(err, ErrClosed) {
		t.Errorf("Books() on closed session = %v", err)
	}
}

func TestCapture(t *testing.T) {
	s := openStore(t, nil)
	s.UpsertAnnotation(annotation.Annotation{BookID: 2, AnnotationID: "a", HighlightText: "newer", LastModification: 50})

	n, err := s.Capture(2, []annotation.Annotation{
		{AnnotationID: "a", HighlightText: "older", LastModification: 10},
		{AnnotationID: "b", HighlightText: "kept", LastModification: 10},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Capture() = %d, want 1", n)
	}
	list, _ := s.Annotations(2)
	if len(list) != 2 {
		t.Fatalf("Annotations() = %+v", list)
	}
	for _, a := range list {
		if a.AnnotationID == "a" && a.HighlightText != "newer" {
			t.Errorf("captured record overwrote newer one: %+v", a)
		}
	}
}
