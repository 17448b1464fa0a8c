package library

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"annmerge/annotation"
	"annmerge/field"
)

const (
	ClippingsTag    = "Clippings"
	ClippingsAuthor = "Various"
)

type entry struct {
	id     int64
	author string
}

// Index maps books reported by annotation sources to library ids.
type Index struct {
	byUUID  map[string]int64
	byTitle map[string][]entry
}

// Index builds lookup tables by uuid and by title of all library books.
func (l *Library) Index(ctx context.Context) (*Index, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	idx := &Index{byUUID: make(map[string]int64), byTitle: make(map[string][]entry)}
	err = sqlitex.Execute(l.conn, `SELECT id, uuid, title, author FROM books ORDER BY id`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			id := stmt.ColumnInt64(0)
			idx.byUUID[stmt.ColumnText(1)] = id
			key := foldKey(stmt.ColumnText(2))
			idx.byTitle[key] = append(idx.byTitle[key], entry{id: id, author: foldKey(stmt.ColumnText(3))})
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("index library: %w", err)
	}
	l.log.Debug("Library indexed", zap.Int("books", len(idx.byUUID)))
	return idx, nil
}

// Match finds library id of the book. Uuid match wins, otherwise title is
// compared case insensitively with author used to pick one of several books
// sharing the same title.
func (idx *Index) Match(b *annotation.Book) (int64, bool) {
	if b.UUID != "" {
		if id, ok := idx.byUUID[b.UUID]; ok {
			return id, true
		}
	}
	candidates := idx.byTitle[foldKey(b.Title)]
	switch len(candidates) {
	case 0:
		return 0, false
	case 1:
		return candidates[0].id, true
	}
	author := foldKey(b.Author)
	for _, c := range candidates {
		if c.author == author {
			return c.id, true
		}
	}
	return 0, false
}

// Len returns number of indexed books.
func (idx *Index) Len() int {
	return len(idx.byUUID)
}

// foldKey normalizes title or author for caseless comparison.
func foldKey(s string) string {
	// Caser is stateful, it cannot be shared
	return strings.Join(strings.Fields(cases.Fold().String(s)), " ")
}

// ClippingsBook finds synthetic book with given title which receives
// annotations of books not present in the library, creating it if
// necessary.
func (l *Library) ClippingsBook(ctx context.Context, title string) (id int64, err error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	defer sqlitex.Save(l.conn)(&err)

	err = sqlitex.Execute(l.conn, `SELECT id, tags FROM books WHERE title = ? ORDER BY id`,
		&sqlitex.ExecOptions{
			Args: []any{title},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				if id == 0 && slices.Contains(splitTags(stmt.ColumnText(1)), ClippingsTag) {
					id = stmt.ColumnInt64(0)
				}
				return nil
			}})
	if err != nil {
		return 0, fmt.Errorf("look up clippings book %q: %w", title, err)
	}
	if id != 0 {
		return id, nil
	}
	return l.createBook(Metadata{Title: title, Author: ClippingsAuthor, Tags: []string{ClippingsTag}})
}

// ExistingAnnotations returns ids of books having annotation container in
// the named field. Unless all is set it stops at the first one, which is
// enough to tell whether any annotations exist.
func ExistingAnnotations(ctx context.Context, lib *Library, name string, all bool) ([]int64, error) {
	ids, err := lib.Books(ctx)
	if err != nil {
		return nil, err
	}
	var annotated []int64
	for _, id := range ids {
		raw, err := lib.Field(ctx, id, name)
		if err != nil {
			return nil, err
		}
		if !field.Contains(raw) {
			continue
		}
		annotated = append(annotated, id)
		if !all {
			break
		}
	}
	if all {
		lib.log.Info("Annotated books identified", zap.String("field", name), zap.Int("annotated", len(annotated)), zap.Int("total", len(ids)))
	}
	return annotated, nil
}
