// Package staging accumulates normalized records of a single import session
// before they are merged into library fields.
package staging

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"annmerge/annotation"
	"annmerge/common"
)

//go:embed schema.sql
var schemaSQL string

// ErrClosed is returned by operations on a finished session.
var ErrClosed = errors.New("staging session is closed")

// Store is one staging session backed by private in-memory database. Store
// is safe for concurrent use, but the whole session is expected to be driven
// by a single worker.
type Store struct {
	mu     sync.Mutex
	conn   *sqlite.Conn
	claims *Claims
	log    *zap.Logger
}

// Open starts new staging session. Books touched by the session are claimed
// in claims until Close.
func Open(claims *Claims, log *zap.Logger) (*Store, error) {
	conn, err := sqlite.OpenConn(":memory:", sqlite.OpenReadWrite, sqlite.OpenMemory)
	if err != nil {
		return nil, fmt.Errorf("open staging db: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create staging schema: %w", err)
	}
	if claims == nil {
		claims = NewClaims()
	}
	return &Store{conn: conn, claims: claims, log: log.Named("staging")}, nil
}

// Close discards staged data and releases claimed books.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	s.claims.releaseAll(s)
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Claim reserves book for this session.
func (s *Store) Claim(bookID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claim(bookID)
}

func (s *Store) claim(bookID int64) error {
	if s.conn == nil {
		return ErrClosed
	}
	if bookID == 0 {
		return errors.New("book id is required")
	}
	return s.claims.acquire(bookID, s)
}

// UpsertBook stores book metadata. Book must carry library id or clippings
// id. LastAnnotation is always derived from staged annotations.
func (s *Store) UpsertBook(b annotation.Book) (err error) {
	id := b.TargetID()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claim(id); err != nil {
		return err
	}
	defer sqlitex.Save(s.conn)(&err)

	err = sqlitex.Execute(s.conn, `INSERT INTO books
		(book_id, uuid, cid, author, author_sort, title, title_sort, genre, path, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			uuid = excluded.uuid, cid = excluded.cid,
			author = excluded.author, author_sort = excluded.author_sort,
			title = excluded.title, title_sort = excluded.title_sort,
			genre = excluded.genre, path = excluded.path, active = excluded.active`,
		&sqlitex.ExecOptions{Args: []any{id, b.UUID, b.CID, b.Author, b.AuthorSort, b.Title, b.TitleSort, b.Genre, b.Path, boolToInt(b.Active)}})
	if err != nil {
		return fmt.Errorf("upsert book %d: %w", id, err)
	}
	return s.refreshLastAnnotation(id)
}

// UpsertAnnotation stages annotation. Record with already known fingerprint
// replaces the old one only when it is not older, otherwise it is silently
// ignored. Reports whether record was stored.
func (s *Store) UpsertAnnotation(a annotation.Annotation) (stored bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claim(a.BookID); err != nil {
		return false, err
	}
	defer sqlitex.Save(s.conn)(&err)

	if err = s.upsertAnnotation(&a); err != nil {
		return false, err
	}
	if s.conn.Changes() == 0 {
		s.log.Debug("Ignoring stale annotation", zap.Int64("book", a.BookID), zap.Float64("timestamp", a.LastModification))
		return false, nil
	}
	err = sqlitex.Execute(s.conn, `INSERT INTO books (book_id) VALUES (?) ON CONFLICT(book_id) DO NOTHING`,
		&sqlitex.ExecOptions{Args: []any{a.BookID}})
	if err != nil {
		return false, fmt.Errorf("stage book %d: %w", a.BookID, err)
	}
	if err = s.refreshLastAnnotation(a.BookID); err != nil {
		return false, err
	}
	return true, nil
}

// Capture stages annotations recovered from previously rendered content.
// Returns number of records actually stored.
func (s *Store) Capture(bookID int64, list []annotation.Annotation) (int, error) {
	count := 0
	for _, a := range list {
		a.BookID = bookID
		ok, err := s.UpsertAnnotation(a)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func (s *Store) upsertAnnotation(a *annotation.Annotation) error {
	err := sqlitex.Execute(s.conn, `INSERT INTO annotations
		(book_id, fingerprint, annotation_id, highlight_text, note_text, highlight_color,
		 location, location_sort, epubcfi, genre, reader, last_modification)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id, fingerprint) DO UPDATE SET
			annotation_id = excluded.annotation_id, highlight_text = excluded.highlight_text,
			note_text = excluded.note_text, highlight_color = excluded.highlight_color,
			location = excluded.location, location_sort = excluded.location_sort,
			epubcfi = excluded.epubcfi, genre = excluded.genre, reader = excluded.reader,
			last_modification = excluded.last_modification
		WHERE excluded.last_modification >= annotations.last_modification`,
		&sqlitex.ExecOptions{Args: []any{
			a.BookID, a.Fingerprint(), a.AnnotationID, a.HighlightText, a.NoteText, string(a.Color()),
			a.Location, a.LocationSort, a.EpubCFI, a.Genre, a.Reader, a.LastModification,
		}})
	if err != nil {
		return fmt.Errorf("upsert annotation for book %d: %w", a.BookID, err)
	}
	return nil
}

func (s *Store) refreshLastAnnotation(bookID int64) error {
	err := sqlitex.Execute(s.conn, `UPDATE books SET last_annotation =
		(SELECT COALESCE(MAX(last_modification), 0) FROM annotations WHERE book_id = ?)
		WHERE book_id = ?`,
		&sqlitex.ExecOptions{Args: []any{bookID, bookID}})
	if err != nil {
		return fmt.Errorf("update last annotation of book %d: %w", bookID, err)
	}
	return nil
}

// Books returns all staged books ordered by id.
func (s *Store) Books() ([]annotation.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrClosed
	}

	var books []annotation.Book
	err := sqlitex.Execute(s.conn, `SELECT book_id, uuid, cid, author, author_sort, title, title_sort,
		genre, path, last_annotation, active FROM books ORDER BY book_id`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			books = append(books, annotation.Book{
				BookID:         stmt.ColumnInt64(0),
				UUID:           stmt.ColumnText(1),
				CID:            stmt.ColumnInt64(2),
				Author:         stmt.ColumnText(3),
				AuthorSort:     stmt.ColumnText(4),
				Title:          stmt.ColumnText(5),
				TitleSort:      stmt.ColumnText(6),
				Genre:          stmt.ColumnText(7),
				Path:           stmt.ColumnText(8),
				LastAnnotation: stmt.ColumnFloat(9),
				Active:         stmt.ColumnInt64(10) != 0,
			})
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("read staged books: %w", err)
	}
	return books, nil
}

// Annotations returns staged annotations of the book in fingerprint order,
// callers sort them for presentation.
func (s *Store) Annotations(bookID int64) ([]annotation.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrClosed
	}

	var list []annotation.Annotation
	err := sqlitex.Execute(s.conn, `SELECT annotation_id, highlight_text, note_text, highlight_color,
		location, location_sort, epubcfi, genre, reader, last_modification
		FROM annotations WHERE book_id = ? ORDER BY fingerprint`,
		&sqlitex.ExecOptions{
			Args: []any{bookID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				list = append(list, annotation.Annotation{
					BookID:           bookID,
					AnnotationID:     stmt.ColumnText(0),
					HighlightText:    stmt.ColumnText(1),
					NoteText:         stmt.ColumnText(2),
					HighlightColor:   common.HighlightColor(stmt.ColumnText(3)),
					Location:         stmt.ColumnText(4),
					LocationSort:     stmt.ColumnText(5),
					EpubCFI:          stmt.ColumnText(6),
					Genre:            stmt.ColumnText(7),
					Reader:           stmt.ColumnText(8),
					LastModification: stmt.ColumnFloat(9),
				})
				return nil
			}})
	if err != nil {
		return nil, fmt.Errorf("read staged annotations of book %d: %w", bookID, err)
	}
	return list, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
