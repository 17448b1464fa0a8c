// Package library is the book catalog annotations are written into. Books
// have built-in Comments field and any number of custom text fields
// addressed as "#label".
package library

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"annmerge/config"
)

//go:embed schema.sql
var schemaSQL string

var (
	// ErrNotFound is returned for unknown books and fields.
	ErrNotFound = errors.New("not found")
	// ErrWriteFailed is returned when library rejects metadata update.
	ErrWriteFailed = errors.New("library write failed")
)

// Metadata is the library view of a book.
type Metadata struct {
	ID         int64
	UUID       string
	Title      string
	TitleSort  string
	Author     string
	AuthorSort string
	Tags       []string
	Path       string
	Comments   string
	// Custom holds values of custom fields keyed by "#label".
	Custom map[string]string
}

// Field returns value of the named field.
func (m *Metadata) Field(name string) string {
	if name == config.CommentsField {
		return m.Comments
	}
	return m.Custom[name]
}

// Library is sqlite backed book catalog. All methods are safe for
// concurrent use.
type Library struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open opens library database at path creating it when necessary. Path
// ":memory:" opens private in-memory library.
func Open(path string, log *zap.Logger) (*Library, error) {
	flags := sqlite.OpenReadWrite | sqlite.OpenCreate | sqlite.OpenWAL
	if path == ":memory:" {
		flags = sqlite.OpenReadWrite | sqlite.OpenMemory
	}
	conn, err := sqlite.OpenConn(path, flags)
	if err != nil {
		return nil, fmt.Errorf("open library %q: %w", path, err)
	}
	if err := sqlitex.ExecuteTransient(conn, "PRAGMA foreign_keys = ON;", nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("configure library %q: %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schemaSQL, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("prepare library schema %q: %w", path, err)
	}
	return &Library{conn: conn, log: log.Named("library")}, nil
}

// Close closes underlying database.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

// lock serializes access to the connection and makes running statements
// interruptible by ctx. Returned function must be called when done.
func (l *Library) lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	if l.conn == nil {
		l.mu.Unlock()
		return nil, errors.New("library is closed")
	}
	l.conn.SetInterrupt(ctx.Done())
	return func() {
		l.conn.SetInterrupt(nil)
		l.mu.Unlock()
	}, nil
}

// CreateCustomField defines custom text field. Label must start with '#',
// name is human readable title shown in reports.
func (l *Library) CreateCustomField(ctx context.Context, label, name string) error {
	if !config.IsCustomField(label) {
		return fmt.Errorf("custom field label must start with '#': %q", label)
	}
	unlock, err := l.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	err = sqlitex.Execute(l.conn, `INSERT INTO custom_columns (label, name) VALUES (?, ?)
		ON CONFLICT(label) DO UPDATE SET name = excluded.name`,
		&sqlitex.ExecOptions{Args: []any{label, name}})
	if err != nil {
		return fmt.Errorf("create custom field %q: %w", label, err)
	}
	return nil
}

// CustomFields returns friendly names of custom fields keyed by label.
func (l *Library) CustomFields(ctx context.Context) (map[string]string, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return l.customFields()
}

func (l *Library) customFields() (map[string]string, error) {
	fields := make(map[string]string)
	err := sqlitex.Execute(l.conn, `SELECT label, name FROM custom_columns`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			fields[stmt.ColumnText(0)] = stmt.ColumnText(1)
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("read custom fields: %w", err)
	}
	return fields, nil
}

// FriendlyName returns human readable name of the field for reports.
func (l *Library) FriendlyName(ctx context.Context, field string) string {
	if !config.IsCustomField(field) {
		return field
	}
	fields, err := l.CustomFields(ctx)
	if err != nil {
		l.log.Debug("Unable to resolve field name", zap.String("field", field), zap.Error(err))
		return field
	}
	if name, ok := fields[field]; ok && name != "" {
		return name
	}
	return field
}

// CreateBook adds new book entry and returns its id. Missing uuid and sort
// values are generated.
func (l *Library) CreateBook(ctx context.Context, meta Metadata) (int64, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return l.createBook(meta)
}

// createBook must be called with connection locked.
func (l *Library) createBook(meta Metadata) (int64, error) {
	if meta.UUID == "" {
		meta.UUID = uuid.NewString()
	}
	if meta.TitleSort == "" {
		meta.TitleSort = TitleSort(meta.Title)
	}
	if meta.AuthorSort == "" {
		meta.AuthorSort = AuthorSort(meta.Author)
	}

	err := sqlitex.Execute(l.conn, `INSERT INTO books (uuid, title, title_sort, author, author_sort, tags, path, comments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			meta.UUID, meta.Title, meta.TitleSort, meta.Author, meta.AuthorSort,
			strings.Join(meta.Tags, ","), meta.Path, meta.Comments,
		}})
	if err != nil {
		return 0, fmt.Errorf("create book %q: %w", meta.Title, err)
	}
	id := l.conn.LastInsertRowID()
	l.log.Debug("Book created", zap.Int64("id", id), zap.String("title", meta.Title))
	return id, nil
}

// Books enumerates ids of all books in the library.
func (l *Library) Books(ctx context.Context) ([]int64, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var ids []int64
	err = sqlitex.Execute(l.conn, `SELECT id FROM books ORDER BY id`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			ids = append(ids, stmt.ColumnInt64(0))
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("enumerate books: %w", err)
	}
	return ids, nil
}

// Metadata returns book metadata including all custom fields.
func (l *Library) Metadata(ctx context.Context, id int64) (*Metadata, error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var meta *Metadata
	err = sqlitex.Execute(l.conn, `SELECT id, uuid, title, title_sort, author, author_sort, tags, path, comments
		FROM books WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				meta = &Metadata{
					ID:         stmt.ColumnInt64(0),
					UUID:       stmt.ColumnText(1),
					Title:      stmt.ColumnText(2),
					TitleSort:  stmt.ColumnText(3),
					Author:     stmt.ColumnText(4),
					AuthorSort: stmt.ColumnText(5),
					Tags:       splitTags(stmt.ColumnText(6)),
					Path:       stmt.ColumnText(7),
					Comments:   stmt.ColumnText(8),
					Custom:     make(map[string]string),
				}
				return nil
			}})
	if err != nil {
		return nil, fmt.Errorf("read book %d: %w", id, err)
	}
	if meta == nil {
		return nil, fmt.Errorf("book %d: %w", id, ErrNotFound)
	}

	err = sqlitex.Execute(l.conn, `SELECT c.label, COALESCE(v.value, '')
		FROM custom_columns c LEFT JOIN custom_values v ON v.label = c.label AND v.book = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				meta.Custom[stmt.ColumnText(0)] = stmt.ColumnText(1)
				return nil
			}})
	if err != nil {
		return nil, fmt.Errorf("read custom fields of book %d: %w", id, err)
	}
	return meta, nil
}

// Field returns value of a single field of the book.
func (l *Library) Field(ctx context.Context, id int64, name string) (string, error) {
	meta, err := l.Metadata(ctx, id)
	if err != nil {
		return "", err
	}
	if config.IsCustomField(name) {
		if _, ok := meta.Custom[name]; !ok {
			return "", fmt.Errorf("field %q: %w", name, ErrNotFound)
		}
	} else if name != config.CommentsField {
		return "", fmt.Errorf("field %q: %w", name, ErrNotFound)
	}
	return meta.Field(name), nil
}

// SetField writes single field of the book.
func (l *Library) SetField(ctx context.Context, id int64, name, value string) error {
	return l.SetMetadata(ctx, id, map[string]string{name: value})
}

// SetMetadata writes fields of the book in one transaction, either all of
// them are stored or none. Fields are keyed by "Comments" or "#label".
func (l *Library) SetMetadata(ctx context.Context, id int64, fields map[string]string) (err error) {
	unlock, err := l.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: book %d: %w", ErrWriteFailed, id, err)
		}
	}()
	defer sqlitex.Save(l.conn)(&err)

	var exists bool
	err = sqlitex.Execute(l.conn, `SELECT 1 FROM books WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{id}, ResultFunc: func(*sqlite.Stmt) error {
			exists = true
			return nil
		}})
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("book %d: %w", id, ErrNotFound)
	}

	custom, err := l.customFields()
	if err != nil {
		return err
	}
	for name, value := range fields {
		switch {
		case name == config.CommentsField:
			err = sqlitex.Execute(l.conn, `UPDATE books SET comments = ? WHERE id = ?`,
				&sqlitex.ExecOptions{Args: []any{value, id}})
		case config.IsCustomField(name):
			if _, ok := custom[name]; !ok {
				return fmt.Errorf("field %q: %w", name, ErrNotFound)
			}
			err = sqlitex.Execute(l.conn, `INSERT INTO custom_values (book, label, value) VALUES (?, ?, ?)
				ON CONFLICT(book, label) DO UPDATE SET value = excluded.value`,
				&sqlitex.ExecOptions{Args: []any{id, name, value}})
		default:
			return fmt.Errorf("field %q: %w", name, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("write field %q: %w", name, err)
		}
	}
	return nil
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
