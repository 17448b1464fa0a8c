// Package export writes annotations stored in library fields as Markdown
// documents.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gosimple/slug"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"annmerge/annotation"
	"annmerge/common"
	"annmerge/field"
	"annmerge/library"
)

// ErrNoAnnotations is returned for books without annotation container.
var ErrNoAnnotations = errors.New("book has no annotations")

// Library provides book metadata.
type Library interface {
	Metadata(ctx context.Context, id int64) (*library.Metadata, error)
}

// Exporter converts annotation containers to Markdown.
type Exporter struct {
	lib     Library
	sortKey common.SortKey
	log     *zap.Logger
}

func New(lib Library, sortKey common.SortKey, log *zap.Logger) *Exporter {
	return &Exporter{lib: lib, sortKey: sortKey, log: log.Named("export")}
}

// Book returns file name and Markdown document with annotations of the book
// stored in the named field.
func (x *Exporter) Book(ctx context.Context, id int64, name string) (string, []byte, error) {
	meta, err := x.lib.Metadata(ctx, id)
	if err != nil {
		return "", nil, err
	}
	sub := field.Split(meta.Field(name)).Subtree
	if sub == nil {
		return "", nil, fmt.Errorf("book %d: %w", id, ErrNoAnnotations)
	}
	list := sub.Annotations(id)
	annotation.Sort(list, x.sortKey)

	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(meta.Title))
	if meta.Author != "" {
		fmt.Fprintf(&b, "<p><em>%s</em></p>", html.EscapeString(meta.Author))
	}
	for _, n := range sub.Legacy() {
		if err := html.Render(&b, n); err != nil {
			return "", nil, fmt.Errorf("book %d: %w", id, err)
		}
	}
	for i := range list {
		writeAnnotation(&b, &list[i])
	}

	md, err := htmltomarkdown.ConvertString(b.String())
	if err != nil {
		return "", nil, fmt.Errorf("book %d: convert to markdown: %w", id, err)
	}
	return FileName(meta), []byte(strings.TrimSpace(md) + "\n"), nil
}

func writeAnnotation(b *strings.Builder, a *annotation.Annotation) {
	lines := func(s string) string {
		return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
	}
	b.WriteString("<hr>")
	if a.HighlightText != "" {
		fmt.Fprintf(b, "<blockquote><p>%s</p></blockquote>", lines(a.HighlightText))
	}
	if a.NoteText != "" {
		fmt.Fprintf(b, "<p>%s</p>", lines(a.NoteText))
	}
	var info []string
	if a.Location != "" {
		info = append(info, html.EscapeString(a.Location))
	}
	info = append(info, string(a.Color()))
	if a.Reader != "" {
		info = append(info, html.EscapeString(a.Reader))
	}
	fmt.Fprintf(b, "<p><small>%s</small></p>", strings.Join(info, " · "))
}

// FileName returns Markdown file name for the book.
func FileName(meta *library.Metadata) string {
	base := slug.Make(strings.TrimSpace(meta.Title + " " + meta.Author))
	if base == "" {
		base = fmt.Sprintf("book-%d", meta.ID)
	}
	return base + ".md"
}

// uniqueName returns fname or, when it is already taken in this export,
// the name suffixed with book id.
func uniqueName(used map[string]bool, fname string, id int64) string {
	base := strings.TrimSuffix(fname, ".md")
	for n := 0; used[fname]; n++ {
		if n == 0 {
			fname = fmt.Sprintf("%s-%d.md", base, id)
		} else {
			fname = fmt.Sprintf("%s-%d-%d.md", base, id, n)
		}
	}
	used[fname] = true
	return fname
}

// Export writes documents of the books into dir skipping books without
// annotations. Books sharing title and author get their ids appended to
// file names. Returns number of files written, failures of individual
// books are combined.
func (x *Exporter) Export(ctx context.Context, ids []int64, name, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export directory: %w", err)
	}

	var (
		written int
		errs    error
		used    = make(map[string]bool, len(ids))
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return written, multierr.Append(errs, err)
		}
		fname, doc, err := x.Book(ctx, id, name)
		if errors.Is(err, ErrNoAnnotations) {
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		path := filepath.Join(dir, uniqueName(used, fname, id))
		if err := os.WriteFile(path, doc, 0o644); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("book %d: %w", id, err))
			continue
		}
		x.log.Debug("Annotations exported", zap.Int64("book", id), zap.String("file", path))
		written++
	}
	return written, errs
}
