// Package adapter reads annotation dumps produced by reader applications and
// translates them into normalized records.
package adapter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"annmerge/annotation"
	"annmerge/archive"
	"annmerge/common"
)

var (
	// ErrUnsupported is returned for files of unknown format.
	ErrUnsupported = errors.New("unsupported dump format")
	// ErrInvalid is returned when dump content does not conform to its format.
	ErrInvalid = errors.New("invalid dump")
)

// Entry is a book with its annotations.
type Entry struct {
	Book        annotation.Book
	Annotations []annotation.Annotation
}

// Dump is everything a single reader application reported.
type Dump struct {
	Reader string
	Books  []Entry
}

// Count returns total number of annotations in the dump.
func (d *Dump) Count() int {
	n := 0
	for _, e := range d.Books {
		n += len(e.Annotations)
	}
	return n
}

// Supported reports whether file looks like something Load could read.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".xml", ".zip":
		return true
	}
	return false
}

// Load reads dump file choosing format by extension. Annotations without
// reader name get the one of the dump, or defaultReader when dump has none.
// Zip archive is treated as a set of dumps, its JSON and XML files are
// combined into single dump.
func Load(path, defaultReader string) (*Dump, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return loadArchive(path, defaultReader)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dump: %w", err)
	}
	defer f.Close()

	d, err := Read(path, f, defaultReader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Read parses dump content, name is only used to select format.
func Read(name string, r io.Reader, defaultReader string) (d *Dump, err error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		d, err = ParseJSON(r)
	case ".xml":
		d, err = ParseXML(r)
	default:
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, err
	}
	d.normalize(defaultReader)
	return d, nil
}

func loadArchive(path, defaultReader string) (*Dump, error) {
	var (
		combined Dump
		readers  []string
	)
	err := archive.Walk(path, func(name string) bool {
		return Supported(name) && !strings.EqualFold(filepath.Ext(name), ".zip")
	}, func(name string, r io.Reader) error {
		d, err := Read(name, r, defaultReader)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if !slices.Contains(readers, d.Reader) {
			readers = append(readers, d.Reader)
		}
		combined.Books = append(combined.Books, d.Books...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(readers) == 0 {
		return nil, fmt.Errorf("%s: no dumps in archive: %w", path, ErrInvalid)
	}
	combined.Reader = strings.Join(readers, ", ")
	return &combined, nil
}

func (d *Dump) normalize(defaultReader string) {
	d.Reader = strings.TrimSpace(d.Reader)
	if d.Reader == "" {
		d.Reader = defaultReader
	}
	for i := range d.Books {
		e := &d.Books[i]
		for j := range e.Annotations {
			a := &e.Annotations[j]
			a.Clean()
			if a.Reader == "" {
				a.Reader = d.Reader
			}
			if a.Genre == "" {
				a.Genre = e.Book.Genre
			}
			a.HighlightColor = normalizeColor(string(a.HighlightColor))
			e.Book.Touch(a)
		}
	}
}

// normalizeColor maps color names case insensitively, unknown names are
// dropped and rendered with default color.
func normalizeColor(name string) common.HighlightColor {
	if c, err := common.ParseHighlightColor(strings.TrimSpace(name)); err == nil {
		return c
	}
	return ""
}
