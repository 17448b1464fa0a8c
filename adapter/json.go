package adapter

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"annmerge/annotation"
)

//go:embed dump.schema.json
var dumpSchema string

const schemaURL = "https://annmerge.local/dump.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(dumpSchema))
	if err != nil {
		return nil, fmt.Errorf("read dump schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add dump schema: %w", err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile dump schema: %w", err)
	}
	return sch, nil
})

type jsonDump struct {
	Reader string     `json:"reader"`
	Books  []jsonBook `json:"books"`
}

type jsonBook struct {
	BookID      int64            `json:"book_id"`
	UUID        string           `json:"uuid"`
	Title       string           `json:"title"`
	TitleSort   string           `json:"title_sort"`
	Author      string           `json:"author"`
	AuthorSort  string           `json:"author_sort"`
	Genre       string           `json:"genre"`
	Path        string           `json:"path"`
	Active      *bool            `json:"active"`
	Annotations []jsonAnnotation `json:"annotations"`
}

type jsonAnnotation struct {
	AnnotationID     string  `json:"annotation_id"`
	HighlightText    string  `json:"highlight_text"`
	NoteText         string  `json:"note_text"`
	HighlightColor   string  `json:"highlight_color"`
	Location         string  `json:"location"`
	LocationSort     string  `json:"location_sort"`
	EpubCFI          string  `json:"epubcfi"`
	Genre            string  `json:"genre"`
	Reader           string  `json:"reader"`
	LastModification float64 `json:"last_modification"`
}

// ParseJSON reads JSON dump validating it against the dump schema first.
func ParseJSON(r io.Reader) (*Dump, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read json dump: %w", err)
	}
	sch, err := compileSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	var jd jsonDump
	if err := json.Unmarshal(data, &jd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	d := &Dump{Reader: jd.Reader, Books: make([]Entry, 0, len(jd.Books))}
	for _, jb := range jd.Books {
		e := Entry{Book: annotation.Book{
			BookID:     jb.BookID,
			UUID:       jb.UUID,
			Title:      jb.Title,
			TitleSort:  jb.TitleSort,
			Author:     jb.Author,
			AuthorSort: jb.AuthorSort,
			Genre:      jb.Genre,
			Path:       jb.Path,
			Active:     jb.Active == nil || *jb.Active,
		}}
		for _, ja := range jb.Annotations {
			e.Annotations = append(e.Annotations, annotation.Annotation{
				AnnotationID:     ja.AnnotationID,
				HighlightText:    ja.HighlightText,
				NoteText:         ja.NoteText,
				HighlightColor:   normalizeColor(ja.HighlightColor),
				Location:         ja.Location,
				LocationSort:     ja.LocationSort,
				EpubCFI:          ja.EpubCFI,
				Genre:            ja.Genre,
				Reader:           ja.Reader,
				LastModification: ja.LastModification,
			})
		}
		d.Books = append(d.Books, e)
	}
	return d, nil
}
