package adapter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"annmerge/annotation"
)

// ParseXML reads XML dump:
//
//	<annotations reader="...">
//	  <book uuid="..." title="..." author="..." active="true">
//	    <annotation id="..." color="..." location="..." timestamp="...">
//	      <highlight>...</highlight>
//	      <note>...</note>
//	    </annotation>
//	  </book>
//	</annotations>
//
// Timestamps are seconds since epoch or RFC 3339 times.
func ParseXML(r io.Reader) (*Dump, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "annotations" {
		return nil, fmt.Errorf("%w: root element must be <annotations>", ErrInvalid)
	}

	d := &Dump{Reader: root.SelectAttrValue("reader", "")}
	for _, be := range root.SelectElements("book") {
		b, err := xmlBook(be)
		if err != nil {
			return nil, err
		}
		e := Entry{Book: b}
		for _, ae := range be.SelectElements("annotation") {
			a, err := xmlAnnotation(ae)
			if err != nil {
				return nil, fmt.Errorf("book %q: %w", b.Title, err)
			}
			e.Annotations = append(e.Annotations, a)
		}
		d.Books = append(d.Books, e)
	}
	return d, nil
}

func xmlBook(e *etree.Element) (annotation.Book, error) {
	b := annotation.Book{
		UUID:       e.SelectAttrValue("uuid", ""),
		Title:      e.SelectAttrValue("title", ""),
		TitleSort:  e.SelectAttrValue("title_sort", ""),
		Author:     e.SelectAttrValue("author", ""),
		AuthorSort: e.SelectAttrValue("author_sort", ""),
		Genre:      e.SelectAttrValue("genre", ""),
		Path:       e.SelectAttrValue("path", ""),
		Active:     true,
	}
	if v := e.SelectAttrValue("book_id", ""); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return b, fmt.Errorf("%w: bad book_id %q", ErrInvalid, v)
		}
		b.BookID = id
	}
	if v := e.SelectAttrValue("active", ""); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return b, fmt.Errorf("%w: bad active flag %q", ErrInvalid, v)
		}
		b.Active = active
	}
	if b.BookID == 0 && b.UUID == "" && strings.TrimSpace(b.Title) == "" {
		return b, fmt.Errorf("%w: book needs book_id, uuid or title", ErrInvalid)
	}
	return b, nil
}

func xmlAnnotation(e *etree.Element) (annotation.Annotation, error) {
	a := annotation.Annotation{
		AnnotationID:   e.SelectAttrValue("id", ""),
		HighlightColor: normalizeColor(e.SelectAttrValue("color", "")),
		Location:       e.SelectAttrValue("location", ""),
		LocationSort:   e.SelectAttrValue("location_sort", ""),
		EpubCFI:        e.SelectAttrValue("epubcfi", ""),
		Genre:          e.SelectAttrValue("genre", ""),
		Reader:         e.SelectAttrValue("reader", ""),
	}
	if h := e.SelectElement("highlight"); h != nil {
		a.HighlightText = h.Text()
	}
	if n := e.SelectElement("note"); n != nil {
		a.NoteText = n.Text()
	}
	if v := e.SelectAttrValue("timestamp", ""); v != "" {
		ts, err := parseTimestamp(v)
		if err != nil {
			return a, fmt.Errorf("%w: bad timestamp %q", ErrInvalid, v)
		}
		a.LastModification = ts
	}
	return a, nil
}

func parseTimestamp(v string) (float64, error) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f < 0 {
			return 0, fmt.Errorf("negative timestamp")
		}
		return f, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return 0, err
	}
	return float64(t.UnixNano()) / float64(time.Second), nil
}
