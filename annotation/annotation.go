// Package annotation defines normalized records produced by reader adapters
// and consumed by staging, rendering and merging.
package annotation

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"annmerge/common"
)

// Annotation is one highlight, note or bookmark.
type Annotation struct {
	// AnnotationID is source provided identity, may be empty.
	AnnotationID   string
	BookID         int64
	HighlightText  string
	NoteText       string
	HighlightColor common.HighlightColor
	// Location is opaque locator as reported by the source, LocationSort is
	// its sortable normalized form.
	Location         string
	LocationSort     string
	EpubCFI          string
	Genre            string
	Reader           string
	LastModification float64
}

// Color returns highlight color falling back to default one for unknown or
// absent values.
func (a *Annotation) Color() common.HighlightColor {
	if c, err := common.ParseHighlightColor(string(a.HighlightColor)); err == nil {
		return c
	}
	return common.DefaultHighlightColor
}

// Empty reports annotations carrying no content worth rendering.
func (a *Annotation) Empty() bool {
	return strings.TrimSpace(a.HighlightText) == "" && strings.TrimSpace(a.NoteText) == "" && a.Location == ""
}

// unstorable maps characters html parser would not give back unchanged when
// content is read from a field: NUL is dropped from text and replaced in
// attributes, carriage returns are folded into line feeds.
var unstorable = strings.NewReplacer("\x00", "", "\r\n", "\n", "\r", "\n")

// Clean removes characters which do not survive storing annotation in a
// field, so records read back keep their fingerprint.
func (a *Annotation) Clean() {
	for _, s := range [...]*string{
		&a.AnnotationID, &a.HighlightText, &a.NoteText, &a.Location,
		&a.LocationSort, &a.EpubCFI, &a.Genre, &a.Reader,
	} {
		*s = unstorable.Replace(*s)
	}
}

// Fingerprint returns deterministic deduplication key. Two records with the
// same fingerprint are the same annotation. Source identity is preferred when
// present, otherwise it is derived from book, location and normalized text.
func (a *Annotation) Fingerprint() string {
	h := sha1.New()
	write := func(parts ...string) {
		for _, p := range parts {
			// length prefix keeps ("ab","c") and ("a","bc") apart
			h.Write([]byte(strconv.Itoa(len(p))))
			h.Write([]byte{':'})
			h.Write([]byte(p))
		}
	}
	book := strconv.FormatInt(a.BookID, 10)
	if id := strings.TrimSpace(a.AnnotationID); id != "" {
		write("id", book, a.Reader, id)
	} else {
		write("loc", book, strings.TrimSpace(a.Location), normalizeText(a.HighlightText))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeText makes text comparison insensitive to unicode composition and
// surrounding or repeated whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
