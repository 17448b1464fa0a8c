// Package render produces annotation containers stored in library fields.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"annmerge/annotation"
	"annmerge/common"
	"annmerge/config"
	"annmerge/css"
)

// Markers recognized by the field parser. They never change between
// configurations or destination fields.
const (
	ContainerClass  = "user_annotations"
	AnnotationClass = "annotation"
	LegacyClass     = "legacy_annotations"
	DividerClass    = "comments_divider"
	HighlightClass  = "highlight"
	NoteClass       = "note"
	LocationClass   = "location"

	// FormatVersion is written into every container, containers without it
	// are legacy ones.
	FormatVersion = "2"
)

// Data attributes carrying recoverable annotation state.
const (
	AttrVersion      = "data-annotations-version"
	AttrBookID       = "data-book-id"
	AttrFingerprint  = "data-fingerprint"
	AttrAnnotationID = "data-annotation-id"
	AttrTimestamp    = "data-timestamp"
	AttrLocation     = "data-location"
	AttrLocationSort = "data-location-sort"
	AttrColor        = "data-color"
	AttrReader       = "data-reader"
	AttrEpubCFI      = "data-epubcfi"
	AttrGenre        = "data-genre"
)

const dividerStyle = "text-align:center;margin:1em 0 1em 0"

// Renderer converts annotations of a single book into an HTML fragment using
// configured appearance. Output depends only on input and configuration.
type Renderer struct {
	cfg    *config.AppearanceConfig
	custom bool

	container string
	highlight string
	note      string
	location  string
	divider   string
	// highlight style per color, color map entry with highlight_style on top
	colors map[common.HighlightColor]string

	log *zap.Logger
}

// New prepares renderer for the Comments field.
func New(cfg *config.AppearanceConfig, log *zap.Logger) *Renderer {
	p := css.NewParser(log)
	highlight := p.ParseInline(cfg.HighlightStyle)
	r := &Renderer{
		cfg:       cfg,
		container: p.ParseInline(cfg.ContainerStyle).String(),
		highlight: highlight.String(),
		note:      p.ParseInline(cfg.NoteStyle).String(),
		location:  p.ParseInline(cfg.LocationStyle).String(),
		divider:   p.ParseInline(dividerStyle).String(),
		colors:    make(map[common.HighlightColor]string, len(cfg.Colors)),
		log:       log.Named("render"),
	}
	for name, style := range cfg.Colors {
		color, err := common.ParseHighlightColor(name)
		if err != nil {
			r.log.Warn("Ignoring unknown highlight color", zap.String("color", name))
			continue
		}
		r.colors[color] = p.ParseInline(style).Merge(highlight).String()
	}
	return r
}

// ForField returns renderer choosing wrapper elements suitable for the
// destination field. Comments field is rich text and gets paragraphs, custom
// columns get plain divisions. Container markers are the same for both.
func (r *Renderer) ForField(name string) *Renderer {
	c := *r
	c.custom = config.IsCustomField(name)
	return &c
}

// Render returns container with annotations in the given order. Legacy
// nodes, if any, are re-emitted verbatim ahead of annotations. Empty
// annotations are skipped.
func (r *Renderer) Render(bookID int64, list []annotation.Annotation, legacy ...*html.Node) (string, error) {
	root := element(atom.Div, ContainerClass, "")
	setAttr(root, AttrVersion, FormatVersion)
	setAttr(root, AttrBookID, strconv.FormatInt(bookID, 10))
	if r.container != "" {
		setAttr(root, "style", r.container)
	}

	if len(legacy) > 0 {
		group := element(atom.Div, LegacyClass, "")
		for _, n := range legacy {
			group.AppendChild(cloneNode(n))
		}
		root.AppendChild(group)
	}

	for _, a := range list {
		if a.Empty() {
			continue
		}
		a.BookID = bookID
		root.AppendChild(r.annotation(&a))
	}

	var b strings.Builder
	if err := html.Render(&b, root); err != nil {
		return "", fmt.Errorf("render annotations of book %d: %w", bookID, err)
	}
	return b.String(), nil
}

// Divider returns separator placed between user content and container.
func (r *Renderer) Divider() string {
	div := element(atom.Div, DividerClass, "")
	p := element(atom.P, "", r.divider)
	p.AppendChild(&html.Node{Type: html.TextNode, Data: html.UnescapeString(r.cfg.DividerText)})
	div.AppendChild(p)

	var b strings.Builder
	// rendering into strings.Builder cannot fail
	_ = html.Render(&b, div)
	return b.String()
}

func (r *Renderer) annotation(a *annotation.Annotation) *html.Node {
	color := a.Color()

	n := element(atom.Div, AnnotationClass, "")
	setAttr(n, AttrFingerprint, a.Fingerprint())
	setAttr(n, AttrTimestamp, strconv.FormatFloat(a.LastModification, 'f', -1, 64))
	setAttr(n, AttrColor, string(color))
	for _, kv := range [...][2]string{
		{AttrAnnotationID, a.AnnotationID},
		{AttrLocation, a.Location},
		{AttrLocationSort, a.LocationSort},
		{AttrReader, a.Reader},
		{AttrEpubCFI, a.EpubCFI},
		{AttrGenre, a.Genre},
	} {
		if kv[1] != "" {
			setAttr(n, kv[0], kv[1])
		}
	}

	tag := atom.P
	if r.custom {
		tag = atom.Div
	}
	if a.HighlightText != "" {
		style := r.highlight
		if cs, ok := r.colors[color]; ok {
			style = cs
		}
		n.AppendChild(textElement(tag, HighlightClass, style, a.HighlightText))
	}
	if a.NoteText != "" {
		n.AppendChild(textElement(tag, NoteClass, r.note, a.NoteText))
	}
	if r.cfg.ShowLocation {
		if text := r.locationText(a); text != "" {
			n.AppendChild(textElement(tag, LocationClass, r.location, text))
		}
	}
	return n
}

func (r *Renderer) locationText(a *annotation.Annotation) string {
	var parts []string
	if a.Location != "" {
		parts = append(parts, a.Location)
	}
	if a.LastModification > 0 && r.cfg.TimestampFormat != "" {
		sec := int64(a.LastModification)
		parts = append(parts, time.Unix(sec, 0).UTC().Format(r.cfg.TimestampFormat))
	}
	return strings.Join(parts, " • ")
}

func element(a atom.Atom, class, style string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	if class != "" {
		setAttr(n, "class", class)
	}
	if style != "" {
		setAttr(n, "style", style)
	}
	return n
}

// textElement keeps line breaks of the text as <br> elements.
func textElement(a atom.Atom, class, style, text string) *html.Node {
	n := element(a, class, style)
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			n.AppendChild(&html.Node{Type: html.ElementNode, DataAtom: atom.Br, Data: "br"})
		}
		if line != "" {
			n.AppendChild(&html.Node{Type: html.TextNode, Data: line})
		}
	}
	return n
}

func setAttr(n *html.Node, key, val string) {
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{Type: n.Type, DataAtom: n.DataAtom, Data: n.Data, Namespace: n.Namespace}
	c.Attr = append([]html.Attribute(nil), n.Attr...)
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(cloneNode(ch))
	}
	return c
}
