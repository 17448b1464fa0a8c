package field

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"annmerge/annotation"
	"annmerge/common"
	"annmerge/render"
)

// Subtree is a set of annotation containers extracted from a field, in
// document order.
type Subtree struct {
	containers []*html.Node
}

func newSubtree(chunks []string) *Subtree {
	s := &Subtree{}
	context := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	for _, chunk := range chunks {
		nodes, err := html.ParseFragment(strings.NewReader(chunk), context)
		if err != nil || len(nodes) == 0 {
			continue
		}
		var container *html.Node
		for _, n := range nodes {
			if container == nil && n.Type == html.ElementNode && n.DataAtom == atom.Div {
				container = n
				continue
			}
			if container != nil {
				// misnested markup closed container early, keep the rest
				// inside of it
				container.AppendChild(n)
			}
		}
		if container != nil {
			s.containers = append(s.containers, container)
		}
	}
	return s
}

// Len returns number of extracted containers.
func (s *Subtree) Len() int {
	if s == nil {
		return 0
	}
	return len(s.containers)
}

// Versioned reports whether every container carries recoverable annotations.
func (s *Subtree) Versioned() bool {
	if s == nil {
		return false
	}
	for _, c := range s.containers {
		if !versioned(c) {
			return false
		}
	}
	return true
}

// Annotations recovers individual annotations from versioned containers.
func (s *Subtree) Annotations(bookID int64) []annotation.Annotation {
	if s == nil {
		return nil
	}
	var list []annotation.Annotation
	for _, c := range s.containers {
		if !versioned(c) {
			continue
		}
		for n := c.FirstChild; n != nil; n = n.NextSibling {
			if isElement(n, render.AnnotationClass) {
				list = append(list, recoverAnnotation(n, bookID))
			}
		}
	}
	return list
}

// Legacy returns content which could not be decomposed into annotations:
// whole containers written by older versions and anything found in a
// versioned container besides annotations. Returned nodes still belong to
// the subtree.
func (s *Subtree) Legacy() []*html.Node {
	if s == nil {
		return nil
	}
	var nodes []*html.Node
	for _, c := range s.containers {
		ver := versioned(c)
		for n := c.FirstChild; n != nil; n = n.NextSibling {
			switch {
			case isBlank(n):
			case ver && isElement(n, render.AnnotationClass):
			case ver && isElement(n, render.LegacyClass):
				for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
					if !isBlank(ch) {
						nodes = append(nodes, ch)
					}
				}
			default:
				nodes = append(nodes, n)
			}
		}
	}
	return nodes
}

func recoverAnnotation(n *html.Node, bookID int64) annotation.Annotation {
	a := annotation.Annotation{
		BookID:       bookID,
		AnnotationID: attr(n, render.AttrAnnotationID),
		Location:     attr(n, render.AttrLocation),
		LocationSort: attr(n, render.AttrLocationSort),
		Reader:       attr(n, render.AttrReader),
		EpubCFI:      attr(n, render.AttrEpubCFI),
		Genre:        attr(n, render.AttrGenre),
	}
	if ts, err := strconv.ParseFloat(attr(n, render.AttrTimestamp), 64); err == nil {
		a.LastModification = ts
	}
	if c, err := common.ParseHighlightColor(attr(n, render.AttrColor)); err == nil {
		a.HighlightColor = c
	} else {
		a.HighlightColor = common.DefaultHighlightColor
	}
	if h := find(n, render.HighlightClass); h != nil {
		a.HighlightText = text(h)
	}
	if t := find(n, render.NoteClass); t != nil {
		a.NoteText = text(t)
	}
	return a
}

func versioned(n *html.Node) bool {
	_, ok := lookup(n, render.AttrVersion)
	return ok
}

func attr(n *html.Node, key string) string {
	v, _ := lookup(n, key)
	return v
}

func lookup(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func isElement(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func isBlank(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimSpace(n.Data) == ""
}

// find returns first descendant with given class.
func find(n *html.Node, class string) *html.Node {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if isElement(ch, class) {
			return ch
		}
		if f := find(ch, class); f != nil {
			return f
		}
	}
	return nil
}

// text collects text content turning <br> back into line breaks.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			switch {
			case ch.Type == html.TextNode:
				b.WriteString(ch.Data)
			case ch.Type == html.ElementNode && ch.DataAtom == atom.Br:
				b.WriteByte('\n')
			default:
				walk(ch)
			}
		}
	}
	walk(n)
	return b.String()
}
