// Package field locates annotation containers inside library field content
// and separates them from user authored text.
package field

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"annmerge/render"
)

// Result of splitting field content.
type Result struct {
	// Residual is the input with containers and their dividers removed,
	// everything else is kept byte for byte.
	Residual string
	// Subtree holds extracted containers, nil when none were found.
	Subtree *Subtree
	// Opaque is set when content had container start which was never
	// closed. Such container is left in the residual untouched.
	Opaque bool
}

type span struct {
	start, end int
}

// Split removes every annotation container from raw field content. Divider
// immediately preceding a container, separated by whitespace at most, is
// removed together with it. Split never fails, content it cannot make
// sense of is returned as residual.
func Split(raw string) Result {
	var (
		res    Result
		cut    []span
		chunks []string
	)

	for pos := 0; pos < len(raw); {
		found, next, ok := scan(raw, pos)
		if ok {
			for _, f := range found {
				cut = append(cut, f.cut)
				chunks = append(chunks, raw[f.container.start:f.container.end])
			}
			break
		}
		// unterminated container, containers found before it are kept and
		// scanning resumes right after its start tag
		res.Opaque = true
		for _, f := range found {
			cut = append(cut, f.cut)
			chunks = append(chunks, raw[f.container.start:f.container.end])
		}
		pos = next
	}

	if len(cut) == 0 {
		res.Residual = raw
		return res
	}

	var b strings.Builder
	b.Grow(len(raw))
	last := 0
	for _, c := range cut {
		b.WriteString(raw[last:c.start])
		last = c.end
	}
	b.WriteString(raw[last:])
	res.Residual = b.String()
	res.Subtree = newSubtree(chunks)
	return res
}

// Contains reports whether content has at least one complete container.
func Contains(raw string) bool {
	return Split(raw).Subtree != nil
}

type found struct {
	// cut covers container and its divider if any
	cut       span
	container span
}

// scan tokenizes raw starting at pos collecting complete containers. When
// it runs into container which is never closed it returns ok == false and
// offset right after that container start tag.
func scan(raw string, pos int) (result []found, next int, ok bool) {
	const (
		none = iota
		inContainer
		inDivider
	)

	var (
		z       = html.NewTokenizer(strings.NewReader(raw[pos:]))
		offset  = pos
		state   = none
		depth   = 0
		start   = 0
		tagEnd  = 0
		divider *span
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// strings reader fails only with io.EOF
			if state == inContainer {
				return result, tagEnd, false
			}
			return result, len(raw), true
		}
		tokStart := offset
		offset += len(z.Raw())

		switch state {
		case none:
			switch tt {
			case html.StartTagToken:
				name, hasAttr := z.TagName()
				if atom.Lookup(name) != atom.Div {
					divider = nil
					continue
				}
				switch divClass(z, hasAttr) {
				case render.ContainerClass:
					state, depth, start, tagEnd = inContainer, 1, tokStart, offset
				case render.DividerClass:
					state, depth, start = inDivider, 1, tokStart
					divider = nil
				default:
					divider = nil
				}
			case html.TextToken:
				if strings.TrimSpace(string(z.Raw())) != "" {
					divider = nil
				}
			default:
				divider = nil
			}
		case inContainer, inDivider:
			switch tt {
			case html.StartTagToken:
				if name, _ := z.TagName(); atom.Lookup(name) == atom.Div {
					depth++
				}
			case html.EndTagToken:
				if name, _ := z.TagName(); atom.Lookup(name) == atom.Div {
					depth--
				}
			}
			if depth > 0 {
				continue
			}
			if state == inDivider {
				divider = &span{start: start, end: offset}
				state = none
				continue
			}
			f := found{cut: span{start: start, end: offset}, container: span{start: start, end: offset}}
			if divider != nil {
				f.cut.start = divider.start
			}
			result = append(result, f)
			divider, state = nil, none
		}
	}
}

// divClass returns recognized marker class of the current div start tag.
func divClass(z *html.Tokenizer, hasAttr bool) string {
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) != "class" {
			continue
		}
		for _, c := range strings.Fields(string(val)) {
			if c == render.ContainerClass || c == render.DividerClass {
				return c
			}
		}
	}
	return ""
}
