// Package css normalizes inline style declarations used by rendered
// annotations.
package css

import (
	"errors"
	"io"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// Declaration is a single property of an inline style.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// Style is an ordered list of declarations with unique properties.
type Style []Declaration

// String returns canonical form of the style: lowercase properties, single
// spaces between value tokens, declarations separated by "; ".
func (s Style) String() string {
	parts := make([]string, 0, len(s))
	for _, d := range s {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}

// Merge returns style with declarations of other applied on top of s.
// Properties keep the position of their first appearance.
func (s Style) Merge(other Style) Style {
	out := make(Style, 0, len(s)+len(other))
	index := make(map[string]int, len(s)+len(other))
	for _, list := range []Style{s, other} {
		for _, d := range list {
			if i, ok := index[d.Property]; ok {
				out[i] = d
				continue
			}
			index[d.Property] = len(out)
			out = append(out, d)
		}
	}
	return out
}

// Parser parses inline styles.
type Parser struct {
	log *zap.Logger
}

// NewParser creates a new inline style parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser")}
}

// ParseInline parses content of a style attribute. Malformed declarations
// are dropped, repeated properties are collapsed with the last one winning.
func (p *Parser) ParseInline(text string) Style {
	var style Style

	parser := css.NewParser(parse.NewInput(strings.NewReader(text)), true)
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if parser.HasParseError() {
				// malformed declaration, parser resumes at the next one
				p.log.Debug("Dropping malformed style declaration", zap.String("style", text), zap.Error(parser.Err()))
				continue
			}
			if err := parser.Err(); err != nil && !errors.Is(err, io.EOF) {
				p.log.Debug("Inline style parse error", zap.String("style", text), zap.Error(err))
			}
			return Style{}.Merge(style)
		case css.DeclarationGrammar:
			if d, ok := declaration(string(data), parser.Values()); ok {
				style = append(style, d)
			}
		}
	}
}

func declaration(name string, tokens []css.Token) (Declaration, bool) {
	d := Declaration{Property: strings.ToLower(strings.TrimSpace(name))}

	// strip trailing "!important"
	end := len(tokens)
	for end > 0 && tokens[end-1].TokenType == css.WhitespaceToken {
		end--
	}
	if end >= 2 && tokens[end-1].TokenType == css.IdentToken && strings.EqualFold(string(tokens[end-1].Data), "important") {
		i := end - 2
		for i >= 0 && tokens[i].TokenType == css.WhitespaceToken {
			i--
		}
		if i >= 0 && tokens[i].TokenType == css.DelimToken && string(tokens[i].Data) == "!" {
			d.Important = true
			end = i
		}
	}

	var b strings.Builder
	space := false
	for _, t := range tokens[:end] {
		if t.TokenType == css.WhitespaceToken {
			space = b.Len() > 0
			continue
		}
		if space && t.TokenType != css.CommaToken {
			b.WriteByte(' ')
		}
		b.Write(t.Data)
		space = t.TokenType == css.CommaToken
	}
	d.Value = b.String()
	if d.Property == "" || d.Value == "" {
		return d, false
	}
	return d, true
}
