package debug

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func TestTreeWriter_Line(t *testing.T) {
	tests := []struct {
		name   string
		depth  int
		format string
		args   []any
		want   string
	}{
		{name: "no depth", format: "test", want: "test\n"},
		{name: "depth 2", depth: 2, format: "double indent", want: "    double indent\n"},
		{name: "with formatting", depth: 1, format: "value: %d", args: []any{42}, want: "  value: 42\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Line(tt.depth, tt.format, tt.args...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Line() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_TextBlock(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		label string
		value string
		want  string
	}{
		{name: "empty value", label: "field", want: "field: \n"},
		{name: "depth 1 with value", depth: 1, label: "content", value: "test", want: "  content: \"test\"\n"},
		{name: "value with quotes", label: "quoted", value: `he said "hello"`, want: "quoted: \"he said \\\"hello\\\"\"\n"},
		{name: "value with newline", label: "multiline", value: "line1\nline2", want: "multiline: \"line1\\nline2\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.TextBlock(tt.depth, tt.label, tt.value)
			if got := tw.String(); got != tt.want {
				t.Errorf("TextBlock() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_Node(t *testing.T) {
	context := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := html.ParseFragment(strings.NewReader(
		`<div class="user_annotations" data-book-id="7">
  <div class="annotation"><p class="highlight">Fear is <b>the</b> mind-killer</p><!-- old --></div>
</div>`), context)
	if err != nil {
		t.Fatal(err)
	}

	tw := NewTreeWriter()
	tw.Line(0, "Container")
	for _, n := range nodes {
		tw.Node(1, n)
	}

	want := `Container
  div class="user_annotations" data-book-id="7"
    div class="annotation"
      p class="highlight"
        #text: "Fear is "
        b
          #text: "the"
        #text: " mind-killer"
      #comment: " old "
`
	if got := tw.String(); got != want {
		t.Errorf("Node():\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestTreeWriter_NodeDocument(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<p>x</p>`))
	if err != nil {
		t.Fatal(err)
	}
	tw := NewTreeWriter()
	tw.Node(0, doc)
	if !strings.HasPrefix(tw.String(), "html\n  head\n  body\n    p\n") {
		t.Errorf("Node() = %q", tw.String())
	}
}
