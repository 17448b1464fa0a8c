package render

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"annmerge/annotation"
	"annmerge/common"
	"annmerge/config"
)

func testAppearance() *config.AppearanceConfig {
	return &config.AppearanceConfig{
		DividerText:     "&middot; &bull; &middot;",
		SortKey:         common.SortKeyLocation,
		Colors:          map[string]string{"Yellow": "background-color:#ffffb0", "Green": "background-color: #c6ffc6"},
		ContainerStyle:  "margin:0.5em 0",
		HighlightStyle:  "margin: 0",
		NoteStyle:       "font-style:italic",
		ShowLocation:    true,
		TimestampFormat: "2006-01-02",
		Legacy:          common.LegacyPolicyConcatenate,
	}
}

func TestRender(t *testing.T) {
	r := New(testAppearance(), zaptest.NewLogger(t))
	list := []annotation.Annotation{
		{HighlightText: "Hello", Location: "10", LocationSort: "0010", LastModification: 1000, HighlightColor: common.HighlightColorYellow},
		{NoteText: "just a note", LastModification: 2000},
	}

	out, err := r.Render(1, list)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	for _, want := range []string{
		`<div class="user_annotations" data-annotations-version="2" data-book-id="1" style="margin: 0.5em 0">`,
		`data-color="Yellow"`,
		`data-location-sort="0010"`,
		`data-timestamp="1000"`,
		`<p class="highlight" style="background-color: #ffffb0; margin: 0">Hello</p>`,
		`<p class="note" style="font-style: italic">just a note</p>`,
		`<p class="location">10 • 1970-01-01</p>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output misses %q\n%s", want, out)
		}
	}
	if n := strings.Count(out, `class="annotation"`); n != 2 {
		t.Errorf("rendered %d annotations, want 2", n)
	}

	t.Run("deterministic", func(t *testing.T) {
		again, _ := r.Render(1, list)
		if again != out {
			t.Error("Render() output differs between calls")
		}
	})

	t.Run("input untouched", func(t *testing.T) {
		if list[0].BookID != 0 {
			t.Error("Render() modified caller annotations")
		}
	})
}

func TestRenderEscaping(t *testing.T) {
	r := New(testAppearance(), zaptest.NewLogger(t))
	out, err := r.Render(2, []annotation.Annotation{{HighlightText: `</div><div class="user_annotations">&x`, Location: `"quoted"`}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "<div") != 2 || strings.Count(out, "</div>") != 2 {
		t.Errorf("user text broke container structure:\n%s", out)
	}
	if !strings.Contains(out, `&lt;/div&gt;&lt;div class=&#34;user_annotations&#34;&gt;&amp;x`) {
		t.Errorf("text not escaped:\n%s", out)
	}
}

func TestRenderSkipsEmpty(t *testing.T) {
	r := New(testAppearance(), zaptest.NewLogger(t))
	out, _ := r.Render(3, []annotation.Annotation{{HighlightText: "   "}})
	if strings.Contains(out, `class="annotation"`) {
		t.Errorf("empty annotation rendered:\n%s", out)
	}
}

func TestRenderLineBreaks(t *testing.T) {
	r := New(testAppearance(), zaptest.NewLogger(t))
	out, _ := r.Render(4, []annotation.Annotation{{NoteText: "one\ntwo"}})
	if !strings.Contains(out, "one<br/>two") {
		t.Errorf("line break not preserved:\n%s", out)
	}
}

func TestRenderLegacy(t *testing.T) {
	r := New(testAppearance(), zaptest.NewLogger(t))
	nodes, err := html.ParseFragment(strings.NewReader("<p>old <b>stuff</b></p>"), &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"})
	if err != nil {
		t.Fatal(err)
	}
	out, _ := r.Render(5, []annotation.Annotation{{HighlightText: "new"}}, nodes...)
	legacy := strings.Index(out, `<div class="legacy_annotations"><p>old <b>stuff</b></p></div>`)
	fresh := strings.Index(out, "new")
	if legacy < 0 || fresh < legacy {
		t.Errorf("legacy group must precede annotations:\n%s", out)
	}
}

func TestForField(t *testing.T) {
	r := New(testAppearance(), zaptest.NewLogger(t))
	list := []annotation.Annotation{{HighlightText: "x"}}

	comments, _ := r.ForField(config.CommentsField).Render(1, list)
	custom, _ := r.ForField("#notes").Render(1, list)
	if !strings.Contains(comments, `<p class="highlight"`) {
		t.Errorf("Comments field should use paragraphs:\n%s", comments)
	}
	if !strings.Contains(custom, `<div class="highlight"`) {
		t.Errorf("custom field should use divisions:\n%s", custom)
	}
	if !strings.HasPrefix(custom, `<div class="user_annotations"`) {
		t.Errorf("custom field container marker changed:\n%s", custom)
	}
}

func TestDivider(t *testing.T) {
	r := New(testAppearance(), zaptest.NewLogger(t))
	want := `<div class="comments_divider"><p style="text-align: center; margin: 1em 0 1em 0">· • ·</p></div>`
	if got := r.Divider(); got != want {
		t.Errorf("Divider() = %q, want %q", got, want)
	}
}
