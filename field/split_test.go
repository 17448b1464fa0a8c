package field

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"annmerge/annotation"
	"annmerge/common"
	"annmerge/config"
	"annmerge/render"
)

func newRenderer(t *testing.T) *render.Renderer {
	t.Helper()
	return render.New(&config.AppearanceConfig{
		DividerText:     "*",
		SortKey:         common.SortKeyLocation,
		Colors:          map[string]string{"Green": "background-color: #c6ffc6"},
		ShowLocation:    true,
		TimestampFormat: "2006-01-02",
		Legacy:          common.LegacyPolicyConcatenate,
	}, zaptest.NewLogger(t))
}

func mustRender(t *testing.T, r *render.Renderer, bookID int64, list ...annotation.Annotation) string {
	t.Helper()
	out, err := r.Render(bookID, list)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestSplitNoContainer(t *testing.T) {
	for _, raw := range []string{
		"",
		"plain text",
		"<P CLASS=x>Unclosed <b>bold",
		`<div class="other">x</div>`,
		`<script>var s = '<div class="user_annotations"></div>'</script>`,
	} {
		res := Split(raw)
		if res.Residual != raw {
			t.Errorf("Split(%q).Residual = %q", raw, res.Residual)
		}
		if res.Subtree != nil || res.Opaque {
			t.Errorf("Split(%q) found container", raw)
		}
		if Contains(raw) {
			t.Errorf("Contains(%q) = true", raw)
		}
	}
}

func TestSplitRoundTrip(t *testing.T) {
	r := newRenderer(t)
	want := []annotation.Annotation{
		{
			AnnotationID: "a-1", HighlightText: "Hello & <goodbye>", NoteText: "first line\nsecond line",
			HighlightColor: common.HighlightColorGreen, Location: "Chapter 1", LocationSort: "0010",
			EpubCFI: "epubcfi(/6/4!/4/2)", Genre: "Fiction", Reader: "Marvin", LastModification: 1000.5,
		},
		{HighlightText: "Plain", HighlightColor: common.HighlightColorGreen, LastModification: 2000},
	}
	for i := range want {
		want[i].BookID = 9
	}

	res := Split(mustRender(t, r, 9, want...))
	if res.Residual != "" {
		t.Errorf("Residual = %q, want empty", res.Residual)
	}
	if !res.Subtree.Versioned() {
		t.Error("rendered container is not versioned")
	}
	got := res.Subtree.Annotations(9)
	if len(got) != len(want) {
		t.Fatalf("Annotations() = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("annotation %d:\n got %+v\nwant %+v", i, got[i], want[i])
		}
		if got[i].Fingerprint() != want[i].Fingerprint() {
			t.Errorf("annotation %d fingerprint changed", i)
		}
	}
	if legacy := res.Subtree.Legacy(); len(legacy) != 0 {
		t.Errorf("Legacy() = %d nodes, want none", len(legacy))
	}
}

func TestSplitResidual(t *testing.T) {
	r := newRenderer(t)
	container := mustRender(t, r, 1, annotation.Annotation{HighlightText: "x"})
	divider := r.Divider()

	t.Run("divider stripped with container", func(t *testing.T) {
		raw := "<P>User   text</p>\n" + divider + "\n  " + container + "<p>tail"
		res := Split(raw)
		if want := "<P>User   text</p>\n<p>tail"; res.Residual != want {
			t.Errorf("Residual = %q, want %q", res.Residual, want)
		}
		if res.Subtree.Len() != 1 {
			t.Errorf("Len() = %d", res.Subtree.Len())
		}
	})

	t.Run("divider kept when not adjacent", func(t *testing.T) {
		raw := "<p>a</p>" + divider + "<p>b</p>" + container
		res := Split(raw)
		if want := "<p>a</p>" + divider + "<p>b</p>"; res.Residual != want {
			t.Errorf("Residual = %q, want %q", res.Residual, want)
		}
	})

	t.Run("divider alone kept", func(t *testing.T) {
		raw := "<p>a</p>" + divider
		if res := Split(raw); res.Residual != raw || res.Subtree != nil {
			t.Errorf("Split() = %+v", res)
		}
	})

	t.Run("nested container", func(t *testing.T) {
		raw := `<div class="wrap">` + container + `</div>`
		res := Split(raw)
		if res.Residual != `<div class="wrap"></div>` || res.Subtree.Len() != 1 {
			t.Errorf("Split() = %+v", res)
		}
	})

	t.Run("multiple containers", func(t *testing.T) {
		second := mustRender(t, r, 1, annotation.Annotation{HighlightText: "y"})
		raw := "text" + divider + container + divider + second
		res := Split(raw)
		if res.Residual != "text" {
			t.Errorf("Residual = %q", res.Residual)
		}
		if got := res.Subtree.Annotations(1); len(got) != 2 || got[0].HighlightText != "x" || got[1].HighlightText != "y" {
			t.Errorf("Annotations() = %+v", got)
		}
	})
}

func TestSplitOpaque(t *testing.T) {
	t.Run("unterminated container", func(t *testing.T) {
		raw := `<p>x</p><div class="user_annotations"><div class="annotation"><p>broken`
		res := Split(raw)
		if res.Residual != raw || res.Subtree != nil || !res.Opaque {
			t.Errorf("Split() = %+v", res)
		}
	})

	t.Run("complete container after unterminated one", func(t *testing.T) {
		r := newRenderer(t)
		broken := `<div class="user_annotations"><p>broken`
		raw := broken + r.Divider() + mustRender(t, r, 1, annotation.Annotation{HighlightText: "ok"})
		res := Split(raw)
		if !res.Opaque || res.Residual != broken || res.Subtree.Len() != 1 {
			t.Errorf("Split() = %+v", res)
		}
	})
}

func TestLegacyContainer(t *testing.T) {
	raw := `<div class="user_annotations">
  <p class="highlight">old one</p>
  <p>old two</p>
</div>`
	res := Split(raw)
	if res.Subtree.Versioned() {
		t.Error("legacy container reported as versioned")
	}
	if got := res.Subtree.Annotations(1); len(got) != 0 {
		t.Errorf("Annotations() = %+v", got)
	}
	legacy := res.Subtree.Legacy()
	if len(legacy) != 2 {
		t.Fatalf("Legacy() = %d nodes, want 2", len(legacy))
	}
	var b strings.Builder
	for _, n := range legacy {
		html.Render(&b, n)
	}
	if want := `<p class="highlight">old one</p><p>old two</p>`; b.String() != want {
		t.Errorf("Legacy() = %q, want %q", b.String(), want)
	}
}

func TestLegacyInsideVersioned(t *testing.T) {
	r := newRenderer(t)
	old := Split(`<div class="user_annotations"><p>old</p></div>`)
	out, err := r.Render(1, []annotation.Annotation{{HighlightText: "new"}}, old.Subtree.Legacy()...)
	if err != nil {
		t.Fatal(err)
	}
	res := Split(out)
	if got := res.Subtree.Annotations(1); len(got) != 1 || got[0].HighlightText != "new" {
		t.Errorf("Annotations() = %+v", got)
	}
	if legacy := res.Subtree.Legacy(); len(legacy) != 1 || legacy[0].Data != "p" {
		t.Errorf("Legacy() = %+v", legacy)
	}
}

func TestDescribe(t *testing.T) {
	t.Run("no container", func(t *testing.T) {
		got := Split("<p>mine</p>").Describe()
		want := "Residual: \"<p>mine</p>\"\nContainers: 0 (versioned: false)\n"
		if got != want {
			t.Errorf("Describe() = %q, want %q", got, want)
		}
	})

	t.Run("container", func(t *testing.T) {
		got := Split(`<p>mine</p><div class="user_annotations" data-annotations-version="2"><div class="annotation" data-fingerprint="f"><p class="note">n</p></div></div>`).Describe()
		for _, want := range []string{
			"Containers: 1 (versioned: true)\n",
			"  Container[0]\n",
			"    div class=\"user_annotations\" data-annotations-version=\"2\"\n",
			"          #text: \"n\"\n",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("Describe() misses %q:\n%s", want, got)
			}
		}
	})
}
