package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMarkupWithinLimit(t *testing.T) {
	in := "<p>hello</p>"
	got := SplitMarkup(in, 100)
	if len(got) != 1 || got[0] != in {
		t.Fatalf("expected single chunk, got %q", got)
	}
}

func TestSplitMarkupEndsOnTagBoundary(t *testing.T) {
	in := strings.Repeat("<div>item</div>", 20) // 15 bytes each
	got := SplitMarkup(in, 40)

	if strings.Join(got, "") != in {
		t.Fatal("concatenation does not reproduce input")
	}
	for i, c := range got {
		if len(c) > 40 {
			t.Errorf("chunk %d is %d bytes", i, len(c))
		}
		if i < len(got)-1 && !strings.HasSuffix(c, ">") {
			t.Errorf("chunk %d does not end at a tag: %q", i, c)
		}
	}
}

func TestSplitMarkupLargeDocument(t *testing.T) {
	// 120,000 characters with a 50,000 limit yields at least three chunks.
	in := strings.Repeat("<span>abcdefghijklmnopqrstuvwxyz0123456789</span>\n", 2400)
	if len(in) < 120000 {
		t.Fatalf("fixture too small: %d", len(in))
	}
	got := SplitMarkup(in, DefaultMaxSize)
	if len(got) < 3 {
		t.Fatalf("expected >= 3 chunks, got %d", len(got))
	}
	if strings.Join(got, "") != in {
		t.Fatal("concatenation does not reproduce input")
	}
	if Count(in, DefaultMaxSize) != len(got) {
		t.Errorf("Count = %d, want %d", Count(in, DefaultMaxSize), len(got))
	}
}

func TestSplitMarkupNoTagFallsBackToLimit(t *testing.T) {
	in := strings.Repeat("x", 250)
	got := SplitMarkup(in, 100)
	if len(got) != 3 || len(got[0]) != 100 || len(got[1]) != 100 || len(got[2]) != 50 {
		t.Fatalf("unexpected sizes: %d chunks", len(got))
	}
}

func TestSplitKeepsRunesIntact(t *testing.T) {
	in := strings.Repeat("åäö", 100) // 2 bytes per rune, no boundaries
	for _, c := range Split(in, 51) {
		if !utf8.ValidString(c) {
			t.Fatalf("chunk splits a rune: %q", c)
		}
	}
	if strings.Join(Split(in, 51), "") != in {
		t.Fatal("concatenation does not reproduce input")
	}
}

func TestSplitPrefersNewline(t *testing.T) {
	in := "line one\nline two\nline three\n"
	got := Split(in, 12)
	if got[0] != "line one\n" {
		t.Errorf("first chunk = %q", got[0])
	}
	if strings.Join(got, "") != in {
		t.Fatal("concatenation does not reproduce input")
	}
}

func TestSplitEmpty(t *testing.T) {
	got := Split("", 10)
	if len(got) != 1 || got[0] != "" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitMarkupIgnoresGreaterThanInAttribute(t *testing.T) {
	markup := `<p>x</p><a title="a > b">link</a><p>tail text here</p>`
	chunks := SplitMarkup(markup, 22)
	want := []string{`<p>x</p>`, `<a title="a > b">`, `link</a><p>`, `tail text here</p>`}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %q, want %q", len(chunks), chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
	if n := Count(markup, 22); n != len(want) {
		t.Errorf("Count = %d, want %d", n, len(want))
	}
}

func TestSplitMarkupIgnoresGreaterThanInComment(t *testing.T) {
	markup := `<div><!-- a > b --></div><span>more</span>`
	chunks := SplitMarkup(markup, 14)
	want := []string{`<div>`, `<!-- a > b -->`, `</div><span>`, `more</span>`}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks %q, want %q", len(chunks), chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, chunks[i], want[i])
		}
	}
}
