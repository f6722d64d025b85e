package preview

import (
	"strings"
	"testing"
)

func TestHTMLResolvesImageDestinations(t *testing.T) {
	resolve := func(token string) string {
		if token == "1690000001-ab12-a.jpg" {
			return "https://signed/a"
		}
		return token
	}
	r := NewRenderer(resolve)

	out, err := r.HTML("![image](1690000001-ab12-a.jpg)\n\n![ext](https://cdn.example.com/x.jpg)\n")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `src="https://signed/a"`) {
		t.Fatalf("signed url missing from output: %q", out)
	}
	if !strings.Contains(out, `src="https://cdn.example.com/x.jpg"`) {
		t.Fatalf("full url rewritten: %q", out)
	}
}

func TestHTMLNilResolver(t *testing.T) {
	r := NewRenderer(nil)
	out, err := r.HTML("![image](1690000001-ab12-a.jpg)")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "1690000001-ab12-a.jpg") {
		t.Fatalf("destination altered without resolver: %q", out)
	}
}

func TestHTMLHighlightsFencedCode(t *testing.T) {
	r := NewRenderer(nil)
	out, err := r.HTML("```go\npackage main\n```\n")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	// Chroma emits inline styles; goldmark's plain renderer would not.
	if !strings.Contains(out, "style=") {
		t.Fatalf("code block not highlighted: %q", out)
	}
}

func TestRewriteImageURLs(t *testing.T) {
	resolve := func(token string) string { return "X-" + token }
	in := "text ![a](one.jpg) and ![b](two.jpg) done"
	want := "text ![a](X-one.jpg) and ![b](X-two.jpg) done"
	if got := RewriteImageURLs(in, resolve); got != want {
		t.Fatalf("rewrite = %q, want %q", got, want)
	}
	if got := RewriteImageURLs(in, nil); got != in {
		t.Fatalf("nil resolver changed text: %q", got)
	}
}
