package media

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var scanParser = goldmark.New()

// Scan extracts the signable filename references from entry markdown:
// every image destination classified as KindFilename, deduplicated,
// in document order. Full URLs and placeholders are skipped. Stateless,
// shared by the editor session and the read-only viewer.
func Scan(markdown string) []string {
	src := []byte(markdown)
	doc := scanParser.Parser().Parse(text.NewReader(src))

	seen := map[string]struct{}{}
	var out []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		ref := Classify(string(img.Destination))
		if ref.Kind != KindFilename {
			return ast.WalkContinue, nil
		}
		if _, dup := seen[ref.Raw]; dup {
			return ast.WalkContinue, nil
		}
		seen[ref.Raw] = struct{}{}
		out = append(out, ref.Raw)
		return ast.WalkContinue, nil
	})
	return out
}
