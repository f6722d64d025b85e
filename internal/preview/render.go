package preview

import (
	"bytes"
	"fmt"
	"regexp"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// ResolveFunc maps one image token from entry markdown to a renderable
// URL. The zero behavior (nil func) leaves destinations untouched.
type ResolveFunc func(token string) string

// Renderer converts entry markdown to HTML with image destinations
// resolved to signed URLs and fenced code blocks highlighted.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer(resolve ResolveFunc) *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithASTTransformers(
					util.Prioritized(&imageResolver{resolve: resolve}, 100),
				),
			),
			goldmark.WithRendererOptions(
				renderer.WithNodeRenderers(
					util.Prioritized(&codeHighlighter{}, 100),
				),
			),
		),
	}
}

func (r *Renderer) HTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// imageResolver rewrites image destinations through the resolver while
// the document is still an AST, so the HTML renderer emits final URLs.
type imageResolver struct {
	resolve ResolveFunc
}

func (t *imageResolver) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	if t.resolve == nil {
		return
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			img.Destination = []byte(t.resolve(string(img.Destination)))
		}
		return ast.WalkContinue, nil
	})
}

// codeHighlighter renders fenced code blocks through chroma instead of
// goldmark's plain <pre> output.
type codeHighlighter struct{}

func (h *codeHighlighter) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, h.renderFencedCodeBlock)
}

func (h *codeHighlighter) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	block := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		code.Write(segment.Value(source))
	}

	language := string(block.Language(source))
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := lexer.Tokenise(nil, code.String())
	if err != nil {
		return ast.WalkStop, err
	}
	formatter := chromahtml.New(chromahtml.WithClasses(false))
	if err := formatter.Format(w, styles.Get("github"), iterator); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}

var inlineImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)

// RewriteImageURLs textually rewrites image destinations for renderers
// that take markdown rather than an AST (the terminal renderer).
func RewriteImageURLs(markdown string, resolve ResolveFunc) string {
	if resolve == nil {
		return markdown
	}
	return inlineImageRe.ReplaceAllStringFunc(markdown, func(match string) string {
		parts := inlineImageRe.FindStringSubmatch(match)
		return fmt.Sprintf("![%s](%s)", parts[1], resolve(parts[2]))
	})
}
