package preview

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// TerminalRender renders entry markdown for the terminal. Image tokens
// are resolved first so the reader sees signed URLs (or the uploading
// filler) instead of bare server filenames.
func TerminalRender(markdown string, resolve ResolveFunc, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("terminal renderer: %w", err)
	}
	out, err := renderer.Render(RewriteImageURLs(markdown, resolve))
	if err != nil {
		return "", fmt.Errorf("render terminal markdown: %w", err)
	}
	return out, nil
}
