package editor

import "sync"

// Buffer holds the entry text while it is being edited. The text is a
// shared resource: the user keeps typing while upload reconciliation
// callbacks fire, so every mutation is expressed as a transformation of
// the value current at application time. Holding on to a snapshot and
// writing it back would silently discard concurrent edits.
type Buffer struct {
	mu   sync.Mutex
	text string
}

func NewBuffer(text string) *Buffer {
	return &Buffer{text: text}
}

func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Apply runs transform on the current text and installs the result.
// Transforms are serialized; last writer wins over the true latest
// state, never over a stale snapshot.
func (b *Buffer) Apply(transform func(string) string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = transform(b.text)
}

// SpliceAt inserts text at byte offset pos, clamped to the buffer
// bounds.
func (b *Buffer) SpliceAt(pos int, insert string) {
	b.Apply(func(text string) string {
		if pos < 0 {
			pos = 0
		}
		if pos > len(text) {
			pos = len(text)
		}
		return text[:pos] + insert + text[pos:]
	})
}
