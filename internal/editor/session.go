package editor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"lifelog/internal/api"
	"lifelog/internal/media"
)

// Uploader transfers one normalized file to the remote store.
type Uploader interface {
	UploadImage(ctx context.Context, filename string, data []byte) (api.UploadResult, error)
}

// TaskState tracks one file through its upload lifecycle.
type TaskState int

const (
	TaskPending TaskState = iota
	TaskUploading
	TaskSucceeded
	TaskFailed
	// TaskReconciled is terminal: the placeholder is gone from the
	// buffer, replaced or removed. No automatic retry.
	TaskReconciled
)

// UploadTask is one file of an attach batch.
type UploadTask struct {
	BatchID      int64
	Index        int
	OriginalName string
	Token        string

	mu    sync.Mutex
	state TaskState
}

func (t *UploadTask) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *UploadTask) setState(state TaskState) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

// Batch is the set of files attached in one user action. Files of a
// batch complete in any order; interleaved batches cannot touch each
// other's placeholders because every token carries the batch ID.
type Batch struct {
	ID    int64
	Tasks []*UploadTask

	done chan struct{}

	// mu orders reconciliations within the batch so the final one
	// knows whether any sibling reference survived.
	mu        sync.Mutex
	pending   int
	succeeded int
}

// Wait blocks until every task of the batch is reconciled.
func (b *Batch) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session coordinates the media pipeline around one buffer: it splices
// placeholders in synchronously, runs normalize and upload in the
// background, reconciles each file independently against the latest
// buffer, and keeps the signed-URL cache current.
type Session struct {
	buf      *Buffer
	cache    *media.Cache
	uploader Uploader
	opts     media.NormalizeOptions

	onUpload func(result api.UploadResult, originalName string, size int64)

	mu          sync.Mutex
	lastBatchID int64
}

func NewSession(buf *Buffer, cache *media.Cache, uploader Uploader) *Session {
	return &Session{buf: buf, cache: cache, uploader: uploader}
}

func (s *Session) Buffer() *Buffer     { return s.buf }
func (s *Session) Cache() *media.Cache { return s.cache }

func (s *Session) SetNormalizeOptions(opts media.NormalizeOptions) {
	s.opts = opts
}

// OnUpload registers a hook called after each successful upload, once
// the buffer has been reconciled. Used for the local upload log.
func (s *Session) OnUpload(fn func(result api.UploadResult, originalName string, size int64)) {
	s.onUpload = fn
}

// AttachImages starts the upload pipeline for the files selected in one
// user action. Placeholder lines appear in the buffer before it
// returns; everything else happens in the background. The returned
// batch can be waited on.
//
// In-flight uploads are never cancelled by later buffer edits; a
// placeholder deleted by hand simply makes the eventual reconciliation
// a no-op.
func (s *Session) AttachImages(ctx context.Context, pos int, files []media.File) *Batch {
	batch := &Batch{ID: s.nextBatchID(), done: make(chan struct{}), pending: len(files)}
	if len(files) == 0 {
		close(batch.done)
		return batch
	}
	lines := make([]string, 0, len(files))
	for i, file := range files {
		task := &UploadTask{
			BatchID:      batch.ID,
			Index:        i,
			OriginalName: file.Name,
			Token:        media.PlaceholderToken(batch.ID, i),
		}
		batch.Tasks = append(batch.Tasks, task)
		lines = append(lines, media.PlaceholderLine(file.Name, batch.ID, i))
	}

	// Immediate feedback: the user sees the placeholders and keeps
	// typing around them while the uploads run.
	s.buf.SpliceAt(pos, "\n"+strings.Join(lines, "\n")+"\n")

	go s.runBatch(ctx, batch, files)
	return batch
}

func (s *Session) runBatch(ctx context.Context, batch *Batch, files []media.File) {
	defer close(batch.done)

	normalized, err := media.NormalizeBatch(ctx, files, s.opts)
	if err != nil {
		// One bad file blocks the whole batch before any upload
		// starts. Every placeholder comes back out.
		slog.Warn("image normalization failed, dropping batch", "batch", batch.ID, "err", err)
		for _, task := range batch.Tasks {
			task.setState(TaskFailed)
			s.reconcileFailure(batch, task)
			task.setState(TaskReconciled)
		}
		return
	}

	var wg sync.WaitGroup
	for i, task := range batch.Tasks {
		wg.Add(1)
		go func(task *UploadTask, file media.Normalized) {
			defer wg.Done()
			s.uploadOne(ctx, batch, task, file)
		}(task, normalized[i])
	}
	wg.Wait()
}

func (s *Session) uploadOne(ctx context.Context, batch *Batch, task *UploadTask, file media.Normalized) {
	task.setState(TaskUploading)
	result, err := s.uploader.UploadImage(ctx, file.NewName, file.Data)
	if err != nil {
		slog.Warn("media upload failed", "batch", task.BatchID, "file", task.OriginalName, "err", err)
		task.setState(TaskFailed)
		s.reconcileFailure(batch, task)
		task.setState(TaskReconciled)
		return
	}
	task.setState(TaskSucceeded)
	s.cache.PutFromURL(result.Filename, result.URL)
	s.reconcileSuccess(batch, task, result.Filename)
	task.setState(TaskReconciled)
	if s.onUpload != nil {
		s.onUpload(result, file.OriginalName, file.Size)
	}
}

func (s *Session) reconcileSuccess(batch *Batch, task *UploadTask, filename string) {
	batch.mu.Lock()
	defer batch.mu.Unlock()
	batch.pending--
	batch.succeeded++
	re := placeholderImageRe(task.Token, false, false)
	s.buf.Apply(func(text string) string {
		return re.ReplaceAllString(text, fmt.Sprintf("![image](%s)", filename))
	})
}

func (s *Session) reconcileFailure(batch *Batch, task *UploadTask) {
	batch.mu.Lock()
	defer batch.mu.Unlock()
	batch.pending--
	// Removing the last placeholder of a batch with no successes must
	// also take back the wrapper newline the splice introduced, or the
	// failed attach leaves the text permanently reflowed.
	absorbWrapper := batch.pending == 0 && batch.succeeded == 0
	re := placeholderImageRe(task.Token, true, absorbWrapper)
	s.buf.Apply(func(text string) string {
		return re.ReplaceAllString(text, "")
	})
}

// placeholderImageRe matches the full image syntax around one specific
// placeholder token. withNewline also swallows the trailing newline so
// a removed placeholder leaves no blank line behind; withLeading
// additionally swallows the newline before it.
func placeholderImageRe(token string, withNewline, withLeading bool) *regexp.Regexp {
	pattern := `!\[[^\]]*\]\(` + regexp.QuoteMeta(token) + `\)`
	if withNewline {
		pattern += `\n?`
	}
	if withLeading {
		pattern = `\n?` + pattern
	}
	return regexp.MustCompile(pattern)
}

// RefreshSignedURLs is the content-change pass: scan the buffer for
// filename references and refresh the missing or stale ones in one
// signing call. Errors are returned for logging only; a failed pass
// leaves the cache untouched and the next pass retries.
func (s *Session) RefreshSignedURLs(ctx context.Context) error {
	refs := media.Scan(s.buf.Text())
	if len(refs) == 0 {
		return nil
	}
	return s.cache.ResolveBatch(ctx, refs)
}

// Resolve maps one token from the buffer to a renderable URL.
func (s *Session) Resolve(token string) string {
	return media.Resolve(token, s.cache)
}

func (s *Session) nextBatchID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := time.Now().UnixMilli()
	if id <= s.lastBatchID {
		id = s.lastBatchID + 1
	}
	s.lastBatchID = id
	return id
}
