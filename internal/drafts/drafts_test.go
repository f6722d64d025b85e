package drafts

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "drafts.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return store
}

func TestSaveGetUpdateDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	draft, err := store.Save(ctx, Draft{Title: "Monday", Content: "# Monday\n"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if draft.ID == 0 {
		t.Fatal("insert did not assign an id")
	}

	draft.Content = "# Monday\n\nwent hiking\n"
	if _, err := store.Save(ctx, draft); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, draft.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != draft.Content || got.Title != "Monday" {
		t.Fatalf("got %+v", got)
	}

	if err := store.Delete(ctx, draft.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, draft.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted: %v, want ErrNotFound", err)
	}
}

func TestUpdateMissingDraft(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Save(context.Background(), Draft{ID: 999, Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("save missing: %v, want ErrNotFound", err)
	}
}

func TestListOrdersByUpdate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, Draft{Title: "first"})
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	if _, err := store.Save(ctx, Draft{Title: "second"}); err != nil {
		t.Fatalf("save second: %v", err)
	}
	first.Content = "touched"
	if _, err := store.Save(ctx, first); err != nil {
		t.Fatalf("touch first: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("list has %d drafts, want 2", len(list))
	}
	// Nanosecond timestamps keep update recency decisive even when the
	// writes land in the same second.
	if list[0].Title != "first" || list[0].Content != "touched" {
		t.Fatalf("touched draft not first: %+v", list)
	}
	if !list[0].UpdatedAt.After(list[1].UpdatedAt) {
		t.Fatalf("updated_at not strictly ordered: %v vs %v", list[0].UpdatedAt, list[1].UpdatedAt)
	}
}

func TestUploadLog(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := UploadRecord{
		Filename:     "1690000001-ab12-a.jpg",
		OriginalName: "a.jpg",
		Size:         1234,
		UploadedAt:   time.Unix(1_690_000_100, 0),
	}
	if err := store.RecordUpload(ctx, rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Same filename again: overwrite, not duplicate.
	rec.Size = 999
	if err := store.RecordUpload(ctx, rec); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	uploads, err := store.Uploads(ctx, 10)
	if err != nil {
		t.Fatalf("uploads: %v", err)
	}
	if len(uploads) != 1 {
		t.Fatalf("uploads = %d rows, want 1", len(uploads))
	}
	if uploads[0].Size != 999 || uploads[0].OriginalName != "a.jpg" {
		t.Fatalf("got %+v", uploads[0])
	}
}

func TestRecordUploadRequiresFilename(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordUpload(context.Background(), UploadRecord{}); err == nil {
		t.Fatal("expected error for empty filename")
	}
}
