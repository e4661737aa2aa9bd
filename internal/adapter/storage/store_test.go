package storage

import (
	"context"
	"testing"

	"tg-chatdump/internal/domain"
	"tg-chatdump/internal/pkg/layout"
)

func newStores(t *testing.T) (*JSONStore, *SQLStore, *DualStore) {
	t.Helper()
	paths := layout.NewLayout(t.TempDir())
	docs := NewJSONStore(paths)
	rel := NewSQLStore(paths)
	dual := NewDualStore(docs, rel)
	t.Cleanup(func() {
		if err := dual.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return docs, rel, dual
}

func TestJSONStoreUpsertsMessageByID(t *testing.T) {
	docs, _, _ := newStores(t)
	ctx := context.Background()

	if err := docs.SaveMessage(ctx, &domain.Message{ID: 1, ChatID: 10, Text: "old"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := docs.SaveMessage(ctx, &domain.Message{ID: 1, ChatID: 10, Text: "new"}); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	ids, err := docs.AllMessageIDs(ctx, 10)
	if err != nil {
		t.Fatalf("AllMessageIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 id after upsert, got %d", len(ids))
	}
}

func TestSQLStoreUpsertsDownloadRecord(t *testing.T) {
	_, rel, _ := newStores(t)
	ctx := context.Background()

	rec := &domain.DownloadRecord{MessageID: 1, ChatID: 10, FileName: "photo_1", Status: domain.StatusPending}
	if err := rel.SaveDownloadRecord(ctx, rec); err != nil {
		t.Fatalf("save pending: %v", err)
	}
	rec.Status = domain.StatusCompleted
	rec.FilePath = "/tmp/photo_1"
	if err := rel.SaveDownloadRecord(ctx, rec); err != nil {
		t.Fatalf("save completed: %v", err)
	}

	status, ok, err := rel.DownloadRecordStatus(ctx, 10, 1, "photo_1")
	if err != nil {
		t.Fatalf("DownloadRecordStatus: %v", err)
	}
	if !ok || status != domain.StatusCompleted {
		t.Errorf("status = %q (found=%v), want completed", status, ok)
	}

	statuses, err := rel.AllDownloadStatuses(ctx, 10)
	if err != nil {
		t.Fatalf("AllDownloadStatuses: %v", err)
	}
	if len(statuses) != 1 || statuses[1] != domain.StatusCompleted {
		t.Errorf("statuses = %v, want one completed entry", statuses)
	}
}

func TestSQLStoreMissingRecordIsNotAnError(t *testing.T) {
	_, rel, _ := newStores(t)

	_, ok, err := rel.DownloadRecordStatus(context.Background(), 10, 99, "nope")
	if err != nil {
		t.Fatalf("DownloadRecordStatus: %v", err)
	}
	if ok {
		t.Errorf("expected record to be absent")
	}
}

func TestDualSaveMessageWritesBothBackends(t *testing.T) {
	docs, rel, dual := newStores(t)
	ctx := context.Background()

	if err := dual.SaveMessage(ctx, &domain.Message{ID: 7, ChatID: 10, Text: "hi"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	for name, store := range map[string]domain.ChatStore{"docs": docs, "rel": rel} {
		ok, err := store.MessageExists(ctx, 10, 7)
		if err != nil {
			t.Fatalf("%s MessageExists: %v", name, err)
		}
		if !ok {
			t.Errorf("%s missing message after dual write", name)
		}
	}
}

func TestDualMessageIDsAreIntersection(t *testing.T) {
	docs, rel, dual := newStores(t)
	ctx := context.Background()

	// Message 1 in both, 2 only in docs, 3 only in rel.
	if err := dual.SaveMessage(ctx, &domain.Message{ID: 1, ChatID: 10}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := docs.SaveMessage(ctx, &domain.Message{ID: 2, ChatID: 10}); err != nil {
		t.Fatalf("save docs-only: %v", err)
	}
	if err := rel.SaveMessage(ctx, &domain.Message{ID: 3, ChatID: 10}); err != nil {
		t.Fatalf("save rel-only: %v", err)
	}

	ids, err := dual.AllMessageIDs(ctx, 10)
	if err != nil {
		t.Fatalf("AllMessageIDs: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("ids = %v, want only the agreed message", ids)
	}
	if _, ok := ids[1]; !ok {
		t.Errorf("ids = %v, want message 1", ids)
	}
}

func TestDualSingleStoreRecordReadsPending(t *testing.T) {
	docs, _, dual := newStores(t)
	ctx := context.Background()

	err := docs.SaveDownloadRecord(ctx, &domain.DownloadRecord{
		MessageID: 1, ChatID: 10, FileName: "photo_1", Status: domain.StatusCompleted,
	})
	if err != nil {
		t.Fatalf("save docs-only record: %v", err)
	}

	status, ok, err := dual.DownloadRecordStatus(ctx, 10, 1, "photo_1")
	if err != nil {
		t.Fatalf("DownloadRecordStatus: %v", err)
	}
	if !ok || status != domain.StatusPending {
		t.Errorf("status = %q (found=%v), want pending downgrade", status, ok)
	}

	statuses, err := dual.AllDownloadStatuses(ctx, 10)
	if err != nil {
		t.Fatalf("AllDownloadStatuses: %v", err)
	}
	if statuses[1] != domain.StatusPending {
		t.Errorf("bulk status = %q, want pending downgrade", statuses[1])
	}
}

func TestDualDisagreeingStatusesTakeWorst(t *testing.T) {
	docs, rel, dual := newStores(t)
	ctx := context.Background()

	rec := domain.DownloadRecord{MessageID: 1, ChatID: 10, FileName: "photo_1"}
	rec.Status = domain.StatusCompleted
	if err := docs.SaveDownloadRecord(ctx, &rec); err != nil {
		t.Fatalf("save docs record: %v", err)
	}
	rec.Status = domain.StatusFailed
	if err := rel.SaveDownloadRecord(ctx, &rec); err != nil {
		t.Fatalf("save rel record: %v", err)
	}

	status, ok, err := dual.DownloadRecordStatus(ctx, 10, 1, "photo_1")
	if err != nil {
		t.Fatalf("DownloadRecordStatus: %v", err)
	}
	if !ok || status != domain.StatusFailed {
		t.Errorf("status = %q, want failed", status)
	}
}

func TestCommentsSortedByID(t *testing.T) {
	_, _, dual := newStores(t)
	ctx := context.Background()

	for _, id := range []int{103, 101, 102} {
		err := dual.SaveComment(ctx, &domain.Comment{ID: id, ChatID: 10, ParentID: 5, Text: "c"})
		if err != nil {
			t.Fatalf("save comment %d: %v", id, err)
		}
	}

	comments, err := dual.CommentsFor(ctx, 10, 5)
	if err != nil {
		t.Fatalf("CommentsFor: %v", err)
	}
	if len(comments) != 3 {
		t.Fatalf("comments = %d, want 3", len(comments))
	}
	for i, want := range []int{101, 102, 103} {
		if comments[i].ID != want {
			t.Errorf("comments[%d].ID = %d, want %d", i, comments[i].ID, want)
		}
	}
}

func TestChatMetadataOverwritten(t *testing.T) {
	docs, _, dual := newStores(t)
	ctx := context.Background()

	chat := &domain.Chat{ID: 10, Title: "Before", Kind: domain.ChatChannel}
	if err := dual.SaveChat(ctx, chat); err != nil {
		t.Fatalf("save: %v", err)
	}
	chat.Title = "After"
	chat.LastMessageID = 42
	if err := dual.SaveChat(ctx, chat); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	var stored domain.Chat
	if err := readDocument(docs.paths.MetadataFile(10), &stored); err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	if stored.Title != "After" || stored.LastMessageID != 42 {
		t.Errorf("metadata not overwritten: %+v", stored)
	}
}
