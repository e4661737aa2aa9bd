package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"tg-chatdump/internal/adapter/storage"
	"tg-chatdump/internal/domain"
	"tg-chatdump/internal/pkg/layout"
)

// fakeRemote serves a fixed history, newest first, and materializes fake
// artifacts on transfer.
type fakeRemote struct {
	entities map[string]*domain.Chat
	history  []*domain.Message
	replies  map[int][]*domain.Message

	resolveCalls []string
	transferred  []int
}

func (f *fakeRemote) ResolveEntity(_ context.Context, ref string) (*domain.Chat, error) {
	f.resolveCalls = append(f.resolveCalls, ref)
	if c, ok := f.entities[ref]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, fmt.Errorf("unknown entity %q", ref)
}

func (f *fakeRemote) ListDialogs(context.Context) ([]domain.Dialog, error) { return nil, nil }

func (f *fakeRemote) ListMessages(_ context.Context, _ int64, limit, offsetID int) ([]*domain.Message, error) {
	out := make([]*domain.Message, 0, limit)
	for _, m := range f.history {
		if offsetID != 0 && m.ID >= offsetID {
			continue
		}
		cp := *m
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRemote) ListReplies(_ context.Context, _ int64, parentID int) ([]*domain.Message, error) {
	out := make([]*domain.Message, 0, len(f.replies[parentID]))
	for _, m := range f.replies[parentID] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeRemote) TransferMedia(_ context.Context, _ int64, msg *domain.Message, destDir string, _ domain.ProgressFunc) (string, error) {
	f.transferred = append(f.transferred, msg.ID)
	path := filepath.Join(destDir, msg.RecordName())
	if err := os.WriteFile(path, []byte("blob"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeRemote) Close() error { return nil }

func newTestSyncer(t *testing.T, remote domain.RemoteSource) (*Syncer, domain.ChatStore, *layout.Layout) {
	t.Helper()
	paths := layout.NewLayout(t.TempDir())
	store := storage.NewDualStore(storage.NewJSONStore(paths), storage.NewSQLStore(paths))
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return NewSyncer(remote, store, paths, zerolog.Nop()), store, paths
}

func testChannel(id int64) map[string]*domain.Chat {
	return map[string]*domain.Chat{
		fmt.Sprintf("-100%d", id): {ID: id, Title: "Test Channel", Kind: domain.ChatChannel},
	}
}

func TestDownloadChatFirstPass(t *testing.T) {
	remote := &fakeRemote{
		entities: testChannel(1234),
		history: []*domain.Message{
			{ID: 5, Text: "latest"},
			{ID: 4, MediaKind: domain.MediaPhoto},
			{ID: 3, MediaKind: domain.MediaDocument, FileName: "report.pdf"},
			{ID: 2, Text: "discussed", HasDiscussion: true},
			{ID: 1, Text: "first"},
		},
		replies: map[int][]*domain.Message{
			2: {{ID: 100, Text: "reply a"}, {ID: 101, Text: "reply b"}},
		},
	}
	syncer, store, paths := newTestSyncer(t, remote)

	res, err := syncer.DownloadChat(context.Background(), "1234", Options{})
	if err != nil {
		t.Fatalf("DownloadChat: %v", err)
	}

	if res.MessagesDownloaded != 5 {
		t.Errorf("downloaded = %d, want 5", res.MessagesDownloaded)
	}
	if res.MediaDownloaded != 2 {
		t.Errorf("media = %d, want 2", res.MediaDownloaded)
	}
	if res.CommentsFetched != 2 {
		t.Errorf("comments = %d, want 2", res.CommentsFetched)
	}
	if res.Errors != 0 {
		t.Errorf("errors = %d, want 0", res.Errors)
	}
	if res.ChatID != 1234 {
		t.Errorf("chat id = %d, want 1234", res.ChatID)
	}

	ids, err := store.AllMessageIDs(context.Background(), 1234)
	if err != nil {
		t.Fatalf("AllMessageIDs: %v", err)
	}
	if len(ids) != 5 {
		t.Errorf("stored ids = %d, want 5", len(ids))
	}

	photo := filepath.Join(paths.MediaDir(1234, 4, 0), "photo_4")
	if _, err := os.Stat(photo); err != nil {
		t.Errorf("photo artifact missing: %v", err)
	}
	doc := filepath.Join(paths.MediaDir(1234, 3, 0), "report.pdf")
	if _, err := os.Stat(doc); err != nil {
		t.Errorf("document artifact missing: %v", err)
	}
	if _, err := os.Stat(paths.MetadataFile(1234)); err != nil {
		t.Errorf("metadata document missing: %v", err)
	}
	if _, err := os.Stat(paths.DatabaseFile(1234)); err != nil {
		t.Errorf("sqlite file missing: %v", err)
	}

	comments, err := store.CommentsFor(context.Background(), 1234, 2)
	if err != nil {
		t.Fatalf("CommentsFor: %v", err)
	}
	if len(comments) != 2 || comments[0].ID != 100 {
		t.Errorf("unexpected comments: %+v", comments)
	}
}

func TestSecondRunSkipsEverything(t *testing.T) {
	remote := &fakeRemote{
		entities: testChannel(1234),
		history: []*domain.Message{
			{ID: 3, MediaKind: domain.MediaPhoto},
			{ID: 2, Text: "b"},
			{ID: 1, Text: "a"},
		},
	}
	syncer, _, _ := newTestSyncer(t, remote)

	if _, err := syncer.DownloadChat(context.Background(), "1234", Options{}); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	transfers := len(remote.transferred)

	res, err := syncer.DownloadChat(context.Background(), "1234", Options{})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.MessagesDownloaded != 0 {
		t.Errorf("second pass downloaded = %d, want 0", res.MessagesDownloaded)
	}
	if res.MessagesSkipped != 3 {
		t.Errorf("second pass skipped = %d, want 3", res.MessagesSkipped)
	}
	if len(remote.transferred) != transfers {
		t.Errorf("second pass re-transferred media: %v", remote.transferred)
	}
}

func TestLimitCountsUnitsNotMessages(t *testing.T) {
	history := []*domain.Message{
		{ID: 12, Text: "l"},
		{ID: 11, Text: "k"},
		{ID: 10, Text: "j"},
		{ID: 9, GroupID: 77, MediaKind: domain.MediaPhoto},
		{ID: 8, GroupID: 77, MediaKind: domain.MediaPhoto},
		{ID: 7, GroupID: 77, MediaKind: domain.MediaPhoto},
		{ID: 6, Text: "f"},
		{ID: 5, Text: "e"},
	}
	remote := &fakeRemote{entities: testChannel(1234), history: history}
	syncer, _, _ := newTestSyncer(t, remote)

	res, err := syncer.DownloadChat(context.Background(), "1234", Options{Limit: 5})
	if err != nil {
		t.Fatalf("DownloadChat: %v", err)
	}

	// Five units: three singletons, the whole album, one more singleton.
	if res.MessagesDownloaded != 7 {
		t.Errorf("downloaded = %d, want 7", res.MessagesDownloaded)
	}
	if res.MediaDownloaded != 3 {
		t.Errorf("media = %d, want 3 (full album)", res.MediaDownloaded)
	}
}

func TestSkipMediaStoresRecordsOnly(t *testing.T) {
	remote := &fakeRemote{
		entities: testChannel(1234),
		history: []*domain.Message{
			{ID: 2, MediaKind: domain.MediaPhoto},
			{ID: 1, Text: "a"},
		},
	}
	syncer, store, _ := newTestSyncer(t, remote)

	res, err := syncer.DownloadChat(context.Background(), "1234", Options{SkipMedia: true})
	if err != nil {
		t.Fatalf("DownloadChat: %v", err)
	}
	if res.MessagesDownloaded != 2 {
		t.Errorf("downloaded = %d, want 2", res.MessagesDownloaded)
	}
	if res.MediaDownloaded != 0 || len(remote.transferred) != 0 {
		t.Errorf("media transferred despite skip-media: %v", remote.transferred)
	}

	ids, err := store.AllMessageIDs(context.Background(), 1234)
	if err != nil {
		t.Fatalf("AllMessageIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("stored ids = %d, want 2", len(ids))
	}
}

func TestStaleRecordForcesWholeUnitRedownload(t *testing.T) {
	remote := &fakeRemote{
		entities: testChannel(1234),
		history: []*domain.Message{
			{ID: 5, GroupID: 77, MediaKind: domain.MediaPhoto},
			{ID: 4, GroupID: 77, MediaKind: domain.MediaPhoto},
			{ID: 3, GroupID: 77, MediaKind: domain.MediaPhoto},
			{ID: 2, Text: "b"},
			{ID: 1, Text: "a"},
		},
	}
	syncer, store, _ := newTestSyncer(t, remote)

	if _, err := syncer.DownloadChat(context.Background(), "1234", Options{}); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	// Simulate a crash mid-transfer on one album member: its record reads
	// pending, the bytes cannot be trusted.
	err := store.SaveDownloadRecord(context.Background(), &domain.DownloadRecord{
		MessageID: 4,
		ChatID:    1234,
		FileName:  "photo_4",
		MediaKind: domain.MediaPhoto,
		Status:    domain.StatusPending,
	})
	if err != nil {
		t.Fatalf("downgrade record: %v", err)
	}

	res, err := syncer.DownloadChat(context.Background(), "1234", Options{})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if res.MessagesDownloaded != 3 {
		t.Errorf("downloaded = %d, want 3 (whole album)", res.MessagesDownloaded)
	}
	if res.MessagesSkipped != 2 {
		t.Errorf("skipped = %d, want 2", res.MessagesSkipped)
	}
	if res.MediaDownloaded != 3 {
		t.Errorf("media = %d, want 3", res.MediaDownloaded)
	}
}

func TestDownloadAllContinuesPastFailures(t *testing.T) {
	remote := &fakeRemote{
		entities: testChannel(1234),
		history:  []*domain.Message{{ID: 1, Text: "a"}},
	}
	syncer, _, _ := newTestSyncer(t, remote)

	results := syncer.DownloadAll(context.Background(), []string{"@nosuch", "1234"}, Options{})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error == "" {
		t.Errorf("expected failure recorded for unresolvable chat")
	}
	if results[1].Error != "" || results[1].MessagesDownloaded != 1 {
		t.Errorf("second chat should have succeeded: %+v", results[1])
	}
}

func TestDownloadChatUnresolvable(t *testing.T) {
	remote := &fakeRemote{entities: map[string]*domain.Chat{}}
	syncer, _, _ := newTestSyncer(t, remote)

	_, err := syncer.DownloadChat(context.Background(), "42", Options{})
	if !errors.Is(err, domain.ErrUnresolvableChat) {
		t.Fatalf("expected ErrUnresolvableChat, got %v", err)
	}
}
