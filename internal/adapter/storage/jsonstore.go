package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tg-chatdump/internal/domain"
	"tg-chatdump/internal/pkg/layout"
)

// JSONStore is the append-oriented document backend: one growing messages
// document per conversation, a metadata document overwritten on every pass,
// a downloads document, and one comments document per parent message.
type JSONStore struct {
	paths *layout.Layout
}

func NewJSONStore(paths *layout.Layout) *JSONStore {
	return &JSONStore{paths: paths}
}

func (s *JSONStore) SaveChat(_ context.Context, chat *domain.Chat) error {
	return writeDocument(s.paths.MetadataFile(chat.ID), chat)
}

// SaveMessage upserts by message id: the document is reloaded, the matching
// entry replaced in place (or appended), and the whole document rewritten.
// Last writer wins, no field merging.
func (s *JSONStore) SaveMessage(_ context.Context, msg *domain.Message) error {
	var msgs []domain.Message
	if err := readDocument(s.paths.MessagesFile(msg.ChatID), &msgs); err != nil {
		return err
	}

	replaced := false
	for i := range msgs {
		if msgs[i].ID == msg.ID {
			msgs[i] = *msg
			replaced = true
			break
		}
	}
	if !replaced {
		msgs = append(msgs, *msg)
	}

	return writeDocument(s.paths.MessagesFile(msg.ChatID), msgs)
}

func (s *JSONStore) MessageExists(_ context.Context, chatID int64, messageID int) (bool, error) {
	var msgs []domain.Message
	if err := readDocument(s.paths.MessagesFile(chatID), &msgs); err != nil {
		return false, err
	}
	for i := range msgs {
		if msgs[i].ID == messageID {
			return true, nil
		}
	}
	return false, nil
}

func (s *JSONStore) AllMessageIDs(_ context.Context, chatID int64) (map[int]struct{}, error) {
	var msgs []domain.Message
	if err := readDocument(s.paths.MessagesFile(chatID), &msgs); err != nil {
		return nil, err
	}
	ids := make(map[int]struct{}, len(msgs))
	for i := range msgs {
		ids[msgs[i].ID] = struct{}{}
	}
	return ids, nil
}

func (s *JSONStore) AllDownloadStatuses(_ context.Context, chatID int64) (map[int]domain.DownloadStatus, error) {
	var recs []domain.DownloadRecord
	if err := readDocument(s.paths.DownloadsFile(chatID), &recs); err != nil {
		return nil, err
	}
	statuses := make(map[int]domain.DownloadStatus, len(recs))
	for i := range recs {
		rec := &recs[i]
		if prev, ok := statuses[rec.MessageID]; ok {
			statuses[rec.MessageID] = worstStatus(prev, rec.Status)
		} else {
			statuses[rec.MessageID] = rec.Status
		}
	}
	return statuses, nil
}

func (s *JSONStore) SaveDownloadRecord(_ context.Context, rec *domain.DownloadRecord) error {
	var recs []domain.DownloadRecord
	if err := readDocument(s.paths.DownloadsFile(rec.ChatID), &recs); err != nil {
		return err
	}

	replaced := false
	for i := range recs {
		if recs[i].MessageID == rec.MessageID && recs[i].FileName == rec.FileName {
			recs[i] = *rec
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, *rec)
	}

	return writeDocument(s.paths.DownloadsFile(rec.ChatID), recs)
}

func (s *JSONStore) DownloadRecordStatus(_ context.Context, chatID int64, messageID int, fileName string) (domain.DownloadStatus, bool, error) {
	var recs []domain.DownloadRecord
	if err := readDocument(s.paths.DownloadsFile(chatID), &recs); err != nil {
		return "", false, err
	}
	for i := range recs {
		if recs[i].MessageID == messageID && recs[i].FileName == fileName {
			return recs[i].Status, true, nil
		}
	}
	return "", false, nil
}

func (s *JSONStore) SaveComment(_ context.Context, c *domain.Comment) error {
	path := s.paths.CommentsFile(c.ChatID, c.ParentID)

	var comments []domain.Comment
	if err := readDocument(path, &comments); err != nil {
		return err
	}

	replaced := false
	for i := range comments {
		if comments[i].ID == c.ID {
			comments[i] = *c
			replaced = true
			break
		}
	}
	if !replaced {
		comments = append(comments, *c)
	}

	return writeDocument(path, comments)
}

func (s *JSONStore) CommentsFor(_ context.Context, chatID int64, parentID int) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := readDocument(s.paths.CommentsFile(chatID, parentID), &comments); err != nil {
		return nil, err
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments, nil
}

func (s *JSONStore) Close() error { return nil }

// readDocument loads a JSON document into v. A missing file is an empty
// document, not an error.
func readDocument(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeDocument(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
