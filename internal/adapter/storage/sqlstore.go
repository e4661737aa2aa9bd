package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"tg-chatdump/internal/domain"
	"tg-chatdump/internal/pkg/layout"
)

// SQLStore is the relational backend. Each conversation gets its own SQLite
// file, opened lazily and kept open for the life of the store, so no shared
// mutable state crosses conversation boundaries.
type SQLStore struct {
	paths *layout.Layout

	mu    sync.Mutex
	conns map[int64]*gorm.DB
}

func NewSQLStore(paths *layout.Layout) *SQLStore {
	return &SQLStore{
		paths: paths,
		conns: make(map[int64]*gorm.DB),
	}
}

func (s *SQLStore) db(chatID int64) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if db, ok := s.conns[chatID]; ok {
		return db, nil
	}

	if err := os.MkdirAll(s.paths.ChatDir(chatID), 0o755); err != nil {
		return nil, fmt.Errorf("create chat dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(s.paths.DatabaseFile(chatID)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite for chat %d: %w", chatID, err)
	}

	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	if err := db.AutoMigrate(
		&domain.Chat{},
		&domain.Message{},
		&domain.Comment{},
		&domain.DownloadRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrate sqlite for chat %d: %w", chatID, err)
	}

	s.conns[chatID] = db
	return db, nil
}

func (s *SQLStore) SaveChat(ctx context.Context, chat *domain.Chat) error {
	db, err := s.db(chat.ID)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(chat).Error
}

func (s *SQLStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	db, err := s.db(msg.ChatID)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(msg).Error
}

func (s *SQLStore) MessageExists(ctx context.Context, chatID int64, messageID int) (bool, error) {
	db, err := s.db(chatID)
	if err != nil {
		return false, err
	}
	var count int64
	err = db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND chat_id = ?", messageID, chatID).
		Count(&count).Error
	return count > 0, err
}

func (s *SQLStore) AllMessageIDs(ctx context.Context, chatID int64) (map[int]struct{}, error) {
	db, err := s.db(chatID)
	if err != nil {
		return nil, err
	}
	var raw []int
	if err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("chat_id = ?", chatID).
		Pluck("id", &raw).Error; err != nil {
		return nil, err
	}
	ids := make(map[int]struct{}, len(raw))
	for _, id := range raw {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (s *SQLStore) AllDownloadStatuses(ctx context.Context, chatID int64) (map[int]domain.DownloadStatus, error) {
	db, err := s.db(chatID)
	if err != nil {
		return nil, err
	}
	var recs []domain.DownloadRecord
	if err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Find(&recs).Error; err != nil {
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

func (s *SQLStore) SaveDownloadRecord(ctx context.Context, rec *domain.DownloadRecord) error {
	db, err := s.db(rec.ChatID)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
}

func (s *SQLStore) DownloadRecordStatus(ctx context.Context, chatID int64, messageID int, fileName string) (domain.DownloadStatus, bool, error) {
	db, err := s.db(chatID)
	if err != nil {
		return "", false, err
	}
	var rec domain.DownloadRecord
	err = db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ? AND file_name = ?", chatID, messageID, fileName).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Status, true, nil
}

func (s *SQLStore) SaveComment(ctx context.Context, c *domain.Comment) error {
	db, err := s.db(c.ChatID)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(c).Error
}

func (s *SQLStore) CommentsFor(ctx context.Context, chatID int64, parentID int) ([]domain.Comment, error) {
	db, err := s.db(chatID)
	if err != nil {
		return nil, err
	}
	var comments []domain.Comment
	err = db.WithContext(ctx).
		Where("chat_id = ? AND parent_id = ?", chatID, parentID).
		Order("id").
		Find(&comments).Error
	return comments, err
}

func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for id, db := range s.conns {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(s.conns, id)
	}
	return firstErr
}
