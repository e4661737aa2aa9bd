package storage

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tg-chatdump/internal/domain"
)

// DualStore writes through both backends in a fixed order (document store
// first, relational store second) and reads conservatively: state that is
// not confirmed by both backends is treated as incomplete. A crash between
// the two writes leaves at most one item ambiguous, and the conservative
// reads resolve that ambiguity toward re-fetching.
type DualStore struct {
	docs domain.ChatStore
	rel  domain.ChatStore
}

func NewDualStore(docs, rel domain.ChatStore) *DualStore {
	return &DualStore{docs: docs, rel: rel}
}

func (s *DualStore) SaveChat(ctx context.Context, chat *domain.Chat) error {
	if err := s.docs.SaveChat(ctx, chat); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	if err := s.rel.SaveChat(ctx, chat); err != nil {
		return fmt.Errorf("relational store: %w", err)
	}
	return nil
}

func (s *DualStore) SaveMessage(ctx context.Context, msg *domain.Message) error {
	if err := s.docs.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	if err := s.rel.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("relational store: %w", err)
	}
	return nil
}

func (s *DualStore) MessageExists(ctx context.Context, chatID int64, messageID int) (bool, error) {
	inDocs, err := s.docs.MessageExists(ctx, chatID, messageID)
	if err != nil {
		return false, err
	}
	if !inDocs {
		return false, nil
	}
	return s.rel.MessageExists(ctx, chatID, messageID)
}

// AllMessageIDs loads both backends concurrently and returns the
// intersection: a message counted as present must exist in both.
func (s *DualStore) AllMessageIDs(ctx context.Context, chatID int64) (map[int]struct{}, error) {
	var docIDs, relIDs map[int]struct{}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		docIDs, err = s.docs.AllMessageIDs(gCtx, chatID)
		return err
	})
	g.Go(func() (err error) {
		relIDs, err = s.rel.AllMessageIDs(gCtx, chatID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ids := make(map[int]struct{}, len(docIDs))
	for id := range docIDs {
		if _, ok := relIDs[id]; ok {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

// AllDownloadStatuses merges both backends. A status only counts as
// completed when both stores agree; a record seen in just one store is
// downgraded to pending so the transfer is re-attempted.
func (s *DualStore) AllDownloadStatuses(ctx context.Context, chatID int64) (map[int]domain.DownloadStatus, error) {
	var docSt, relSt map[int]domain.DownloadStatus

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		docSt, err = s.docs.AllDownloadStatuses(gCtx, chatID)
		return err
	})
	g.Go(func() (err error) {
		relSt, err = s.rel.AllDownloadStatuses(gCtx, chatID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	statuses := make(map[int]domain.DownloadStatus, len(docSt))
	for id, st := range docSt {
		if other, ok := relSt[id]; ok {
			statuses[id] = worstStatus(st, other)
		} else {
			statuses[id] = domain.StatusPending
		}
	}
	for id := range relSt {
		if _, ok := docSt[id]; !ok {
			statuses[id] = domain.StatusPending
		}
	}
	return statuses, nil
}

func (s *DualStore) SaveDownloadRecord(ctx context.Context, rec *domain.DownloadRecord) error {
	if err := s.docs.SaveDownloadRecord(ctx, rec); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	if err := s.rel.SaveDownloadRecord(ctx, rec); err != nil {
		return fmt.Errorf("relational store: %w", err)
	}
	return nil
}

func (s *DualStore) DownloadRecordStatus(ctx context.Context, chatID int64, messageID int, fileName string) (domain.DownloadStatus, bool, error) {
	docSt, docOK, err := s.docs.DownloadRecordStatus(ctx, chatID, messageID, fileName)
	if err != nil {
		return "", false, err
	}
	relSt, relOK, err := s.rel.DownloadRecordStatus(ctx, chatID, messageID, fileName)
	if err != nil {
		return "", false, err
	}
	switch {
	case docOK && relOK:
		return worstStatus(docSt, relSt), true, nil
	case docOK || relOK:
		return domain.StatusPending, true, nil
	default:
		return "", false, nil
	}
}

func (s *DualStore) SaveComment(ctx context.Context, c *domain.Comment) error {
	if err := s.docs.SaveComment(ctx, c); err != nil {
		return fmt.Errorf("document store: %w", err)
	}
	if err := s.rel.SaveComment(ctx, c); err != nil {
		return fmt.Errorf("relational store: %w", err)
	}
	return nil
}

func (s *DualStore) CommentsFor(ctx context.Context, chatID int64, parentID int) ([]domain.Comment, error) {
	return s.rel.CommentsFor(ctx, chatID, parentID)
}

func (s *DualStore) Close() error {
	docErr := s.docs.Close()
	if err := s.rel.Close(); err != nil {
		return err
	}
	return docErr
}

// worstStatus orders statuses by how much they can be trusted; anything
// other than completed forces a re-attempt.
func worstStatus(a, b domain.DownloadStatus) domain.DownloadStatus {
	rank := func(st domain.DownloadStatus) int {
		switch st {
		case domain.StatusCompleted:
			return 2
		case domain.StatusPending:
			return 1
		default:
			return 0
		}
	}
	if rank(a) <= rank(b) {
		return a
	}
	return b
}
