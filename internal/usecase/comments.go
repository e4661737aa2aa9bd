package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tg-chatdump/internal/domain"
)

// CommentFetcher drains the discussion replies of a parent message. There is
// no per-parent watermark: every pass over a parent re-fetches and upserts
// its full reply set.
type CommentFetcher struct {
	remote domain.RemoteSource
	store  domain.ChatStore
	log    zerolog.Logger
}

func NewCommentFetcher(remote domain.RemoteSource, store domain.ChatStore, log zerolog.Logger) *CommentFetcher {
	return &CommentFetcher{remote: remote, store: store, log: log}
}

// FetchComments lists the replies targeting parentID and persists each one,
// stamped with the storage chat id (not the API id the listing was issued
// under). Returns the number of comments persisted.
func (f *CommentFetcher) FetchComments(ctx context.Context, apiID, storageID int64, parentID int) (int, error) {
	replies, err := f.remote.ListReplies(ctx, apiID, parentID)
	if err != nil {
		return 0, fmt.Errorf("list replies for message %d: %w", parentID, err)
	}

	saved := 0
	for _, r := range replies {
		c := &domain.Comment{
			ID:         r.ID,
			ChatID:     storageID,
			ParentID:   parentID,
			Date:       r.Date,
			Text:       r.Text,
			RawText:    r.RawText,
			MediaKind:  r.MediaKind,
			SenderID:   r.SenderID,
			SenderName: r.SenderName,
			Views:      r.Views,
			Raw:        r.Raw,
		}
		if err := f.store.SaveComment(ctx, c); err != nil {
			return saved, fmt.Errorf("save comment %d: %w", c.ID, err)
		}
		saved++
	}

	f.log.Debug().Int("parent_id", parentID).Int("comments", saved).Msg("drained reply thread")
	return saved, nil
}
