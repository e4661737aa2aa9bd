package domain

import "context"

// ChatStore is the persistence contract implemented identically by the
// document store and the relational store, and by the dual-write store that
// combines them. All writes are idempotent upserts.
type ChatStore interface {
	SaveChat(ctx context.Context, chat *Chat) error
	SaveMessage(ctx context.Context, msg *Message) error
	MessageExists(ctx context.Context, chatID int64, messageID int) (bool, error)

	// Bulk preloads, called once per sync pass so the page loop never does a
	// per-message storage round trip.
	AllMessageIDs(ctx context.Context, chatID int64) (map[int]struct{}, error)
	AllDownloadStatuses(ctx context.Context, chatID int64) (map[int]DownloadStatus, error)

	SaveDownloadRecord(ctx context.Context, rec *DownloadRecord) error
	DownloadRecordStatus(ctx context.Context, chatID int64, messageID int, fileName string) (DownloadStatus, bool, error)

	SaveComment(ctx context.Context, c *Comment) error
	CommentsFor(ctx context.Context, chatID int64, parentID int) ([]Comment, error)

	Close() error
}

// ProgressFunc receives transfer progress. total may be zero when the remote
// source does not know the size up front.
type ProgressFunc func(received, total int64)

// RemoteSource is the black-box remote conversation capability (entity
// resolution, message listing, raw byte transfer). Whether a transfer uses a
// single stream or chunk-parallel fetch is an internal strategy of the
// implementation.
type RemoteSource interface {
	ResolveEntity(ctx context.Context, ref string) (*Chat, error)
	ListDialogs(ctx context.Context) ([]Dialog, error)

	// ListMessages returns up to limit messages older than offsetID,
	// newest-first. offsetID zero starts from the latest message.
	ListMessages(ctx context.Context, apiID int64, limit, offsetID int) ([]*Message, error)

	// ListReplies drains the reply thread targeting parentID.
	ListReplies(ctx context.Context, apiID int64, parentID int) ([]*Message, error)

	// TransferMedia downloads the message's media into destDir and returns
	// the local path, or "" when the message carries nothing downloadable.
	TransferMedia(ctx context.Context, apiID int64, msg *Message, destDir string, progress ProgressFunc) (string, error)

	Close() error
}

// ProgressTask tracks one transfer in the UI.
type ProgressTask interface {
	Increment(n int)
	SetCurrent(current int64)
	Complete()
}

// ProgressReporter creates progress tasks for long transfers.
type ProgressReporter interface {
	Start(name string, total int64) ProgressTask
	Wait()
}
