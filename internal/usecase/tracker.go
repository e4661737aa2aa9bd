package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"tg-chatdump/internal/domain"
	"tg-chatdump/internal/pkg/layout"
	"tg-chatdump/internal/pkg/retry"
)

// TransferOutcome distinguishes a unit of work actually performed from one
// satisfied by prior state.
type TransferOutcome int

const (
	OutcomeDownloaded TransferOutcome = iota
	OutcomeSkipped
)

const (
	transferRetries   = 3
	transferRetryBase = 1 * time.Second
)

// Tracker drives the download lifecycle of a single media artifact. A
// pending record is persisted before any bytes move, so an externally killed
// transfer leaves a trace that forces a re-attempt on the next run.
type Tracker struct {
	store    domain.ChatStore
	remote   domain.RemoteSource
	paths    *layout.Layout
	reporter domain.ProgressReporter
	log      zerolog.Logger
}

func NewTracker(store domain.ChatStore, remote domain.RemoteSource, paths *layout.Layout, log zerolog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		remote: remote,
		paths:  paths,
		log:    log,
	}
}

// SetReporter attaches a progress reporter for transfer bars.
func (t *Tracker) SetReporter(r domain.ProgressReporter) {
	t.reporter = r
}

// Download runs the full lifecycle for one message's media: trusted-artifact
// skip check, pending record, transfer with retries, then completion or
// failure record. On success the message is mutated in place with the local
// path and completed status.
func (t *Tracker) Download(ctx context.Context, apiID int64, msg *domain.Message) (TransferOutcome, error) {
	mediaDir := t.paths.MediaDir(msg.ChatID, msg.ID, msg.GroupID)
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return 0, fmt.Errorf("create media dir: %w", err)
	}

	name := msg.RecordName()

	// An artifact already on disk under the expected name is trusted only
	// when its record says completed; pending, failed, or absent records
	// mean the bytes cannot be trusted and the transfer is redone.
	if msg.FileName != "" {
		target := filepath.Join(mediaDir, msg.FileName)
		if _, err := os.Stat(target); err == nil {
			status, ok, err := t.store.DownloadRecordStatus(ctx, msg.ChatID, msg.ID, name)
			if err != nil {
				return 0, err
			}
			if ok && status == domain.StatusCompleted {
				msg.FilePath = target
				msg.DownloadStatus = domain.StatusCompleted
				return OutcomeSkipped, nil
			}
		}
	}

	if err := t.BeginTransfer(ctx, msg); err != nil {
		return 0, err
	}

	var task domain.ProgressTask
	progress := func(received, total int64) {
		if t.reporter == nil {
			return
		}
		if task == nil {
			task = t.reporter.Start(fmt.Sprintf("%d/%s", msg.ID, name), total)
		}
		task.SetCurrent(received)
	}

	var localPath string
	op := func() error {
		path, err := t.remote.TransferMedia(ctx, apiID, msg, mediaDir, progress)
		if err != nil {
			return err
		}
		localPath = path
		return nil
	}

	err := retry.WithRetry(ctx, t.log, fmt.Sprintf("transfer message %d", msg.ID), op, transferRetries, transferRetryBase)
	if task != nil {
		task.Complete()
	}
	if err != nil {
		if failErr := t.FailTransfer(ctx, msg); failErr != nil {
			t.log.Error().Err(failErr).Int("message_id", msg.ID).Msg("could not record transfer failure")
		}
		return 0, &domain.TransferError{ChatID: msg.ChatID, MessageID: msg.ID, FileName: name, Err: err}
	}

	if err := t.CompleteTransfer(ctx, msg, localPath); err != nil {
		return 0, err
	}
	return OutcomeDownloaded, nil
}

// BeginTransfer durably marks the transfer as attempted before bytes move.
func (t *Tracker) BeginTransfer(ctx context.Context, msg *domain.Message) error {
	return t.store.SaveDownloadRecord(ctx, &domain.DownloadRecord{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		FileName:  msg.RecordName(),
		MediaKind: msg.MediaKind,
		Status:    domain.StatusPending,
		UpdatedAt: time.Now().UTC(),
	})
}

// CompleteTransfer records success and mutates the message in place.
func (t *Tracker) CompleteTransfer(ctx context.Context, msg *domain.Message, localPath string) error {
	if err := t.store.SaveDownloadRecord(ctx, &domain.DownloadRecord{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		FileName:  msg.RecordName(),
		FilePath:  localPath,
		MediaKind: msg.MediaKind,
		Status:    domain.StatusCompleted,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	msg.FilePath = localPath
	msg.DownloadStatus = domain.StatusCompleted
	return nil
}

// FailTransfer records failure without marking the message complete.
func (t *Tracker) FailTransfer(ctx context.Context, msg *domain.Message) error {
	return t.store.SaveDownloadRecord(ctx, &domain.DownloadRecord{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		FileName:  msg.RecordName(),
		MediaKind: msg.MediaKind,
		Status:    domain.StatusFailed,
		UpdatedAt: time.Now().UTC(),
	})
}
