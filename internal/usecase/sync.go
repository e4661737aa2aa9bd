package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tg-chatdump/internal/domain"
	"tg-chatdump/internal/pkg/layout"
)

const (
	// maxPageSize is the hard cap the remote source enforces per listing.
	maxPageSize = 100
	// albumSlack is the largest album the source produces. When a unit limit
	// is in effect the page request is padded by this much so a trailing
	// album still arrives whole.
	albumSlack = 10
)

// Options tune a sync pass.
type Options struct {
	// Limit caps the pass at this many units (singletons or whole albums),
	// counted across skipped and downloaded alike. Zero means no limit.
	Limit int
	// SkipMedia stores message records without transferring artifacts.
	SkipMedia bool
	// OnProgress, when set, is invoked after every processed unit with the
	// running message count and the id of the last message seen.
	OnProgress func(processed, lastMessageID int)
}

// Syncer is the incremental sync engine: it resolves identity, preloads
// prior state, then drives the descending page loop, delegating group
// detection, download-state checks, and media transfer.
type Syncer struct {
	remote   domain.RemoteSource
	store    domain.ChatStore
	paths    *layout.Layout
	resolver *Resolver
	tracker  *Tracker
	comments *CommentFetcher
	log      zerolog.Logger
}

func NewSyncer(remote domain.RemoteSource, store domain.ChatStore, paths *layout.Layout, log zerolog.Logger) *Syncer {
	return &Syncer{
		remote:   remote,
		store:    store,
		paths:    paths,
		resolver: NewResolver(remote),
		tracker:  NewTracker(store, remote, paths, log),
		comments: NewCommentFetcher(remote, store, log),
		log:      log,
	}
}

// SetReporter attaches a progress reporter for media transfers.
func (s *Syncer) SetReporter(r domain.ProgressReporter) {
	s.tracker.SetReporter(r)
}

// DownloadChat runs one full sync pass over a conversation. The returned
// result is populated even when an error cuts the pass short, so batch
// drivers can report partial progress.
func (s *Syncer) DownloadChat(ctx context.Context, ref string, opts Options) (*domain.SyncResult, error) {
	res := &domain.SyncResult{RunID: uuid.NewString(), Ref: ref}

	chatRef, chat, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return res, err
	}

	// All local data is filed under the storage id, never the API id.
	chat.ID = chatRef.StorageID
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = time.Now().UTC()
	}
	res.ChatID = chat.ID
	res.ChatTitle = chat.Title

	log := s.log.With().Str("run_id", res.RunID).Int64("chat_id", chat.ID).Logger()
	log.Info().Str("title", chat.Title).Int64("api_id", chatRef.APIID).Msg("starting sync pass")

	if err := s.store.SaveChat(ctx, chat); err != nil {
		return res, fmt.Errorf("save chat metadata: %w", err)
	}

	existing, statuses, err := s.preload(ctx, chat.ID)
	if err != nil {
		return res, fmt.Errorf("preload prior state: %w", err)
	}
	log.Info().Int("existing_messages", len(existing)).Msg("preloaded prior state")

	offsetID := 0
	unitsProcessed := 0
	reachedLimit := false

	for {
		pageSize := maxPageSize
		if opts.Limit > 0 {
			remaining := opts.Limit - unitsProcessed
			if remaining <= 0 {
				break
			}
			if want := remaining + albumSlack; want < pageSize {
				pageSize = want
			}
		}

		page, err := s.remote.ListMessages(ctx, chatRef.APIID, pageSize, offsetID)
		if err != nil {
			return res, fmt.Errorf("list messages (offset %d): %w", offsetID, err)
		}
		if len(page) == 0 {
			break
		}

		for _, unit := range PartitionUnits(page) {
			if opts.Limit > 0 && unitsProcessed >= opts.Limit {
				reachedLimit = true
				break
			}

			if s.unitSynced(ctx, chat.ID, unit, opts, existing, statuses) {
				res.MessagesSkipped += len(unit.Members)
				log.Debug().Int("first_id", unit.Members[0].ID).Int("size", len(unit.Members)).Msg("unit already synced")
			} else {
				// A partially synced album is re-fetched in full to keep the
				// unit atomic at the storage layer.
				for _, msg := range unit.Members {
					if err := s.processMessage(ctx, chatRef, chat.ID, msg, opts, res, log); err != nil {
						return res, err
					}
				}
			}

			unitsProcessed++
			offsetID = unit.Members[len(unit.Members)-1].ID
			if opts.OnProgress != nil {
				opts.OnProgress(res.MessagesDownloaded+res.MessagesSkipped, offsetID)
			}
		}

		if reachedLimit || len(page) < pageSize {
			break
		}
	}

	chat.LastMessageID = offsetID
	chat.TotalMessages = res.MessagesDownloaded
	if err := s.store.SaveChat(ctx, chat); err != nil {
		return res, fmt.Errorf("finalize chat metadata: %w", err)
	}

	log.Info().
		Int("downloaded", res.MessagesDownloaded).
		Int("skipped", res.MessagesSkipped).
		Int("media", res.MediaDownloaded).
		Int("comments", res.CommentsFetched).
		Int("errors", res.Errors).
		Msg("sync pass complete")
	return res, nil
}

// DownloadAll drains a batch of conversations sequentially. A failing
// conversation is recorded in its result entry and the batch continues.
func (s *Syncer) DownloadAll(ctx context.Context, refs []string, opts Options) []domain.SyncResult {
	results := make([]domain.SyncResult, 0, len(refs))
	for _, ref := range refs {
		res, err := s.DownloadChat(ctx, ref, opts)
		if err != nil {
			s.log.Error().Err(err).Str("chat", ref).Msg("chat sync failed")
			res.Error = err.Error()
		}
		results = append(results, *res)
	}
	return results
}

// preload loads existing message ids and download statuses from both
// backends in one shot, so the page loop never issues per-message reads.
func (s *Syncer) preload(ctx context.Context, chatID int64) (map[int]struct{}, map[int]domain.DownloadStatus, error) {
	var (
		ids      map[int]struct{}
		statuses map[int]domain.DownloadStatus
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ids, err = s.store.AllMessageIDs(gCtx, chatID)
		return err
	})
	g.Go(func() (err error) {
		statuses, err = s.store.AllDownloadStatuses(gCtx, chatID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return ids, statuses, nil
}

// unitSynced reports whether every member of the unit is fully synced: its
// record exists in storage, its media directory is materialized, and any
// download record for it reads completed. Pending or failed records force a
// re-attempt of the whole unit.
func (s *Syncer) unitSynced(ctx context.Context, chatID int64, unit Unit, opts Options, existing map[int]struct{}, statuses map[int]domain.DownloadStatus) bool {
	for _, m := range unit.Members {
		if _, ok := existing[m.ID]; !ok {
			return false
		}
		if !m.MediaKind.HasFile() || opts.SkipMedia {
			continue
		}
		if !s.paths.MediaDirExists(chatID, m.ID, m.GroupID) {
			return false
		}
		if status, ok := statuses[m.ID]; ok && status != domain.StatusCompleted {
			return false
		}
	}
	return true
}

// processMessage ingests one fetched message: media transfer (when
// applicable), dual-store write, then discussion replies. Transfer failures
// are counted and swallowed; storage failures abort the pass.
func (s *Syncer) processMessage(ctx context.Context, ref domain.ChatRef, storageID int64, msg *domain.Message, opts Options, res *domain.SyncResult, log zerolog.Logger) error {
	msg.ChatID = storageID

	if msg.MediaKind.HasFile() && !opts.SkipMedia {
		outcome, err := s.tracker.Download(ctx, ref.APIID, msg)
		switch {
		case err != nil:
			res.Errors++
			log.Warn().Err(err).Int("message_id", msg.ID).Msg("media transfer failed")
		case outcome == OutcomeDownloaded:
			res.MediaDownloaded++
		}
	}

	if err := s.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("save message %d: %w", msg.ID, err)
	}
	res.MessagesDownloaded++

	if msg.HasDiscussion {
		n, err := s.comments.FetchComments(ctx, ref.APIID, storageID, msg.ID)
		res.CommentsFetched += n
		if err != nil {
			// Comments for this parent simply remain absent until the next
			// pass re-processes it.
			log.Warn().Err(err).Int("message_id", msg.ID).Msg("comment fetch failed")
		}
	}
	return nil
}
