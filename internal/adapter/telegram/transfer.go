package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"tg-chatdump/internal/domain"
)

// TransferMedia downloads the message's media into destDir and returns the
// local path. The message is re-fetched first so the file location carries a
// fresh file reference; stale references are the most common transfer
// failure on long runs.
func (c *Client) TransferMedia(ctx context.Context, apiID int64, msg *domain.Message, destDir string, progress domain.ProgressFunc) (string, error) {
	fresh, err := c.message(ctx, apiID, msg.ID)
	if err != nil {
		return "", err
	}

	media, ok := fresh.GetMedia()
	if !ok {
		return "", nil
	}

	loc, name, total, err := fileLocation(media, msg.ID)
	if err != nil {
		return "", err
	}
	if loc == nil {
		return "", nil
	}

	path := filepath.Join(destDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	w := &progressWriter{f: f, total: total, fn: progress}
	dl := downloader.NewDownloader().WithPartSize(c.transfer.PartSize)
	b := dl.Download(c.api, loc)

	if c.transfer.Threads > 1 {
		_, err = b.WithThreads(c.transfer.Threads).Parallel(ctx, w)
	} else {
		_, err = b.Stream(ctx, w)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("download %s: %w", name, err)
	}

	// Synthetic names have no extension; sniff one from the content.
	if filepath.Ext(name) == "" {
		if mtype, err := mimetype.DetectFile(path); err == nil && mtype.Extension() != "" {
			renamed := path + mtype.Extension()
			if os.Rename(path, renamed) == nil {
				path = renamed
			}
		}
	}

	c.log.Debug().Int("message_id", msg.ID).Str("path", path).Msg("media transferred")
	return path, nil
}

// fileLocation extracts the downloadable location, the file name to store
// under, and the expected size. A nil location means the media carries no
// downloadable artifact.
func fileLocation(media tg.MessageMediaClass, messageID int) (tg.InputFileLocationClass, string, int64, error) {
	switch v := media.(type) {
	case *tg.MessageMediaPhoto:
		photoClass, ok := v.GetPhoto()
		if !ok {
			return nil, "", 0, nil
		}
		photo, ok := photoClass.AsNotEmpty()
		if !ok {
			return nil, "", 0, nil
		}
		thumb, size := largestPhotoSize(photo)
		if thumb == "" {
			return nil, "", 0, fmt.Errorf("photo %d has no downloadable size", photo.ID)
		}
		loc := &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     thumb,
		}
		return loc, fmt.Sprintf("photo_%d.jpg", messageID), int64(size), nil

	case *tg.MessageMediaDocument:
		docClass, ok := v.GetDocument()
		if !ok {
			return nil, "", 0, nil
		}
		doc, ok := docClass.AsNotEmpty()
		if !ok {
			return nil, "", 0, nil
		}
		name := documentName(doc)
		if name == "" {
			name = fmt.Sprintf("document_%d", messageID)
		}
		return doc.AsInputDocumentFileLocation(), name, doc.Size, nil

	default:
		return nil, "", 0, nil
	}
}

func documentName(doc *tg.Document) string {
	for _, attr := range doc.Attributes {
		if a, ok := attr.(*tg.DocumentAttributeFilename); ok {
			return a.FileName
		}
	}
	return ""
}

// largestPhotoSize picks the biggest rendition of a photo. Progressive sizes
// report cumulative byte counts; the last entry is the full file.
func largestPhotoSize(photo *tg.Photo) (string, int) {
	var (
		thumb string
		size  int
	)
	for _, s := range photo.Sizes {
		switch v := s.(type) {
		case *tg.PhotoSize:
			if v.Size >= size {
				size = v.Size
				thumb = v.Type
			}
		case *tg.PhotoSizeProgressive:
			max := 0
			for _, b := range v.Sizes {
				if b > max {
					max = b
				}
			}
			if max >= size {
				size = max
				thumb = v.Type
			}
		}
	}
	return thumb, size
}

// progressWriter counts bytes through both the sequential and the
// chunk-parallel write paths. WriteAt is called concurrently when threads
// are enabled, so the counter is atomic.
type progressWriter struct {
	f        *os.File
	total    int64
	received atomic.Int64
	fn       domain.ProgressFunc
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.report(n)
	return n, err
}

func (w *progressWriter) WriteAt(p []byte, off int64) (int, error) {
	n, err := w.f.WriteAt(p, off)
	w.report(n)
	return n, err
}

func (w *progressWriter) report(n int) {
	if w.fn != nil && n > 0 {
		w.fn(w.received.Add(int64(n)), w.total)
	}
}
