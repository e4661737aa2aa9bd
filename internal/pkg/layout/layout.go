package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Layout maps conversation data onto the on-disk tree. The directory shape
// is part of the dedup contract: album members share one group directory,
// ungrouped media gets a per-message media directory, and the sync engine
// keys its existence checks off those paths.
//
//	<root>/<chatID>/metadata.json
//	<root>/<chatID>/messages.json
//	<root>/<chatID>/downloads.json
//	<root>/<chatID>/messages.db
//	<root>/<chatID>/comments/<parentID>.json
//	<root>/<chatID>/messages/<messageID>/media/
//	<root>/<chatID>/messages/group_<groupID>/
type Layout struct {
	Root string
}

func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

func (l *Layout) ChatDir(chatID int64) string {
	return filepath.Join(l.Root, strconv.FormatInt(chatID, 10))
}

func (l *Layout) MetadataFile(chatID int64) string {
	return filepath.Join(l.ChatDir(chatID), "metadata.json")
}

func (l *Layout) MessagesFile(chatID int64) string {
	return filepath.Join(l.ChatDir(chatID), "messages.json")
}

func (l *Layout) DownloadsFile(chatID int64) string {
	return filepath.Join(l.ChatDir(chatID), "downloads.json")
}

func (l *Layout) DatabaseFile(chatID int64) string {
	return filepath.Join(l.ChatDir(chatID), "messages.db")
}

func (l *Layout) CommentsFile(chatID int64, parentID int) string {
	return filepath.Join(l.ChatDir(chatID), "comments", strconv.Itoa(parentID)+".json")
}

func (l *Layout) MessageDir(chatID int64, messageID int) string {
	return filepath.Join(l.ChatDir(chatID), "messages", strconv.Itoa(messageID))
}

// MediaDir returns the artifact directory for a message. Messages sharing a
// group id land in one shared directory so duplicate server file names
// inside an album cannot collide with other messages.
func (l *Layout) MediaDir(chatID int64, messageID int, groupID int64) string {
	if groupID != 0 {
		return filepath.Join(l.ChatDir(chatID), "messages", fmt.Sprintf("group_%d", groupID))
	}
	return filepath.Join(l.MessageDir(chatID, messageID), "media")
}

// MediaDirExists reports whether the artifact directory for a message has
// been materialized on disk.
func (l *Layout) MediaDirExists(chatID int64, messageID int, groupID int64) bool {
	info, err := os.Stat(l.MediaDir(chatID, messageID, groupID))
	return err == nil && info.IsDir()
}
