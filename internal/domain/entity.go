package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// MediaKind classifies a message's media payload. It is resolved once when a
// remote message is ingested; everything downstream switches on this value.
type MediaKind string

const (
	MediaText     MediaKind = "text"
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaWeb      MediaKind = "web"
	MediaLocation MediaKind = "location"
	MediaContact  MediaKind = "contact"
	MediaOther    MediaKind = "other"
)

// HasFile reports whether the kind carries a downloadable artifact.
func (k MediaKind) HasFile() bool {
	switch k {
	case MediaPhoto, MediaVideo, MediaAudio, MediaDocument:
		return true
	}
	return false
}

// DownloadStatus is the lifecycle state of a media transfer. The zero value
// means no record exists (legacy rows predate status tracking).
type DownloadStatus string

const (
	StatusPending   DownloadStatus = "pending"
	StatusCompleted DownloadStatus = "completed"
	StatusFailed    DownloadStatus = "failed"
)

// ChatKind is the conversation flavor as reported by the remote source.
type ChatKind string

const (
	ChatChannel    ChatKind = "channel"
	ChatSupergroup ChatKind = "supergroup"
	ChatGroup      ChatKind = "group"
	ChatPrivate    ChatKind = "private"
)

// Chat is the per-conversation metadata document. It is overwritten, not
// merged, on every sync pass.
type Chat struct {
	ID            int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Title         string    `json:"title" gorm:"type:text;not null"`
	Kind          ChatKind  `json:"type" gorm:"column:type;type:varchar(16);not null"`
	Username      string    `json:"username,omitempty"`
	LastMessageID int       `json:"last_message_id" gorm:"default:0"`
	TotalMessages int       `json:"total_messages" gorm:"default:0"`
	CreatedAt     time.Time `json:"created_at"`
}

func (Chat) TableName() string { return "chats" }

// ChatRef is a resolved conversation identity. StorageID is the canonical id
// all local data is filed under; APIID is the form the remote source expects
// for calls. For large groups and channels the two differ by the -100 marker.
type ChatRef struct {
	StorageID int64
	APIID     int64
}

// Message is a single conversation item. Created when fetched, mutated in
// place when its media transfer completes, then only touched by re-sync
// upserts.
type Message struct {
	ID               int             `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ChatID           int64           `json:"chat_id" gorm:"not null;index:idx_messages_chat_id"`
	Date             time.Time       `json:"date"`
	Text             string          `json:"text" gorm:"type:text"`
	RawText          string          `json:"raw_text,omitempty" gorm:"type:text"`
	MediaKind        MediaKind       `json:"media_type" gorm:"column:media_type;type:varchar(16);default:'text'"`
	FileName         string          `json:"file_name,omitempty"`
	FilePath         string          `json:"file_path,omitempty"`
	GroupID          int64           `json:"group_id,omitempty" gorm:"index"`
	SenderID         int64           `json:"sender_id,omitempty"`
	SenderName       string          `json:"sender_name,omitempty"`
	IsReply          bool            `json:"is_reply,omitempty"`
	ReplyToID        int             `json:"reply_to_id,omitempty"`
	IsForward        bool            `json:"is_forward,omitempty"`
	FwdFromChatID    int64           `json:"fwd_from_chat_id,omitempty"`
	FwdFromMessageID int             `json:"fwd_from_message_id,omitempty"`
	FwdFromName      string          `json:"fwd_from_name,omitempty"`
	Views            int             `json:"views,omitempty"`
	Forwards         int             `json:"forwards,omitempty"`
	ReplyCount       int             `json:"reply_count,omitempty"`
	HasDiscussion    bool            `json:"has_discussion,omitempty"`
	DiscussionChatID int64           `json:"discussion_chat_id,omitempty"`
	DownloadStatus   DownloadStatus  `json:"download_status,omitempty" gorm:"type:varchar(16)"`
	Raw              json.RawMessage `json:"raw_data,omitempty" gorm:"column:raw_data;type:text"`
}

func (Message) TableName() string { return "messages" }

// RecordName is the stable download-record key for the message's artifact.
// Media without a server-assigned name gets a synthetic one so that a
// pending record written before a crash is found again on the next run.
func (m *Message) RecordName() string {
	if m.FileName != "" {
		return m.FileName
	}
	return fmt.Sprintf("%s_%d", m.MediaKind, m.ID)
}

// Comment is a discussion reply, always subordinate to a parent message.
// ChatID is the storage id of the mirrored conversation, not the id of the
// linked discussion group the reply physically lives in.
type Comment struct {
	ID         int             `json:"id" gorm:"primaryKey;autoIncrement:false"`
	ChatID     int64           `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	ParentID   int             `json:"parent_id" gorm:"not null;index:idx_comments_parent"`
	Date       time.Time       `json:"date"`
	Text       string          `json:"text" gorm:"type:text"`
	RawText    string          `json:"raw_text,omitempty" gorm:"type:text"`
	MediaKind  MediaKind       `json:"media_type" gorm:"column:media_type;type:varchar(16);default:'text'"`
	SenderID   int64           `json:"sender_id,omitempty"`
	SenderName string          `json:"sender_name,omitempty"`
	Views      int             `json:"views,omitempty"`
	Raw        json.RawMessage `json:"raw_data,omitempty" gorm:"column:raw_data;type:text"`
}

func (Comment) TableName() string { return "comments" }

// DownloadRecord is the durability anchor for resumable transfers. A pending
// record is written before any bytes move, so a crash mid-transfer leaves a
// trace distinct from "never attempted".
type DownloadRecord struct {
	MessageID int            `json:"message_id" gorm:"primaryKey;autoIncrement:false"`
	ChatID    int64          `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	FileName  string         `json:"file_name" gorm:"primaryKey"`
	FilePath  string         `json:"file_path"`
	MediaKind MediaKind      `json:"media_type" gorm:"column:media_type;type:varchar(16)"`
	Status    DownloadStatus `json:"status" gorm:"type:varchar(16);not null"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (DownloadRecord) TableName() string { return "download_records" }

// Dialog is a resolvable conversation as listed by the remote source.
type Dialog struct {
	ID       int64
	Title    string
	Kind     ChatKind
	Username string
}

// SyncResult is the per-conversation outcome of a sync pass.
type SyncResult struct {
	RunID              string `json:"run_id"`
	Ref                string `json:"ref"`
	ChatID             int64  `json:"chat_id,omitempty"`
	ChatTitle          string `json:"chat_title,omitempty"`
	MessagesDownloaded int    `json:"messages_downloaded"`
	MessagesSkipped    int    `json:"messages_skipped"`
	MediaDownloaded    int    `json:"media_downloaded"`
	CommentsFetched    int    `json:"comments_fetched"`
	Errors             int    `json:"errors"`
	Error              string `json:"error,omitempty"`
}
