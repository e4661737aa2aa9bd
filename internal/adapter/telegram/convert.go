package telegram

import (
	"encoding/json"
	"time"

	"github.com/gotd/td/tg"

	"tg-chatdump/internal/domain"
)

// convertMessage maps a raw API message to the tagged domain representation.
// ChatID is left zero; the caller stamps the storage id before persisting.
func (c *Client) convertMessage(m *tg.Message) *domain.Message {
	msg := &domain.Message{
		ID:        m.ID,
		Date:      time.Unix(int64(m.Date), 0).UTC(),
		Text:      m.Message,
		RawText:   m.Message,
		MediaKind: domain.MediaText,
	}

	if media, ok := m.GetMedia(); ok {
		msg.MediaKind, msg.FileName = classifyMedia(media)
	}

	if gid, ok := m.GetGroupedID(); ok {
		msg.GroupID = gid
	}
	if views, ok := m.GetViews(); ok {
		msg.Views = views
	}
	if fwds, ok := m.GetForwards(); ok {
		msg.Forwards = fwds
	}

	if replies, ok := m.GetReplies(); ok {
		msg.ReplyCount = replies.Replies
		if replies.Comments {
			msg.HasDiscussion = true
			if chID, ok := replies.GetChannelID(); ok {
				msg.DiscussionChatID = chID
			}
		}
	}

	if hdr, ok := m.GetReplyTo(); ok {
		if rt, ok := hdr.(*tg.MessageReplyHeader); ok {
			msg.IsReply = true
			if id, ok := rt.GetReplyToMsgID(); ok {
				msg.ReplyToID = id
			}
		}
	}

	if fwd, ok := m.GetFwdFrom(); ok {
		msg.IsForward = true
		if name, ok := fwd.GetFromName(); ok {
			msg.FwdFromName = name
		}
		if from, ok := fwd.GetFromID(); ok {
			msg.FwdFromChatID = peerIDOf(from)
			if msg.FwdFromName == "" {
				if p, ok := c.peer(msg.FwdFromChatID); ok {
					msg.FwdFromName = p.title
				}
			}
		}
		if post, ok := fwd.GetChannelPost(); ok {
			msg.FwdFromMessageID = post
		}
	}

	if from, ok := m.GetFromID(); ok {
		msg.SenderID = peerIDOf(from)
		if p, ok := c.peer(msg.SenderID); ok {
			msg.SenderName = p.title
		}
	}

	raw, err := json.Marshal(struct {
		ID   int    `json:"id"`
		Date int    `json:"date"`
		Text string `json:"text"`
	}{ID: m.ID, Date: m.Date, Text: m.Message})
	if err == nil {
		msg.Raw = raw
	}

	return msg
}

// classifyMedia resolves the media kind and, for documents, the
// server-assigned file name. Photos never carry a name; a synthetic one is
// assigned at transfer time.
func classifyMedia(media tg.MessageMediaClass) (domain.MediaKind, string) {
	switch v := media.(type) {
	case *tg.MessageMediaPhoto:
		return domain.MediaPhoto, ""
	case *tg.MessageMediaDocument:
		docClass, ok := v.GetDocument()
		if !ok {
			return domain.MediaOther, ""
		}
		doc, ok := docClass.AsNotEmpty()
		if !ok {
			return domain.MediaOther, ""
		}
		kind := domain.MediaDocument
		name := ""
		for _, attr := range doc.Attributes {
			switch a := attr.(type) {
			case *tg.DocumentAttributeVideo:
				kind = domain.MediaVideo
			case *tg.DocumentAttributeAudio:
				kind = domain.MediaAudio
			case *tg.DocumentAttributeFilename:
				name = a.FileName
			}
		}
		return kind, name
	case *tg.MessageMediaWebPage:
		return domain.MediaWeb, ""
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		return domain.MediaLocation, ""
	case *tg.MessageMediaContact:
		return domain.MediaContact, ""
	default:
		return domain.MediaOther, ""
	}
}
