package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gotd/td/tg"

	"tg-chatdump/internal/domain"
)

// maxReplyPage is the listing cap for one reply-thread request.
const maxReplyPage = 100

// ResolveEntity resolves a reference (marker-prefixed id, bare id, or
// handle) to the entity's metadata. Numeric references are looked up in the
// dialog cache; handles go through username resolution.
func (c *Client) ResolveEntity(ctx context.Context, ref string) (*domain.Chat, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		bareID, kind, kindKnown := normalizeID(id)

		p, ok := c.peer(bareID)
		if !ok {
			if err := c.loadDialogs(ctx); err != nil {
				return nil, err
			}
			if p, ok = c.peer(bareID); !ok {
				return nil, fmt.Errorf("entity %d not found in recent dialogs", bareID)
			}
		}
		if kindKnown && kind == peerChannel && p.kind != peerChannel {
			return nil, fmt.Errorf("entity %d is not a channel or supergroup", bareID)
		}
		return c.chatFromPeer(bareID, p), nil
	}

	username := strings.TrimPrefix(ref, "@")
	res, err := c.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})
	if err != nil {
		return nil, fmt.Errorf("resolve username %q: %w", username, err)
	}
	c.cacheEntities(res.Chats, res.Users)

	id := peerIDOf(res.Peer)
	p, ok := c.peer(id)
	if !ok {
		return nil, fmt.Errorf("resolved peer %d missing from response entities", id)
	}
	return c.chatFromPeer(id, p), nil
}

func (c *Client) chatFromPeer(id int64, p peerInfo) *domain.Chat {
	kind := domain.ChatPrivate
	switch p.kind {
	case peerChannel:
		if p.broadcast {
			kind = domain.ChatChannel
		} else {
			kind = domain.ChatSupergroup
		}
	case peerChat:
		kind = domain.ChatGroup
	}
	return &domain.Chat{
		ID:       id,
		Title:    p.title,
		Kind:     kind,
		Username: p.username,
	}
}

// loadDialogs populates the peer cache from the account's recent dialogs.
// It runs at most once per client; later entity caching happens as a side
// effect of listing responses.
func (c *Client) loadDialogs(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.dialogsLoaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}

	dialogs, err := c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      100,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return fmt.Errorf("get dialogs: %w", err)
	}

	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		c.cacheEntities(d.Chats, d.Users)
	case *tg.MessagesDialogsSlice:
		c.cacheEntities(d.Chats, d.Users)
	}

	c.mu.Lock()
	c.dialogsLoaded = true
	c.mu.Unlock()
	return nil
}

// ListDialogs returns the resolvable conversations from the dialog cache.
func (c *Client) ListDialogs(ctx context.Context) ([]domain.Dialog, error) {
	if err := c.loadDialogs(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	dialogs := make([]domain.Dialog, 0, len(c.peers))
	for id, p := range c.peers {
		chat := c.chatFromPeer(id, p)
		dialogs = append(dialogs, domain.Dialog{
			ID:       id,
			Title:    chat.Title,
			Kind:     chat.Kind,
			Username: chat.Username,
		})
	}
	return dialogs, nil
}

// ListMessages returns up to limit messages older than offsetID,
// newest-first, converted to the tagged domain representation.
func (c *Client) ListMessages(ctx context.Context, apiID int64, limit, offsetID int) ([]*domain.Message, error) {
	peer, err := c.inputPeer(ctx, apiID)
	if err != nil {
		return nil, err
	}

	history, err := c.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
		Peer:     peer,
		OffsetID: offsetID,
		Limit:    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}

	out := make([]*domain.Message, 0, limit)
	for _, m := range c.extractMessages(history) {
		out = append(out, c.convertMessage(m))
	}
	return out, nil
}

// ListReplies drains the reply thread targeting parentID.
func (c *Client) ListReplies(ctx context.Context, apiID int64, parentID int) ([]*domain.Message, error) {
	peer, err := c.inputPeer(ctx, apiID)
	if err != nil {
		return nil, err
	}

	var out []*domain.Message
	offsetID := 0
	for {
		res, err := c.api.MessagesGetReplies(ctx, &tg.MessagesGetRepliesRequest{
			Peer:     peer,
			MsgID:    parentID,
			OffsetID: offsetID,
			Limit:    maxReplyPage,
		})
		if err != nil {
			return nil, fmt.Errorf("get replies: %w", err)
		}

		msgs := c.extractMessages(res)
		if len(msgs) == 0 {
			break
		}
		for _, m := range msgs {
			out = append(out, c.convertMessage(m))
			offsetID = m.ID
		}
		if len(msgs) < maxReplyPage {
			break
		}
	}
	return out, nil
}

// extractMessages unwraps a listing response, caching any entities it
// carries, and keeps only plain messages (no service messages).
func (c *Client) extractMessages(res tg.MessagesMessagesClass) []*tg.Message {
	var list []tg.MessageClass
	switch h := res.(type) {
	case *tg.MessagesChannelMessages:
		c.cacheEntities(h.Chats, h.Users)
		list = h.Messages
	case *tg.MessagesMessagesSlice:
		c.cacheEntities(h.Chats, h.Users)
		list = h.Messages
	case *tg.MessagesMessages:
		c.cacheEntities(h.Chats, h.Users)
		list = h.Messages
	}

	msgs := make([]*tg.Message, 0, len(list))
	for _, m := range list {
		if msg, ok := m.(*tg.Message); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// message re-fetches a single message so its media locations carry fresh
// file references for transfer.
func (c *Client) message(ctx context.Context, apiID int64, id int) (*tg.Message, error) {
	peer, err := c.inputPeer(ctx, apiID)
	if err != nil {
		return nil, err
	}

	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: id}}

	var res tg.MessagesMessagesClass
	if ch, ok := peer.(*tg.InputPeerChannel); ok {
		res, err = c.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash},
			ID:      ids,
		})
	} else {
		res, err = c.api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}

	msgs := c.extractMessages(res)
	if len(msgs) == 0 {
		return nil, fmt.Errorf("message %d not found", id)
	}
	return msgs[0], nil
}

func peerIDOf(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerChannel:
		return p.ChannelID
	}
	return 0
}
