package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
)

// channelMarker is the decimal prefix the API puts in front of channel and
// supergroup ids. It is a string concatenation, not an arithmetic offset, so
// stripping it works the same for ids of any digit length.
const channelMarker = "-100"

type peerKind int

const (
	peerUser peerKind = iota
	peerChat
	peerChannel
)

type peerInfo struct {
	kind       peerKind
	accessHash int64
	title      string
	username   string
	broadcast  bool
	megagroup  bool
}

// TransferConfig tunes the media transfer strategy. Threads > 1 enables
// chunk-parallel fetch of a single file; PartSize is the chunk size in bytes.
type TransferConfig struct {
	Threads  int
	PartSize int
}

// Client implements domain.RemoteSource using gotd.
type Client struct {
	client   *telegram.Client
	api      *tg.Client
	transfer TransferConfig
	log      zerolog.Logger

	mu            sync.RWMutex
	peers         map[int64]peerInfo // keyed by bare entity id
	dialogsLoaded bool
}

// AuthInput defines an interface for interactive authentication input.
type AuthInput interface {
	GetPhoneNumber() (string, error)
	GetCode() (string, error)
	GetPassword() (string, error)
}

func NewClient(appID int, appHash, sessionFile string, transfer TransferConfig, log zerolog.Logger) (*Client, error) {
	if err := os.MkdirAll(filepath.Dir(sessionFile), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	if transfer.Threads <= 0 {
		transfer.Threads = 1
	}
	if transfer.PartSize <= 0 {
		transfer.PartSize = 512 * 1024
	}

	client := telegram.NewClient(appID, appHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionFile},
	})

	return &Client{
		client:   client,
		transfer: transfer,
		log:      log,
		peers:    make(map[int64]peerInfo),
	}, nil
}

// Start connects and authenticates the client, keeping the run loop alive in
// the background until ctx is cancelled.
func (c *Client) Start(ctx context.Context, input AuthInput) error {
	ready := make(chan error, 1)

	go func() {
		err := c.client.Run(ctx, func(ctx context.Context) error {
			status, err := c.client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("auth status check failed: %w", err)
			}

			if !status.Authorized {
				c.log.Info().Msg("not authorized, starting auth flow")
				flow := auth.NewFlow(termAuth{input: input}, auth.SendCodeOptions{})
				if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
					return fmt.Errorf("auth flow failed: %w", err)
				}
			}

			c.api = c.client.API()

			select {
			case ready <- nil:
			default:
			}

			c.log.Debug().Msg("client connected")
			<-ctx.Done()
			return ctx.Err()
		})
		if err != nil {
			select {
			case ready <- err:
			default:
			}
		}
	}()

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Close() error { return nil }

// normalizeID strips the marker prefix off an API id and reports the peer
// kind it implies. The inversion mirrors how the marker form is built: drop
// the literal -100 decimal prefix and keep the remaining digits. Bare
// positive ids carry no kind information.
func normalizeID(apiID int64) (int64, peerKind, bool) {
	if apiID >= 0 {
		return apiID, 0, false
	}
	s := strconv.FormatInt(apiID, 10)
	if rest := strings.TrimPrefix(s, channelMarker); rest != s && rest != "" {
		if bareID, err := strconv.ParseInt(rest, 10, 64); err == nil {
			return bareID, peerChannel, true
		}
	}
	return -apiID, peerChat, true
}

func (c *Client) peer(id int64) (peerInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.peers[id]
	return p, ok
}

func (c *Client) setPeer(id int64, p peerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[id] = p
}

// inputPeer resolves an API id (marker-prefixed or bare) to an input peer,
// loading dialogs once to populate the access-hash cache on a miss.
func (c *Client) inputPeer(ctx context.Context, apiID int64) (tg.InputPeerClass, error) {
	bareID, kind, kindKnown := normalizeID(apiID)

	p, ok := c.peer(bareID)
	if !ok {
		if err := c.loadDialogs(ctx); err != nil {
			return nil, err
		}
		if p, ok = c.peer(bareID); !ok {
			return nil, fmt.Errorf("peer %d not found in recent dialogs", bareID)
		}
	}
	if kindKnown && p.kind != kind && kind == peerChannel {
		return nil, fmt.Errorf("peer %d is not a channel or supergroup", bareID)
	}

	switch p.kind {
	case peerChannel:
		return &tg.InputPeerChannel{ChannelID: bareID, AccessHash: p.accessHash}, nil
	case peerChat:
		return &tg.InputPeerChat{ChatID: bareID}, nil
	default:
		return &tg.InputPeerUser{UserID: bareID, AccessHash: p.accessHash}, nil
	}
}

// cacheEntities records access hashes for every chat and user in an API
// response so later calls can build input peers without extra lookups.
func (c *Client) cacheEntities(chats []tg.ChatClass, users []tg.UserClass) {
	for _, chat := range chats {
		switch v := chat.(type) {
		case *tg.Channel:
			c.setPeer(v.ID, peerInfo{
				kind:       peerChannel,
				accessHash: v.AccessHash,
				title:      v.Title,
				username:   v.Username,
				broadcast:  v.Broadcast,
				megagroup:  v.Megagroup,
			})
		case *tg.Chat:
			c.setPeer(v.ID, peerInfo{kind: peerChat, title: v.Title})
		}
	}
	for _, user := range users {
		if v, ok := user.(*tg.User); ok {
			name := v.FirstName
			if v.LastName != "" {
				name += " " + v.LastName
			}
			c.setPeer(v.ID, peerInfo{
				kind:       peerUser,
				accessHash: v.AccessHash,
				title:      name,
				username:   v.Username,
			})
		}
	}
}
