package usecase

import (
	"context"
	"fmt"
	"strconv"

	"tg-chatdump/internal/domain"
)

// largeChatMarker is the prefix the remote API expects in front of a bare
// positive supergroup/channel id. Storage always keeps the unprefixed form.
const largeChatMarker = "-100"

// Resolver maps user-supplied conversation references onto canonical
// storage and API identities.
type Resolver struct {
	remote domain.RemoteSource
}

func NewResolver(remote domain.RemoteSource) *Resolver {
	return &Resolver{remote: remote}
}

// Resolve turns ref (a signed numeric id or a handle) into a ChatRef plus
// the remote entity's metadata.
//
// Any positive numeric reference is assumed to be a large-group id supplied
// in unprefixed form, so the marker prefix is tried first; if the remote
// rejects it, the original reference gets one more attempt before the
// resolution is declared failed. The mapping is deterministic, so repeated
// resolutions of the same reference always agree.
func (r *Resolver) Resolve(ctx context.Context, ref string) (domain.ChatRef, *domain.Chat, error) {
	if id, ok := parseNumericRef(ref); ok {
		apiRef := ref
		apiID := id
		if id > 0 {
			apiRef = largeChatMarker + strconv.FormatInt(id, 10)
			parsed, err := strconv.ParseInt(apiRef, 10, 64)
			if err != nil {
				return domain.ChatRef{}, nil, fmt.Errorf("reference %q overflows the marker form: %w", ref, domain.ErrUnresolvableChat)
			}
			apiID = parsed
		}

		chat, err := r.remote.ResolveEntity(ctx, apiRef)
		if err != nil && apiRef != ref {
			// The marker heuristic misfired; fall back to the raw reference.
			chat, err = r.remote.ResolveEntity(ctx, ref)
			apiID = id
		}
		if err != nil {
			return domain.ChatRef{}, nil, fmt.Errorf("%w: %q: %v", domain.ErrUnresolvableChat, ref, err)
		}
		return domain.ChatRef{StorageID: id, APIID: apiID}, chat, nil
	}

	chat, err := r.remote.ResolveEntity(ctx, ref)
	if err != nil {
		return domain.ChatRef{}, nil, fmt.Errorf("%w: %q: %v", domain.ErrUnresolvableChat, ref, err)
	}
	return domain.ChatRef{StorageID: chat.ID, APIID: chat.ID}, chat, nil
}

// parseNumericRef reports whether ref is an optionally signed decimal
// integer and returns its value.
func parseNumericRef(ref string) (int64, bool) {
	s := ref
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if len(s) == 0 {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
