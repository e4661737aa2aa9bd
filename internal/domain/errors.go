package domain

import (
	"errors"
	"fmt"
)

// ErrUnresolvableChat is returned when identity resolution exhausted both
// the marker-prefixed and the original form of a reference. Fatal for that
// conversation only.
var ErrUnresolvableChat = errors.New("chat could not be resolved")

// TransferError reports a single media transfer failure. It is recorded and
// counted but never aborts a sync pass.
type TransferError struct {
	ChatID    int64
	MessageID int
	FileName  string
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed for message %d file %q in chat %d: %v",
		e.MessageID, e.FileName, e.ChatID, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }
