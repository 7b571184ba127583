package worker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Command type identifiers on the wire.
const (
	TypeSkipWaiting = "SKIP_WAITING"
	TypeClearCache  = "CLEAR_CACHE"
)

// ErrUnknownCommand is returned for messages of an unsupported type.
var ErrUnknownCommand = errors.New("unknown command")

// Command is a control message from a page. The set of variants is closed:
// SkipWaiting and ClearCache.
type Command interface {
	// Type returns the wire type identifier.
	Type() string

	command()
}

// SkipWaiting activates a waiting worker.
type SkipWaiting struct{}

// ClearCache deletes every cache store.
type ClearCache struct{}

func (SkipWaiting) Type() string { return TypeSkipWaiting }
func (ClearCache) Type() string  { return TypeClearCache }

func (SkipWaiting) command() {}
func (ClearCache) command()  {}

type message struct {
	Type string `json:"type"`
}

// ParseCommand decodes a {"type": "..."} message.
func ParseCommand(data []byte) (Command, error) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	switch msg.Type {
	case TypeSkipWaiting:
		return SkipWaiting{}, nil
	case TypeClearCache:
		return ClearCache{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, msg.Type)
	}
}

// MarshalCommand encodes cmd in its wire form.
func MarshalCommand(cmd Command) ([]byte, error) {
	return json.Marshal(message{Type: cmd.Type()})
}
