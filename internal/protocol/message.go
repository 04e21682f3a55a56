// Package protocol defines what travels on a room channel and the frames
// exchanged between a participant and the relay.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/vlcsync/internal/domain"
)

type Tag string

const (
	TagUpdate Tag = "update"
	TagPlay   Tag = "play"
	TagPause  Tag = "pause"
	TagSync   Tag = "sync"
)

// Message is either a Snapshot, a Control or an Unknown.
type Message interface{ isMessage() }

// Snapshot is the master's playback state at the moment of send.
type Snapshot struct {
	Tag       Tag     `json:"tag"`
	Position  float64 `json:"position"`
	Length    float64 `json:"length"`
	Playing   bool    `json:"playing"`
	ForceSync bool    `json:"forceSync"`
}

// Control is a transport command (play/pause) or a sync request.
type Control struct {
	Tag Tag `json:"tag"`
}

// Unknown carries a tag this version does not understand.
type Unknown struct {
	Tag Tag
}

func (Snapshot) isMessage() {}
func (Control) isMessage()  {}
func (Unknown) isMessage()  {}

func NewSnapshot(position, length float64, playing, force bool) Snapshot {
	return Snapshot{Tag: TagUpdate, Position: position, Length: length, Playing: playing, ForceSync: force}
}

func NewControl(tag Tag) Control {
	return Control{Tag: tag}
}

// Encode marshals a channel message.
func Encode(m Message) ([]byte, error) {
	switch v := m.(type) {
	case Snapshot:
		v.Tag = TagUpdate
		return json.Marshal(v)
	case Control:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("encode %T: unsupported message", m)
	}
}

// Decode parses a channel payload. Anything that is not a JSON object with a
// string tag is ErrMalformedMessage; an unrecognised tag decodes to Unknown.
func Decode(payload []byte) (Message, error) {
	var env struct {
		Tag *Tag `json:"tag"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
	}
	if env.Tag == nil {
		return nil, fmt.Errorf("%w: missing tag", domain.ErrMalformedMessage)
	}

	switch *env.Tag {
	case TagUpdate:
		var s Snapshot
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)
		}
		return s, nil
	case TagPlay, TagPause, TagSync:
		return Control{Tag: *env.Tag}, nil
	default:
		return Unknown{Tag: *env.Tag}, nil
	}
}
