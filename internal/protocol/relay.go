package protocol

import "github.com/dkeye/vlcsync/internal/domain"

type FrameType string

// Client to relay.
const (
	FrameSubscribe   FrameType = "subscribe"
	FrameUnsubscribe FrameType = "unsubscribe"
	FramePublish     FrameType = "publish"
	FrameNumSub      FrameType = "numsub"
	FramePing        FrameType = "ping"
)

// Relay to client. FrameNumSub is reused for the reply.
const (
	FrameSubscribed   FrameType = "subscribed"
	FrameUnsubscribed FrameType = "unsubscribed"
	FrameMessage      FrameType = "message"
	FrameError        FrameType = "error"
	FramePong         FrameType = "pong"
)

// RelayFrame is the single envelope used in both directions on the relay
// WebSocket. Payload holds the UTF-8 text of a published channel message.
type RelayFrame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id,omitempty"`
	Room    domain.RoomName `json:"room,omitempty"`
	Payload string          `json:"payload,omitempty"`
	Count   int             `json:"count,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Relay error codes.
const (
	ErrCodeBadPayload  = "bad_payload"
	ErrCodeBadRoom     = "bad_room"
	ErrCodeNotBound    = "not_bound"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeUnknownType = "unknown_type"
)
