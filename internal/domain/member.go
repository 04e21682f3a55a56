package domain

import "github.com/google/uuid"

type SessionID string

// NewSessionID mints an id for one relay connection.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// Member represents one relay connection's participation meta for a room.
// No transport or lifecycle logic here.
type Member struct {
	ID     SessionID
	Remote string
}

func NewMember(id SessionID, remote string) *Member {
	return &Member{ID: id, Remote: remote}
}
