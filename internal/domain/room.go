package domain

import "strings"

const MaxRoomNameLen = 64

type RoomName string

type Room struct {
	Name RoomName
}

// NewRoomName trims and validates an operator or client supplied room name.
func NewRoomName(raw string) (RoomName, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return "", ErrRoomNameTooLong
	}
	return RoomName(name), nil
}
