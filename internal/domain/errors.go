// Package domain contains entities without logic, just meta-data and the
// error taxonomy shared by every layer.
package domain

import "errors"

var (
	// ErrAdapterUnavailable means the local player connection dropped.
	ErrAdapterUnavailable = errors.New("player adapter unavailable")
	// ErrMalformedMessage means a channel payload is not a valid wire message.
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidArgument  = errors.New("invalid argument")
	// ErrConnection is fatal: the initial transport or player connect failed.
	ErrConnection = errors.New("connection error")

	ErrRoleAlreadySet  = errors.New("role already set")
	ErrNotSubscribed   = errors.New("not subscribed")
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)
