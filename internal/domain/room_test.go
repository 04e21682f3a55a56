package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoomName(t *testing.T) {
	name, err := NewRoomName("  movieroom ")
	require.NoError(t, err)
	assert.Equal(t, RoomName("movieroom"), name)

	_, err = NewRoomName("   ")
	assert.ErrorIs(t, err, ErrRoomNameEmpty)

	_, err = NewRoomName(strings.Repeat("x", MaxRoomNameLen+1))
	assert.ErrorIs(t, err, ErrRoomNameTooLong)
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "master", RoleMaster.String())
	assert.Equal(t, "follower", RoleFollower.String())
	assert.Equal(t, "unknown", RoleUnknown.String())
}
