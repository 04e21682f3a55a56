package protocol

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	in := NewSnapshot(123.25, 5400.5, true, true)

	raw, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSnapshotWireShape(t *testing.T) {
	raw, err := Encode(Snapshot{Position: 1.5, Length: 10, Playing: false})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, map[string]any{
		"tag":       "update",
		"position":  1.5,
		"length":    float64(10),
		"playing":   false,
		"forceSync": false,
	}, fields)
}

func TestDecodeControl(t *testing.T) {
	for _, tag := range []Tag{TagPlay, TagPause, TagSync} {
		raw, err := Encode(NewControl(tag))
		require.NoError(t, err)

		msg, err := Decode(raw)
		require.NoError(t, err)
		assert.Equal(t, Control{Tag: tag}, msg)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	msg, err := Decode([]byte(`{"tag":"rewind","speed":2}`))
	require.NoError(t, err)
	assert.Equal(t, Unknown{Tag: "rewind"}, msg)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `play`},
		{"array", `[1,2]`},
		{"missing tag", `{"position":1}`},
		{"tag not string", `{"tag":3}`},
		{"bad snapshot field", `{"tag":"update","position":"ten"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			assert.ErrorIs(t, err, domain.ErrMalformedMessage)
		})
	}
}
