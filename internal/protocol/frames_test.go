package protocol

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeControlFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{"join", JoinChannel("c1"), `{"type":"join_channel","channel_id":"c1"}`},
		{"leave", LeaveChannel("c1"), `{"type":"leave_channel","channel_id":"c1"}`},
		{"typing", Typing("c1"), `{"type":"typing","channel_id":"c1"}`},
		{
			"send",
			SendMessage("c1", "hello", "n-1"),
			`{"type":"send_message","channel_id":"c1","content":"hello","nonce":"n-1"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.frame)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestDecodeMessageFrame(t *testing.T) {
	raw := `{
		"type": "message",
		"message": {
			"id": "m1",
			"channel_id": "c1",
			"user_id": "u1",
			"content": "gg",
			"attachments": ["a1"],
			"created_at": "2026-01-02T15:04:05Z"
		}
	}`
	f, err := Decode([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, f.Message)
	assert.Equal(t, TypeMessage, f.Type)
	assert.Equal(t, "m1", f.Message.ID)
	assert.Equal(t, "c1", f.Message.ChannelID)
	assert.Equal(t, "u1", f.Message.UserID)
	assert.Equal(t, []string{"a1"}, f.Message.Attachments)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), f.Message.CreatedAt)
}

func TestDecodeTypingAndPresence(t *testing.T) {
	f, err := Decode([]byte(`{"type":"typing","channel_id":"c1","user_id":"u2"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeTyping, f.Type)
	assert.Equal(t, "c1", f.ChannelID)
	assert.Equal(t, "u2", f.UserID)

	f, err = Decode([]byte(`{"type":"presence","user_id":"u2","status":"online"}`))
	require.NoError(t, err)
	assert.Equal(t, TypePresence, f.Type)
	assert.Equal(t, "online", f.Status)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"voice_state","channel_id":"c1"}`))
	require.Error(t, err)
	var unknown *UnknownTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "voice_state", unknown.Type)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`not json at all`))
	assert.Error(t, err)

	// message frame without its payload
	_, err = Decode([]byte(`{"type":"message"}`))
	assert.Error(t, err)
}
