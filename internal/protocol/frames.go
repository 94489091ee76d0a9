package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/clutchchat/clutch/internal/models"
)

// FrameType identifies the kind of frame exchanged over the stream.
type FrameType string

const (
	// Client -> Server
	TypeJoinChannel  FrameType = "join_channel"
	TypeLeaveChannel FrameType = "leave_channel"
	TypeSendMessage  FrameType = "send_message"
	TypeTyping       FrameType = "typing"

	// Server -> Client
	TypeMessage  FrameType = "message"
	TypePresence FrameType = "presence"
)

// Frame is one discrete unit on the streaming connection. The wire shape is
// flat JSON keyed by "type"; fields not used by a given type are omitted.
type Frame struct {
	Type      FrameType `json:"type"`
	ChannelID string    `json:"channel_id,omitempty"`
	Content   string    `json:"content,omitempty"`

	// Nonce is an idempotency key attached to user-authored messages so a
	// resend after reconnect cannot duplicate server-side.
	Nonce string `json:"nonce,omitempty"`

	// Message carries the chat event payload of a "message" frame.
	Message *models.Message `json:"message,omitempty"`

	// UserID and Status carry typing/presence event fields.
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// UnknownTypeError is returned by Decode for a frame whose type tag is not
// part of the protocol. The connection stays up; the frame is dropped.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("protocol: unknown frame type %q", e.Type)
}

// JoinChannel builds a join_channel control frame.
func JoinChannel(channelID string) Frame {
	return Frame{Type: TypeJoinChannel, ChannelID: channelID}
}

// LeaveChannel builds a leave_channel control frame.
func LeaveChannel(channelID string) Frame {
	return Frame{Type: TypeLeaveChannel, ChannelID: channelID}
}

// SendMessage builds a send_message data frame carrying an idempotency nonce.
func SendMessage(channelID, content, nonce string) Frame {
	return Frame{Type: TypeSendMessage, ChannelID: channelID, Content: content, Nonce: nonce}
}

// Typing builds a typing control frame.
func Typing(channelID string) Frame {
	return Frame{Type: TypeTyping, ChannelID: channelID}
}

// Encode serializes a frame for the wire.
func Encode(f Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return data, nil
}

// Decode parses an inbound frame, rejecting unknown type tags so malformed
// or future traffic is surfaced explicitly instead of passed through.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	switch f.Type {
	case TypeMessage:
		if f.Message == nil {
			return Frame{}, fmt.Errorf("decode frame: message frame without payload")
		}
	case TypeTyping, TypePresence:
		// carried fields are optional
	case TypeJoinChannel, TypeLeaveChannel, TypeSendMessage:
		// echoes of our own control frames are valid but unexpected
	default:
		return Frame{}, &UnknownTypeError{Type: string(f.Type)}
	}
	return f, nil
}
