package models

import "time"

// ChannelType distinguishes text and voice channels.
type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
)

// Channel represents a named sub-conversation within a server.
type Channel struct {
	ID          string      `json:"id"`
	ServerID    string      `json:"server_id"`
	Name        string      `json:"name"`
	ChannelType ChannelType `json:"channel_type"`
	Topic       string      `json:"topic,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
