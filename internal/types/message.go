// Package types holds the entity value records crossing the page boundary:
// chats, contacts, and messages. These are plain data holders decoded from
// the web client's raw payloads; all behavior lives in the client engine.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageKind discriminates message subtypes.
type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageImage    MessageKind = "image"
	MessageVideo    MessageKind = "video"
	MessageAudio    MessageKind = "audio"
	MessageDocument MessageKind = "document"
	MessageUnknown  MessageKind = "unknown"
)

// Message is a single inbound or outbound message.
type Message struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chat_id"`
	Sender    string      `json:"sender"`
	Body      string      `json:"body"`
	Kind      MessageKind `json:"kind"`
	FromMe    bool        `json:"from_me"`
	Timestamp time.Time   `json:"timestamp"`

	// Media fields, populated for non-text kinds.
	MediaMime string `json:"media_mime,omitempty"`
	MediaSize int64  `json:"media_size,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// rawMessage mirrors the shape the in-page shim produces.
type rawMessage struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	Sender    string `json:"sender"`
	Body      string `json:"body"`
	Type      string `json:"type"`
	FromMe    bool   `json:"fromMe"`
	Timestamp int64  `json:"t"` // unix seconds
	MediaMime string `json:"mimetype"`
	MediaSize int64  `json:"size"`
	Caption   string `json:"caption"`
}

// MessageFromPayload decodes a raw page payload into a Message, dispatching
// on the web client's message type string. Unrecognized types decode as
// MessageUnknown rather than failing; a payload without an id is rejected.
func MessageFromPayload(raw json.RawMessage) (Message, error) {
	var rm rawMessage
	if err := json.Unmarshal(raw, &rm); err != nil {
		return Message{}, fmt.Errorf("decode message payload: %w", err)
	}
	if rm.ID == "" {
		return Message{}, fmt.Errorf("message payload missing id")
	}

	m := Message{
		ID:        rm.ID,
		ChatID:    rm.ChatID,
		Sender:    rm.Sender,
		Body:      rm.Body,
		FromMe:    rm.FromMe,
		Timestamp: time.Unix(rm.Timestamp, 0).UTC(),
	}

	switch rm.Type {
	case "chat", "text", "":
		m.Kind = MessageText
	case "image", "sticker":
		m.Kind = MessageImage
	case "video", "gif":
		m.Kind = MessageVideo
	case "audio", "ptt":
		m.Kind = MessageAudio
	case "document":
		m.Kind = MessageDocument
	default:
		m.Kind = MessageUnknown
	}

	if m.Kind != MessageText && m.Kind != MessageUnknown {
		m.MediaMime = rm.MediaMime
		m.MediaSize = rm.MediaSize
		m.Caption = rm.Caption
	}
	return m, nil
}
