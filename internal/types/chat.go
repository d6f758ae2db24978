package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Chat is a conversation the account participates in. IsGroup discriminates
// the group subtype; group ids carry the "@g.us" server suffix.
type Chat struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	IsGroup      bool      `json:"is_group"`
	Unread       int       `json:"unread"`
	Archived     bool      `json:"archived"`
	Pinned       bool      `json:"pinned"`
	Muted        bool      `json:"muted"`
	LastActivity time.Time `json:"last_activity"`

	// Group-only fields.
	Participants int    `json:"participants,omitempty"`
	Owner        string `json:"owner,omitempty"`
}

type rawChat struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsGroup      bool   `json:"isGroup"`
	Unread       int    `json:"unreadCount"`
	Archived     bool   `json:"archived"`
	Pinned       bool   `json:"pinned"`
	Muted        bool   `json:"muted"`
	Timestamp    int64  `json:"t"`
	Participants int    `json:"participants"`
	Owner        string `json:"owner"`
}

// ChatFromPayload decodes a raw chat record, inferring the group subtype
// from the id suffix when the payload does not say.
func ChatFromPayload(raw json.RawMessage) (Chat, error) {
	var rc rawChat
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Chat{}, fmt.Errorf("decode chat payload: %w", err)
	}
	if rc.ID == "" {
		return Chat{}, fmt.Errorf("chat payload missing id")
	}

	c := Chat{
		ID:           rc.ID,
		Name:         rc.Name,
		IsGroup:      rc.IsGroup || strings.HasSuffix(rc.ID, "@g.us"),
		Unread:       rc.Unread,
		Archived:     rc.Archived,
		Pinned:       rc.Pinned,
		Muted:        rc.Muted,
		LastActivity: time.Unix(rc.Timestamp, 0).UTC(),
	}
	if c.IsGroup {
		c.Participants = rc.Participants
		c.Owner = rc.Owner
	}
	return c, nil
}

// ChatsFromPayload decodes a list of chat records, skipping entries that
// fail to decode.
func ChatsFromPayload(raw json.RawMessage) ([]Chat, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode chat list: %w", err)
	}
	chats := make([]Chat, 0, len(items))
	for _, item := range items {
		c, err := ChatFromPayload(item)
		if err != nil {
			continue
		}
		chats = append(chats, c)
	}
	return chats, nil
}
