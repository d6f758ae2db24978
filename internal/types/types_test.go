package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageFromPayload(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantKind MessageKind
		wantErr  bool
	}{
		{
			name:     "text message",
			payload:  `{"id":"m1","chatId":"123@c.us","body":"hi","type":"chat","t":1700000000}`,
			wantKind: MessageText,
		},
		{
			name:     "empty type defaults to text",
			payload:  `{"id":"m2","chatId":"123@c.us","body":"hi"}`,
			wantKind: MessageText,
		},
		{
			name:     "image with media fields",
			payload:  `{"id":"m3","chatId":"123@c.us","type":"image","mimetype":"image/jpeg","size":2048,"caption":"pic"}`,
			wantKind: MessageImage,
		},
		{
			name:     "voice note maps to audio",
			payload:  `{"id":"m4","chatId":"123@c.us","type":"ptt"}`,
			wantKind: MessageAudio,
		},
		{
			name:     "future type maps to unknown",
			payload:  `{"id":"m5","chatId":"123@c.us","type":"hologram"}`,
			wantKind: MessageUnknown,
		},
		{
			name:    "missing id rejected",
			payload: `{"chatId":"123@c.us","body":"hi"}`,
			wantErr: true,
		},
		{
			name:    "malformed json rejected",
			payload: `{"id":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := MessageFromPayload(json.RawMessage(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, m.Kind)
		})
	}
}

func TestMessageTimestamp(t *testing.T) {
	m, err := MessageFromPayload(json.RawMessage(`{"id":"m1","t":1700000000}`))
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), m.Timestamp)
}

func TestMessageMediaFieldsOnlyForMedia(t *testing.T) {
	m, err := MessageFromPayload(json.RawMessage(`{"id":"m1","type":"chat","mimetype":"image/jpeg","size":10}`))
	require.NoError(t, err)
	assert.Empty(t, m.MediaMime)
	assert.Zero(t, m.MediaSize)
}

func TestChatFromPayload(t *testing.T) {
	c, err := ChatFromPayload(json.RawMessage(`{"id":"555@c.us","name":"Ana","unreadCount":3,"t":1700000000}`))
	require.NoError(t, err)
	assert.False(t, c.IsGroup)
	assert.Equal(t, 3, c.Unread)
	assert.Zero(t, c.Participants)
}

func TestChatGroupInferredFromSuffix(t *testing.T) {
	c, err := ChatFromPayload(json.RawMessage(`{"id":"99-88@g.us","name":"Team","participants":12,"owner":"555@c.us"}`))
	require.NoError(t, err)
	assert.True(t, c.IsGroup)
	assert.Equal(t, 12, c.Participants)
	assert.Equal(t, "555@c.us", c.Owner)
}

func TestChatsFromPayloadSkipsBadEntries(t *testing.T) {
	raw := json.RawMessage(`[{"id":"1@c.us"},{"name":"no id"},{"id":"2@g.us"}]`)
	chats, err := ChatsFromPayload(raw)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "1@c.us", chats[0].ID)
	assert.True(t, chats[1].IsGroup)
}

func TestContactFromPayload(t *testing.T) {
	c, err := ContactFromPayload(json.RawMessage(`{"id":"555@c.us","name":"Ana","number":"+5511999","isBusiness":true}`))
	require.NoError(t, err)
	assert.Equal(t, "Ana", c.Name)
	assert.True(t, c.IsBusiness)

	_, err = ContactFromPayload(json.RawMessage(`{"name":"no id"}`))
	assert.Error(t, err)
}
