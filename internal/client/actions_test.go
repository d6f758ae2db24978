package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wadrive/internal/events"
	"wadrive/internal/types"
)

// newReadyClient drives the fake through a restored-session authenticate so
// gateway calls are admitted.
func newReadyClient(t *testing.T, fake *fakeSurface) *Client {
	t.Helper()
	fake.authenticated = true
	c := newTestClient(fake, 0)
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Authenticate(context.Background(), time.Second))
	require.Equal(t, StatusReady, c.Status())
	t.Cleanup(func() { c.Destroy(context.Background()) })
	return c
}

func TestGatewayRejectsBeforeReady(t *testing.T) {
	fake := newFake()
	c := newTestClient(fake, 0)
	defer c.Destroy(context.Background())

	require.NoError(t, c.Initialize(context.Background()))

	_, err := c.SendMessage(context.Background(), "123@c.us", "hi")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = c.Chats(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = c.Contacts(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, c.SetAutoDownload(context.Background(), true), ErrNotReady)
	assert.ErrorIs(t, c.SetBetaParticipation(context.Background(), true), ErrNotReady)

	// Rejection happens before any page round trip.
	assert.Equal(t, 0, fake.actionEvals())
}

func TestGatewayRejectsAfterDestroy(t *testing.T) {
	fake := newFake()
	c := newReadyClient(t, fake)
	c.Destroy(context.Background())

	_, err := c.SendMessage(context.Background(), "123@c.us", "hi")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSendMessage(t *testing.T) {
	fake := newFake()
	fake.sendResult = `{"ok":true,"data":{"id":"true_123@c.us_AAA","type":"chat","body":"hi","chatId":"123@c.us","sender":"me","t":1726000000,"fromMe":true}}`
	c := newReadyClient(t, fake)
	rec := record(c, events.KindMessageCreated)

	msg, err := c.SendMessage(context.Background(), "123@c.us", "hi")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "true_123@c.us_AAA", msg.ID)
	assert.Equal(t, types.MessageText, msg.Kind)
	assert.Equal(t, "hi", msg.Body)
	assert.True(t, msg.FromMe)

	evs := rec.events()
	require.Len(t, evs, 1)
	assert.Equal(t, msg.ID, evs[0].(events.MessageCreated).Message.ID)
}

func TestSendMessageRemoteFailure(t *testing.T) {
	fake := newFake()
	fake.sendResult = `{"ok":false,"error":"chatId not found"}`
	c := newReadyClient(t, fake)
	rec := record(c, events.KindMessageCreated)

	// Remote refusal degrades to an empty result, not an error.
	msg, err := c.SendMessage(context.Background(), "nope@c.us", "hi")
	assert.NoError(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, 0, rec.count(events.KindMessageCreated))
}

func TestSendMessageTransportFault(t *testing.T) {
	fake := newFake()
	c := newReadyClient(t, fake)
	fake.mu.Lock()
	fake.actionErr = errors.New("page crashed")
	fake.mu.Unlock()

	_, err := c.SendMessage(context.Background(), "123@c.us", "hi")
	assert.Error(t, err)
}

func TestChats(t *testing.T) {
	fake := newFake()
	fake.chatsResult = `{"ok":true,"data":[
		{"id":"123@c.us","name":"Ada","unreadCount":2,"t":1726000000},
		{"id":"456@g.us","name":"Team","isGroup":true}
	]}`
	c := newReadyClient(t, fake)

	chats, err := c.Chats(context.Background())
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "Ada", chats[0].Name)
	assert.False(t, chats[0].IsGroup)
	assert.Equal(t, 2, chats[0].Unread)
	assert.True(t, chats[1].IsGroup)
}

func TestChatsRemoteFailureReturnsEmpty(t *testing.T) {
	fake := newFake()
	fake.chatsResult = `{"ok":false,"error":"store not loaded"}`
	c := newReadyClient(t, fake)

	chats, err := c.Chats(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, chats)
}

func TestContacts(t *testing.T) {
	fake := newFake()
	fake.contactsResult = `{"ok":true,"data":[
		{"id":"123@c.us","name":"Ada Lovelace","shortName":"Ada","number":"123","isBusiness":true}
	]}`
	c := newReadyClient(t, fake)

	contacts, err := c.Contacts(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Ada Lovelace", contacts[0].Name)
	assert.Equal(t, "Ada", contacts[0].ShortName)
	assert.Equal(t, "123", contacts[0].Number)
	assert.True(t, contacts[0].IsBusiness)
}

func TestContactsRemoteFailureReturnsEmpty(t *testing.T) {
	fake := newFake()
	fake.contactsResult = `{"ok":false,"error":"store not loaded"}`
	c := newReadyClient(t, fake)

	contacts, err := c.Contacts(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, contacts)
}

func TestToggles(t *testing.T) {
	fake := newFake()
	c := newReadyClient(t, fake)

	assert.NoError(t, c.SetAutoDownload(context.Background(), false))
	assert.NoError(t, c.SetBetaParticipation(context.Background(), true))
	assert.Equal(t, 2, fake.actionEvals())
}

func TestTogglesRemoteFailureIsSilent(t *testing.T) {
	fake := newFake()
	fake.toggleResult = `{"ok":false,"error":"settings unavailable"}`
	c := newReadyClient(t, fake)

	assert.NoError(t, c.SetAutoDownload(context.Background(), true))
}
