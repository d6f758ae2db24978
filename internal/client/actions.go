package client

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"wadrive/internal/browser"
	"wadrive/internal/events"
	"wadrive/internal/types"
)

// The outbound action gateway. Every action shares one contract: the
// session must be Ready with a live surface, otherwise ErrNotReady without
// touching the automation surface at all. Remote-side failures (bad chat
// ids and the like) are expected, not exceptional: they come back as
// empty/absent results with a logged diagnostic. Only precondition
// violations and transport faults surface as errors.

// actionResult is the discriminated result every shim call returns.
type actionResult struct {
	OK    bool            `json:"ok"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// readySurface enforces the gateway precondition.
func (c *Client) readySurface() (browser.Surface, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusReady || c.surface == nil {
		return nil, ErrNotReady
	}
	return c.surface, nil
}

// evalAction runs one gateway script and decodes its discriminated result.
// The bool reports remote-side success; a false with nil error is a logged
// remote failure.
func (c *Client) evalAction(ctx context.Context, action, js string, args ...interface{}) (json.RawMessage, bool, error) {
	surface, err := c.readySurface()
	if err != nil {
		return nil, false, err
	}

	res, err := surface.Eval(ctx, js, args...)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", action, err)
	}
	raw, err := res.MarshalJSON()
	if err != nil {
		return nil, false, fmt.Errorf("%s: read result: %w", action, err)
	}
	var out actionResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("%s: decode result: %w", action, err)
	}
	if !out.OK {
		c.log.Warn("remote action failed",
			zap.String("action", action), zap.String("reason", out.Error))
		return nil, false, nil
	}
	return out.Data, true, nil
}

// SendMessage sends a text message to a chat. On remote failure (unknown
// chat id, send rejected) it returns (nil, nil). On success the created
// message is returned and a message-created notification fires.
func (c *Client) SendMessage(ctx context.Context, chatID, body string) (*types.Message, error) {
	data, ok, err := c.evalAction(ctx, "send_message", sendMessageJS, chatID, body)
	if err != nil || !ok {
		return nil, err
	}

	msg, err := types.MessageFromPayload(data)
	if err != nil {
		c.log.Warn("sent message record unreadable", zap.Error(err))
		return nil, nil
	}
	msg.ChatID = chatID
	msg.FromMe = true

	c.events.Publish(events.MessageCreated{Message: msg})
	return &msg, nil
}

// Chats lists the account's conversations. Remote failure yields an empty
// slice.
func (c *Client) Chats(ctx context.Context) ([]types.Chat, error) {
	data, ok, err := c.evalAction(ctx, "list_chats", listChatsJS)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []types.Chat{}, nil
	}

	chats, err := types.ChatsFromPayload(data)
	if err != nil {
		c.log.Warn("chat list unreadable", zap.Error(err))
		return []types.Chat{}, nil
	}
	return chats, nil
}

// Contacts lists the account's address book. Remote failure yields an
// empty slice.
func (c *Client) Contacts(ctx context.Context) ([]types.Contact, error) {
	data, ok, err := c.evalAction(ctx, "list_contacts", listContactsJS)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []types.Contact{}, nil
	}

	contacts, err := types.ContactsFromPayload(data)
	if err != nil {
		c.log.Warn("contact list unreadable", zap.Error(err))
		return []types.Contact{}, nil
	}
	return contacts, nil
}

// SetAutoDownload toggles automatic media download.
func (c *Client) SetAutoDownload(ctx context.Context, enabled bool) error {
	_, _, err := c.evalAction(ctx, "set_auto_download", setAutoDownloadJS, enabled)
	return err
}

// SetBetaParticipation toggles multi-device beta opt-in.
func (c *Client) SetBetaParticipation(ctx context.Context, enabled bool) error {
	_, _, err := c.evalAction(ctx, "set_beta_participation", setBetaParticipationJS, enabled)
	return err
}
