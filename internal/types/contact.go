package types

import (
	"encoding/json"
	"fmt"
)

// Contact is an address book entry known to the web client.
type Contact struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ShortName  string `json:"short_name"`
	Number     string `json:"number"`
	IsBusiness bool   `json:"is_business"`
	IsBlocked  bool   `json:"is_blocked"`
	IsMyself   bool   `json:"is_myself"`
}

type rawContact struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ShortName  string `json:"shortName"`
	Number     string `json:"number"`
	IsBusiness bool   `json:"isBusiness"`
	IsBlocked  bool   `json:"isBlocked"`
	IsMe       bool   `json:"isMe"`
}

// ContactFromPayload decodes a raw contact record.
func ContactFromPayload(raw json.RawMessage) (Contact, error) {
	var rc rawContact
	if err := json.Unmarshal(raw, &rc); err != nil {
		return Contact{}, fmt.Errorf("decode contact payload: %w", err)
	}
	if rc.ID == "" {
		return Contact{}, fmt.Errorf("contact payload missing id")
	}
	return Contact{
		ID:         rc.ID,
		Name:       rc.Name,
		ShortName:  rc.ShortName,
		Number:     rc.Number,
		IsBusiness: rc.IsBusiness,
		IsBlocked:  rc.IsBlocked,
		IsMyself:   rc.IsMe,
	}, nil
}

// ContactsFromPayload decodes a list of contact records, skipping entries
// that fail to decode.
func ContactsFromPayload(raw json.RawMessage) ([]Contact, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode contact list: %w", err)
	}
	contacts := make([]Contact, 0, len(items))
	for _, item := range items {
		c, err := ContactFromPayload(item)
		if err != nil {
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}
