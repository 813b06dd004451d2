package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrInvalidCard is returned for a card whose type or details are unusable.
var ErrInvalidCard = errors.New("invalid card")

// CardType discriminates the Details variants on the wire.
type CardType string

const (
	CardAppointment CardType = "appointment"
	CardEvent       CardType = "event"
	CardTrip        CardType = "trip"
	CardReminder    CardType = "reminder"
	CardMessage     CardType = "message"
)

// Details is the type-specific payload of a card. Exactly one variant is
// carried per card.
type Details interface {
	CardType() CardType
}

// Appointment is a scheduled visit, usually medical.
type Appointment struct {
	Location     string `json:"location,omitempty"`
	Practitioner string `json:"practitioner,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Event is a family gathering or outing.
type Event struct {
	Location string `json:"location,omitempty"`
	AllDay   bool   `json:"all_day,omitempty"`
}

// Trip is a journey with an optional return.
type Trip struct {
	Destination string     `json:"destination"`
	Transport   string     `json:"transport,omitempty"`
	ReturnsAt   *time.Time `json:"returns_at,omitempty"`
}

// Reminder is a recurring or one-off prompt.
type Reminder struct {
	Repeat string `json:"repeat,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Note is a message left by a family member.
type Note struct {
	From string `json:"from,omitempty"`
	Body string `json:"body"`
}

func (Appointment) CardType() CardType { return CardAppointment }
func (Event) CardType() CardType       { return CardEvent }
func (Trip) CardType() CardType        { return CardTrip }
func (Reminder) CardType() CardType    { return CardReminder }
func (Note) CardType() CardType        { return CardMessage }

// Card is one entry on the family calendar panel.
type Card struct {
	ID       string
	FamilyID string
	Title    string
	StartsAt time.Time
	EndsAt   *time.Time
	Details  Details
}

type cardJSON struct {
	ID       string          `json:"id,omitempty"`
	FamilyID string          `json:"family_id,omitempty"`
	Title    string          `json:"title"`
	StartsAt time.Time       `json:"starts_at"`
	EndsAt   *time.Time      `json:"ends_at,omitempty"`
	Type     CardType        `json:"type"`
	Details  json.RawMessage `json:"details,omitempty"`
}

// MarshalJSON encodes the card with its details under a "type" tag.
func (c Card) MarshalJSON() ([]byte, error) {
	if c.Details == nil {
		return nil, fmt.Errorf("%w: missing details", ErrInvalidCard)
	}
	details, err := json.Marshal(c.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cardJSON{
		ID:       c.ID,
		FamilyID: c.FamilyID,
		Title:    c.Title,
		StartsAt: c.StartsAt,
		EndsAt:   c.EndsAt,
		Type:     c.Details.CardType(),
		Details:  details,
	})
}

// UnmarshalJSON decodes a tagged card. Unknown types are rejected.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	details, err := decodeDetails(raw.Type, raw.Details)
	if err != nil {
		return err
	}
	*c = Card{
		ID:       raw.ID,
		FamilyID: raw.FamilyID,
		Title:    raw.Title,
		StartsAt: raw.StartsAt,
		EndsAt:   raw.EndsAt,
		Details:  details,
	}
	return nil
}

func decodeDetails(t CardType, data json.RawMessage) (Details, error) {
	switch t {
	case CardAppointment:
		return decodeVariant[Appointment](data)
	case CardEvent:
		return decodeVariant[Event](data)
	case CardTrip:
		return decodeVariant[Trip](data)
	case CardReminder:
		return decodeVariant[Reminder](data)
	case CardMessage:
		return decodeVariant[Note](data)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidCard, t)
	}
}

func decodeVariant[T Details](data json.RawMessage) (Details, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCard, err)
	}
	return v, nil
}

// ListCards returns the family's cards.
func (c *Client) ListCards(ctx context.Context) ([]Card, error) {
	var cards []Card
	if err := c.do(ctx, http.MethodGet, "/cards", nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// GetCard fetches one card by ID.
func (c *Client) GetCard(ctx context.Context, id string) (*Card, error) {
	var card Card
	if err := c.do(ctx, http.MethodGet, cardPath(id), nil, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// CreateCard stores a new card and returns it with its server-assigned ID.
func (c *Client) CreateCard(ctx context.Context, card Card) (*Card, error) {
	if card.Details == nil {
		return nil, fmt.Errorf("%w: missing details", ErrInvalidCard)
	}
	var out Card
	if err := c.do(ctx, http.MethodPost, "/cards", card, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCard replaces the card with the given ID.
func (c *Client) UpdateCard(ctx context.Context, card Card) (*Card, error) {
	if card.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidCard)
	}
	if card.Details == nil {
		return nil, fmt.Errorf("%w: missing details", ErrInvalidCard)
	}
	var out Card
	if err := c.do(ctx, http.MethodPut, cardPath(card.ID), card, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteCard removes a card.
func (c *Client) DeleteCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, cardPath(id), nil, nil)
}

func cardPath(id string) string {
	return "/cards/" + url.PathEscape(id)
}
