package client_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinboard/kinboard/client"
)

func TestCardJSON(t *testing.T) {
	start := time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

	t.Run("tagged encoding", func(t *testing.T) {
		data, err := json.Marshal(client.Card{
			Title:    "Dentist",
			StartsAt: start,
			Details:  client.Appointment{Location: "High St", Practitioner: "Dr. Lee"},
		})
		require.NoError(t, err)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))
		assert.Equal(t, "appointment", raw["type"])
		details, ok := raw["details"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Dr. Lee", details["practitioner"])
	})

	t.Run("decodes variant by type", func(t *testing.T) {
		var card client.Card
		err := json.Unmarshal([]byte(`{"id":"c1","title":"Lunch","starts_at":"2026-03-04T12:00:00Z","type":"message","details":{"from":"Sam","body":"See you at noon"}}`), &card)
		require.NoError(t, err)
		msg, ok := card.Details.(client.Note)
		require.True(t, ok, "got %T", card.Details)
		assert.Equal(t, "See you at noon", msg.Body)
		assert.Equal(t, "c1", card.ID)
	})

	t.Run("missing details decode to zero variant", func(t *testing.T) {
		var card client.Card
		require.NoError(t, json.Unmarshal([]byte(`{"title":"Party","starts_at":"2026-03-04T12:00:00Z","type":"event"}`), &card))
		assert.Equal(t, client.Event{}, card.Details)
	})

	t.Run("unknown type", func(t *testing.T) {
		var card client.Card
		err := json.Unmarshal([]byte(`{"title":"?","starts_at":"2026-03-04T12:00:00Z","type":"seance"}`), &card)
		assert.ErrorIs(t, err, client.ErrInvalidCard)
	})

	t.Run("nil details", func(t *testing.T) {
		_, err := json.Marshal(client.Card{Title: "Nothing"})
		assert.ErrorIs(t, err, client.ErrInvalidCard)
	})
}

func TestCardsCRUD(t *testing.T) {
	_, c := setup(t)
	ctx := t.Context()
	_, err := c.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	start := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	back := start.Add(72 * time.Hour)

	trip, err := c.CreateCard(ctx, client.Card{
		Title:    "Visit Edinburgh",
		StartsAt: start,
		Details:  client.Trip{Destination: "Edinburgh", Transport: "train", ReturnsAt: &back},
	})
	require.NoError(t, err)
	require.NotEmpty(t, trip.ID)
	assert.NotEmpty(t, trip.FamilyID)

	reminder, err := c.CreateCard(ctx, client.Card{
		Title:    "Take tablets",
		StartsAt: start.Add(-time.Hour),
		Details:  client.Reminder{Repeat: "daily"},
	})
	require.NoError(t, err)

	cards, err := c.ListCards(ctx)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, reminder.ID, cards[0].ID, "cards are ordered by start time")

	got, err := c.GetCard(ctx, trip.ID)
	require.NoError(t, err)
	details, ok := got.Details.(client.Trip)
	require.True(t, ok)
	require.NotNil(t, details.ReturnsAt)
	assert.True(t, back.Equal(*details.ReturnsAt))

	got.Title = "Visit Glasgow"
	got.Details = client.Trip{Destination: "Glasgow"}
	updated, err := c.UpdateCard(ctx, *got)
	require.NoError(t, err)
	assert.Equal(t, "Visit Glasgow", updated.Title)
	assert.Equal(t, client.Trip{Destination: "Glasgow"}, updated.Details)

	require.NoError(t, c.DeleteCard(ctx, trip.ID))
	_, err = c.GetCard(ctx, trip.ID)
	assert.ErrorIs(t, err, client.ErrRequest)

	_, err = c.CreateCard(ctx, client.Card{Title: "bare"})
	assert.ErrorIs(t, err, client.ErrInvalidCard)
	_, err = c.UpdateCard(ctx, client.Card{Title: "no id", Details: client.Event{}})
	assert.ErrorIs(t, err, client.ErrInvalidCard)
}
