package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealdossier/internal/domain"
	"dealdossier/internal/service"
)

func TestSessionHub_FiltersByUser(t *testing.T) {
	verifyNoLeaks(t)
	hub := service.NewSessionHub(nil)
	defer hub.Close()

	alice, bob := uuid.New(), uuid.New()
	aliceEvents, unsubAlice := hub.Subscribe(alice)
	defer unsubAlice()
	allEvents, unsubAll := hub.Subscribe(uuid.Nil)
	defer unsubAll()

	hub.Publish(domain.SessionSignedIn, bob, nil)
	hub.Publish(domain.SessionSignedOut, alice, nil)

	ev := <-aliceEvents
	assert.Equal(t, domain.SessionSignedOut, ev.Kind)
	assert.Equal(t, alice, ev.UserID)
	assert.Empty(t, aliceEvents)

	assert.Equal(t, bob, (<-allEvents).UserID)
	assert.Equal(t, alice, (<-allEvents).UserID)
}

func TestSessionHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := service.NewSessionHub(nil)
	events, unsubscribe := hub.Subscribe(uuid.Nil)

	unsubscribe()
	unsubscribe()
	_, open := <-events
	assert.False(t, open)

	hub.Publish(domain.SessionSignedIn, uuid.New(), nil)
}

func TestSessionHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := service.NewSessionHub(nil)
	events, unsubscribe := hub.Subscribe(uuid.Nil)
	defer unsubscribe()

	for i := 0; i < 100; i++ {
		hub.Publish(domain.SessionTokenRefreshed, uuid.New(), nil)
	}
	assert.Positive(t, len(events))
	assert.Less(t, len(events), 100)
}

func TestSessionHub_Close(t *testing.T) {
	hub := service.NewSessionHub(nil)
	events, _ := hub.Subscribe(uuid.Nil)

	hub.Close()
	hub.Close()
	_, open := <-events
	assert.False(t, open)

	late, unsubscribe := hub.Subscribe(uuid.Nil)
	require.NotNil(t, late)
	unsubscribe()
	_, open = <-late
	assert.False(t, open)
}
