package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundDuration(t *testing.T) {
	settings := defaultSettings()
	settings["timeWrite"] = "5"
	settings["timeDraw"] = "0"

	assert.Equal(t, 5*time.Minute+timerGrace, roundDuration(settings, modeWrite))
	assert.Equal(t, time.Duration(0), roundDuration(settings, modeDraw))

	settings["timeDraw"] = "10"
	assert.Equal(t, 10*time.Minute+timerGrace, roundDuration(settings, modeDraw))
}

func TestNoTimerWhenMinutesZero(t *testing.T) {
	m, _, room := startedGame(t)
	require.Equal(t, "0", room.settings["timeWrite"])

	m.startRoundTimer(room, modeWrite)

	assert.Nil(t, room.timer)
}

func TestStartRoundTimerReplacesPrevious(t *testing.T) {
	m, _, room := startedGame(t)
	room.settings["timeWrite"] = "30"
	room.settings["timeDraw"] = "30"

	m.startRoundTimer(room, modeWrite)
	first := room.timer
	require.NotNil(t, first)

	m.startRoundTimer(room, modeDraw)
	assert.NotNil(t, room.timer)
	assert.NotSame(t, first, room.timer)

	m.stopRoundTimer(room)
	assert.Nil(t, room.timer)
	m.stopRoundTimer(room)
	assert.Nil(t, room.timer)
}

func TestTimerExpiryForcesEmptySubmissions(t *testing.T) {
	m, clients, room := startedGame(t)

	submit(m, clients[0], "deadbeef", modeWrite, "only one submitted")
	require.Equal(t, 0, room.page)
	for _, c := range clients {
		drain(c)
	}

	// Invoke the expiry path directly rather than sleeping on a real timer.
	m.handleTimerExpiry("ABCD", 0)

	assert.Equal(t, 1, room.page)
	assert.Equal(t, "only one submitted", room.books["aa01"].Pages[0].Value)
	assert.Equal(t, emptyWritePlaceholder, room.books["bb02"].Pages[0].Value)
	assert.Equal(t, emptyWritePlaceholder, room.books["cc03"].Pages[0].Value)

	msgs := drain(clients[1])
	assert.True(t, hasMessage(msgs, "timerFinish"))
	assert.True(t, hasMessage(msgs, "pageForward"))
}

func TestTimerExpiryUsesEmptyValueForDrawings(t *testing.T) {
	m, clients, room := startedGame(t)
	advanceToDrawPage(t, m, clients, room)

	m.handleTimerExpiry("ABCD", 1)

	assert.Equal(t, 2, room.page)
	for _, book := range room.books {
		page := book.Pages[1]
		assert.True(t, page.Filled)
		assert.Empty(t, page.Value)
		assert.Equal(t, modeDraw, page.Mode)
	}
}

func TestStaleTimerExpiryIgnored(t *testing.T) {
	m, clients, room := startedGame(t)
	advanceToDrawPage(t, m, clients, room)
	require.Equal(t, 1, room.page)

	// A callback armed for page 0 fires after the room has moved on.
	m.handleTimerExpiry("ABCD", 0)

	assert.Equal(t, 1, room.page)
	assert.Empty(t, room.submitted)
}

func TestTimerExpiryForUnknownRoomIgnored(t *testing.T) {
	m := newTestManager()

	m.handleTimerExpiry("ZZZZ", 0)

	assert.Empty(t, m.rooms)
}

func TestTimerExpiryInLobbyIgnored(t *testing.T) {
	m := newTestManager()
	host := newTestClient()
	joinAs(t, m, host, "aa01", "deadbeef", "Alice", "ABCD")

	m.handleTimerExpiry("ABCD", 0)

	assert.Equal(t, stateLobby, m.rooms["ABCD"].state)
}
