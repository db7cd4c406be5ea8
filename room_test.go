package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstJoinerBecomesHost(t *testing.T) {
	m := newTestManager()
	first := newTestClient()
	second := newTestClient()

	joinAs(t, m, first, "aa01", "deadbeef", "Alice", "ABCD")
	joinAs(t, m, second, "bb02", "cafebabe", "Bob", "ABCD")

	room := m.rooms["ABCD"]
	require.NotNil(t, room)
	assert.Equal(t, "aa01", room.hostID)
	assert.True(t, room.isHost("aa01"))
	assert.False(t, room.isHost("bb02"))
}

func TestRoomCreatedInLobbyWithDefaults(t *testing.T) {
	m := newTestManager()
	c := newTestClient()
	joinAs(t, m, c, "aa01", "deadbeef", "Alice", "ABCD")

	room := m.rooms["ABCD"]
	require.NotNil(t, room)
	assert.Equal(t, stateLobby, room.state)
	assert.Equal(t, defaultSettings(), room.settings)
	assert.Nil(t, room.books)
}

func TestRoomFullRejectsJoin(t *testing.T) {
	m := newTestManager()

	for i := 0; i < maxRoomSize; i++ {
		c := newTestClient()
		joinAs(t, m, c, fmt.Sprintf("aa%02d", i), "deadbeef", "p", "ABCD")
		require.False(t, c.closed)
	}

	extra := newTestClient()
	joinAs(t, m, extra, "ff99", "deadbeef", "Late", "ABCD")

	msgs := drain(extra)
	kicks := messagesOfType(msgs, "kick")
	require.Len(t, kicks, 1)
	assert.Equal(t, "server full", kicks[0].(kickMessage).Reason)
	assert.True(t, extra.closed)
	assert.Len(t, m.rooms["ABCD"].members, maxRoomSize)
}

func TestJoinDuringGameRejected(t *testing.T) {
	m, clients, _ := startedGame(t)
	_ = clients

	late := newTestClient()
	joinAs(t, m, late, "ff99", "deadbeef", "Late", "ABCD")

	msgs := drain(late)
	kicks := messagesOfType(msgs, "kick")
	require.Len(t, kicks, 1)
	assert.Equal(t, "game in progress", kicks[0].(kickMessage).Reason)
	assert.True(t, late.closed)
}

func TestLobbyLeaveRemovesMember(t *testing.T) {
	m := newTestManager()
	first := newTestClient()
	second := newTestClient()
	joinAs(t, m, first, "aa01", "deadbeef", "Alice", "ABCD")
	joinAs(t, m, second, "bb02", "cafebabe", "Bob", "ABCD")

	m.handleDisconnect(second)

	room := m.rooms["ABCD"]
	require.NotNil(t, room)
	require.Len(t, room.members, 1)
	assert.Equal(t, "aa01", room.members[0].playerID)
}

func TestLastLeaverDeletesLobbyRoom(t *testing.T) {
	m := newTestManager()
	c := newTestClient()
	joinAs(t, m, c, "aa01", "deadbeef", "Alice", "ABCD")

	m.handleDisconnect(c)

	_, exists := m.rooms["ABCD"]
	assert.False(t, exists)
	assert.Empty(t, m.sessions)
}

func TestHostReassignmentPrefersJoinOrder(t *testing.T) {
	m := newTestManager()
	host := newTestClient()
	second := newTestClient()
	third := newTestClient()
	joinAs(t, m, host, "aa01", "deadbeef", "Alice", "ABCD")
	joinAs(t, m, second, "bb02", "cafebabe", "Bob", "ABCD")
	joinAs(t, m, third, "cc03", "c001d00d", "Carol", "ABCD")
	drain(second)
	drain(third)

	m.handleDisconnect(host)

	room := m.rooms["ABCD"]
	require.NotNil(t, room)
	assert.Equal(t, "bb02", room.hostID)

	// Remaining members are told about the new host.
	secondMsgs := drain(second)
	hosts := messagesOfType(secondMsgs, "userHost")
	require.Len(t, hosts, 1)
	assert.Equal(t, "bb02", hosts[0].(userHostMessage).ID)
	assert.True(t, hasMessage(secondMsgs, "userLeave"))
}

func TestHostReassignmentSkipsInactiveMembers(t *testing.T) {
	m, clients, room := startedGame(t)

	// Second player disconnects mid-game, then the host leaves: the host
	// role must skip the inactive slot and land on the third player.
	m.handleDisconnect(clients[1])
	m.handleDisconnect(clients[0])

	assert.Equal(t, "cc03", room.hostID)
	require.Len(t, room.members, 3)
	assert.False(t, room.members[0].connected)
	assert.False(t, room.members[1].connected)
	assert.True(t, room.members[2].connected)
}

func TestMidGameLeaveMarksInactive(t *testing.T) {
	m, clients, room := startedGame(t)

	m.handleDisconnect(clients[2])

	require.Len(t, room.members, 3)
	assert.False(t, room.members[2].connected)
	assert.Equal(t, 2, room.activeCount())
}

func TestMidGameReconnectRestoresSlot(t *testing.T) {
	m, clients, room := startedGame(t)
	m.handleDisconnect(clients[2])

	fresh := newTestClient()
	joinAs(t, m, fresh, "cc03", "c001d00d", "Carol", "ABCD")

	msgs := drain(fresh)
	require.True(t, hasMessage(msgs, "joined"))
	assert.True(t, room.members[2].connected)
	assert.Equal(t, statePlaying, room.state)

	// The book assignment still references the same identifier.
	_, inGame := m.bookForAuthor(room, "cc03")
	assert.True(t, inGame)
}

func TestMidGameRejoinWithWrongKeyRejected(t *testing.T) {
	m, clients, room := startedGame(t)
	m.handleDisconnect(clients[2])

	impostor := newTestClient()
	joinAs(t, m, impostor, "cc03", "0badf00d", "Carol", "ABCD")

	msgs := drain(impostor)
	kicks := messagesOfType(msgs, "kick")
	require.Len(t, kicks, 1)
	assert.Equal(t, "game in progress", kicks[0].(kickMessage).Reason)
	assert.False(t, room.members[2].connected)
}

func TestGetOrCreateRoomReturnsExisting(t *testing.T) {
	m := newTestManager()
	first := m.getOrCreateRoom("ABCD")
	second := m.getOrCreateRoom("ABCD")
	assert.Same(t, first, second)
	assert.Len(t, m.rooms, 1)
}

func TestNewRoomCodeShape(t *testing.T) {
	m := newTestManager()
	code := m.newRoomCode()
	assert.Len(t, code, 8)
	assert.Equal(t, code, sanitizeRoomCode(code))
}
