package main

import (
	"time"
)

type roomState int

const (
	stateLobby roomState = iota
	statePlaying
	statePresenting
)

const maxRoomSize = 10

func (s roomState) String() string {
	switch s {
	case stateLobby:
		return "lobby"
	case statePlaying:
		return "playing"
	case statePresenting:
		return "presenting"
	}
	return "unknown"
}

// member is one slot in a room's roster, in join order. Members are not
// removed on disconnect while a game is running; they are marked inactive so
// a reconnect can restore the slot and its book bookkeeping.
type member struct {
	playerID  string
	name      string
	key       string
	connected bool
}

// Room holds all state for one game. It is the unit of mutual exclusion:
// every mutation happens under the Manager's lock.
type Room struct {
	code     string
	members  []*member
	hostID   string
	settings Settings
	state    roomState

	page      int
	submitted map[string]bool
	books     map[string]*Book

	presenter   string
	presentPage int

	timer      *time.Timer
	lastActive time.Time
}

func newRoom(code string) *Room {
	return &Room{
		code:       code,
		settings:   defaultSettings(),
		submitted:  make(map[string]bool),
		lastActive: time.Now(),
	}
}

func (r *Room) findMember(playerID string) *member {
	for _, mem := range r.members {
		if mem.playerID == playerID {
			return mem
		}
	}
	return nil
}

func (r *Room) activeCount() int {
	n := 0
	for _, mem := range r.members {
		if mem.connected {
			n++
		}
	}
	return n
}

func (r *Room) isHost(playerID string) bool {
	return r.hostID != "" && r.hostID == playerID
}

func (r *Room) isPresenter(playerID string) bool {
	return r.presenter != "" && r.presenter == playerID
}

// addMember appends or reactivates a roster slot. The first member ever to
// join becomes host. The session key is kept on the slot so a player who
// lost their connection mid-game can prove the slot is theirs when
// rejoining.
func (r *Room) addMember(playerID, name, key string) {
	if existing := r.findMember(playerID); existing != nil {
		existing.connected = true
		existing.name = name
		existing.key = key
		return
	}
	r.members = append(r.members, &member{
		playerID:  playerID,
		name:      name,
		key:       key,
		connected: true,
	})
	if r.hostID == "" {
		r.hostID = playerID
	}
}

// dropMember marks the slot inactive while a game is running, or removes it
// entirely in the lobby. It reports whether the member was found.
func (r *Room) dropMember(playerID string) bool {
	mem := r.findMember(playerID)
	if mem == nil {
		return false
	}

	if r.state == stateLobby {
		for i, existing := range r.members {
			if existing.playerID == playerID {
				r.members = append(r.members[:i], r.members[i+1:]...)
				break
			}
		}
	} else {
		mem.connected = false
	}

	return true
}

// reassignHost picks the earliest-joined still-connected member, giving
// deterministic behavior instead of arbitrary selection. Returns the new
// host's player ID, or empty if no active members remain.
func (r *Room) reassignHost() string {
	for _, mem := range r.members {
		if mem.connected {
			r.hostID = mem.playerID
			return mem.playerID
		}
	}
	r.hostID = ""
	return ""
}

func (r *Room) userList(excludeID string) []userInfo {
	users := make([]userInfo, 0, len(r.members))
	for _, mem := range r.members {
		if mem.playerID == excludeID {
			continue
		}
		users = append(users, userInfo{
			ID:        mem.playerID,
			Name:      mem.name,
			Connected: mem.connected,
		})
	}
	return users
}

func (r *Room) touch() {
	r.lastActive = time.Now()
}

// getOrCreateRoom returns the room for a code, creating it in the lobby
// state with default settings and no host if absent.
func (m *Manager) getOrCreateRoom(code string) *Room {
	if room, ok := m.rooms[code]; ok {
		return room
	}
	room := newRoom(code)
	m.rooms[code] = room
	logf(m.cfg, "ROOMS: Created room %q", code)
	return room
}

// deleteRoom cancels any running timer and removes the room from the
// registry.
func (m *Manager) deleteRoom(room *Room) {
	m.stopRoundTimer(room)
	delete(m.rooms, room.code)
	logf(m.cfg, "ROOMS: Deleted room %q", room.code)
}
