// Storybox game server
//
// Players join a room by code and each start a book. Every round, the books
// rotate: each player writes a passage or draws a picture continuing the
// book they were handed, alternating between the two modes. Once all pages
// are filled, the finished books are presented one at a time.
//
// Features:
// - WebSockets per room: /play/:roomcode and /play/:roomcode/ws
// - Rooms created on first join; first member becomes host
// - Identity survives reconnects via a client-held identifier and secret key
// - Host-gated settings with server-side constraint validation
// - Page assignment by cyclic rotation or repaired random shuffle
// - Per-page submission barrier with optional countdown timers
// - Host-driven presentation with a hand-off to each book's owner
// - Rooms auto-reaped after a configurable idle timeout
// - In-browser QR button to share the current room, backed by go-qrcode

package main

import (
	"crypto/rand"
	_ "embed"
	"encoding/json"
	"log"
	mathrand "math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Client is one websocket connection. Its identity is not known until the
// first joinRoom message arrives.
type Client struct {
	conn   *websocket.Conn
	send   chan any
	connID string
	closed bool
}

// shutdown closes the outbound channel, which drains and closes the
// connection via the write pump. Callers must hold the Manager lock.
func (c *Client) shutdown() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Manager owns the session registry and the room registry. All mutations of
// either, and of any room's state, happen under mu: handlers run to
// completion before the next event for the same room is processed.
type Manager struct {
	cfg *Config

	mu       sync.Mutex
	sessions map[string]*Session
	rooms    map[string]*Room

	rng *mathrand.Rand
}

func newManager(cfg *Config) *Manager {
	m := &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		rooms:    make(map[string]*Room),
		rng:      mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}
	if cfg.sessionTimeout > 0 {
		go m.reaperLoop()
	}
	return m
}

// handleJoinRoom resolves identity arbitration and room admission for a new
// connection.
func (m *Manager) handleJoinRoom(c *Client, msg joinRoomMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[c.connID]; ok {
		// a connection joins exactly once
		m.disconnect(c)
		return
	}

	playerID := sanitizeIdentifier(msg.ID)
	key := sanitizeKey(msg.Key)
	name := sanitizeText(msg.Name, maxNameLength)
	code := sanitizeRoomCode(msg.RoomCode)

	if playerID == "" || code == "" {
		m.kick(c, "invalid room code")
		return
	}

	outcome, evicted := m.arbitrate(playerID, key)
	if outcome == joinRejected {
		logf(m.cfg, "ROOMS: Rejected duplicate identity %q", playerID)
		c.shutdown()
		return
	}

	// An evicted session may have been in a different room than the one
	// this connection is joining.
	if outcome == joinReconnect && evicted.RoomCode != code {
		m.detachFromRoom(evicted)
	}

	room := m.getOrCreateRoom(code)
	room.touch()

	mem := room.findMember(playerID)
	reconnecting := outcome == joinReconnect && evicted.RoomCode == code
	if mem != nil && !mem.connected && keysMatch(mem.key, key) {
		reconnecting = true
	}

	if !reconnecting {
		if room.state != stateLobby {
			logf(m.cfg, "ROOM: Refused %q joining room %q in state %s", playerID, code, room.state)
			m.kick(c, "game in progress")
			return
		}
		if room.activeCount() >= maxRoomSize {
			m.kick(c, "server full")
			return
		}
	}

	session := &Session{
		ConnID:   c.connID,
		PlayerID: playerID,
		Key:      key,
		Name:     name,
		RoomCode: code,
		client:   c,
	}
	m.sessions[c.connID] = session
	room.addMember(playerID, name, key)

	m.sendTo(c, joinedMessage{
		Type:     "joined",
		RoomCode: code,
		Users:    room.userList(playerID),
		Host:     room.hostID,
		Settings: room.settings,
	})

	event := "userJoin"
	if reconnecting {
		event = "userReconnect"
	}
	m.broadcastExcept(room, playerID, userJoinMessage{
		Type: event,
		ID:   playerID,
		Name: name,
	})

	logf(m.cfg, "ROOMS: Player %q joined room %q (%s)", playerID, code, event)
}

// handleDisconnect is invoked when a connection's read pump exits. Evicted
// connections have no session entry left, so this is a no-op for them.
func (m *Manager) handleDisconnect(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnect(c)
}

// disconnect removes the client's session and detaches it from its room.
// Callers must hold the Manager lock.
func (m *Manager) disconnect(c *Client) {
	session, ok := m.sessions[c.connID]
	if !ok {
		c.shutdown()
		return
	}
	m.removeSession(session)
	m.detachFromRoom(session)
}

// detachFromRoom applies the membership consequences of a departed session:
// the slot is freed or marked inactive, the host role is reassigned to the
// earliest-joined active member, an empty room is deleted, and a round
// waiting only on the departed player advances.
func (m *Manager) detachFromRoom(session *Session) {
	room, ok := m.rooms[session.RoomCode]
	if !ok {
		return
	}
	room.touch()

	m.broadcast(room, userLeaveMessage{Type: "userLeave", ID: session.PlayerID})

	if !room.dropMember(session.PlayerID) {
		return
	}

	if room.activeCount() == 0 {
		m.deleteRoom(room)
		return
	}

	if room.isHost(session.PlayerID) {
		newHost := room.reassignHost()
		m.broadcast(room, userHostMessage{Type: "userHost", ID: newHost})
		logf(m.cfg, "ROOMS: Host of room %q reassigned to %q", room.code, newHost)
	}

	if room.state == statePlaying {
		m.checkBarrier(room)
	}
}

// authorize resolves a connection to its session and room, verifying the
// per-action secret key. A missing session, a key mismatch, or a vanished
// room is a protocol violation and the connection is closed. Callers must
// hold the Manager lock.
func (m *Manager) authorize(c *Client, key string) (*Session, *Room) {
	session, ok := m.sessions[c.connID]
	if !ok || !keysMatch(session.Key, key) {
		m.disconnect(c)
		return nil, nil
	}

	room, ok := m.rooms[session.RoomCode]
	if !ok {
		m.disconnect(c)
		return nil, nil
	}

	return session, room
}

// kick sends a reason the client can display, then disconnects. The write
// pump drains queued messages before closing the connection.
func (m *Manager) kick(c *Client, reason string) {
	m.sendTo(c, kickMessage{Type: "kick", Reason: reason})
	m.disconnect(c)
}

func (m *Manager) sendTo(c *Client, msg any) {
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		c.shutdown()
	}
}

func (m *Manager) broadcast(room *Room, msg any) {
	for _, session := range m.sessions {
		if session.RoomCode == room.code {
			m.sendTo(session.client, msg)
		}
	}
}

func (m *Manager) broadcastExcept(room *Room, playerID string, msg any) {
	for _, session := range m.sessions {
		if session.RoomCode == room.code && session.PlayerID != playerID {
			m.sendTo(session.client, msg)
		}
	}
}

// newRoomCode generates a crypto-random room code and ensures it doesn't
// collide with existing rooms.
func (m *Manager) newRoomCode() string {
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = roomCodeLetters[int(buf[i])%len(roomCodeLetters)]
		}
		code := string(out)

		m.mu.Lock()
		_, exists := m.rooms[code]
		m.mu.Unlock()

		if !exists {
			return code
		}
	}
}

// reaperLoop periodically closes rooms that have been idle longer than the
// configured session timeout, disconnecting any remaining members.
func (m *Manager) reaperLoop() {
	ticker := time.NewTicker(m.cfg.sessionTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-m.cfg.sessionTimeout)

		m.mu.Lock()
		for code, room := range m.rooms {
			if !room.lastActive.Before(cutoff) {
				continue
			}
			for _, session := range m.sessions {
				if session.RoomCode == code {
					m.removeSession(session)
				}
			}
			m.deleteRoom(room)
		}
		m.mu.Unlock()
	}
}

type envelope struct {
	Type string `json:"type"`
}

// dispatch validates and routes one inbound message. Required fields are
// checked before any state mutation: a message without its key has no
// legitimate source, so the connection is closed.
func (m *Manager) dispatch(c *Client, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.handleDisconnect(c)
		return
	}

	switch env.Type {
	case "joinRoom":
		var msg joinRoomMessage
		if json.Unmarshal(data, &msg) != nil || msg.ID == "" || msg.Key == "" || msg.RoomCode == "" {
			m.mu.Lock()
			m.kick(c, "invalid room code")
			m.mu.Unlock()
			return
		}
		m.handleJoinRoom(c, msg)
	case "settings":
		var msg settingsMessage
		if json.Unmarshal(data, &msg) != nil || msg.Key == "" || msg.Settings == nil {
			m.handleDisconnect(c)
			return
		}
		m.handleSettings(c, msg)
	case "startGame":
		var msg startGameMessage
		if json.Unmarshal(data, &msg) != nil || msg.Key == "" || msg.Settings == nil {
			m.handleDisconnect(c)
			return
		}
		m.handleStartGame(c, msg)
	case "updateTitle":
		var msg updateTitleMessage
		if json.Unmarshal(data, &msg) != nil || msg.Key == "" {
			m.handleDisconnect(c)
			return
		}
		m.handleUpdateTitle(c, msg)
	case "submitPage":
		var msg submitPageMessage
		if json.Unmarshal(data, &msg) != nil || msg.Key == "" || msg.Mode == "" {
			m.handleDisconnect(c)
			return
		}
		m.handleSubmitPage(c, msg)
	case "presentBook":
		var msg presentBookMessage
		if json.Unmarshal(data, &msg) != nil || msg.Key == "" || msg.Book == "" {
			m.handleDisconnect(c)
			return
		}
		m.handlePresentBook(c, msg)
	case "presentForward", "presentBack", "presentOverride", "presentFinish", "finish":
		var msg keyedMessage
		if json.Unmarshal(data, &msg) != nil || msg.Key == "" {
			m.handleDisconnect(c)
			return
		}
		switch env.Type {
		case "presentForward":
			m.handlePresentStep(c, msg, true)
		case "presentBack":
			m.handlePresentStep(c, msg, false)
		case "presentOverride":
			m.handlePresentOverride(c, msg)
		case "presentFinish":
			m.handlePresentFinish(c, msg)
		case "finish":
			m.handleFinish(c, msg)
		}
	default:
		// ignore unknown types
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveWS upgrades a connection and runs its pumps. No session exists until
// the client sends joinRoom.
func serveWS(cfg *Config, m *Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:   conn,
			send:   make(chan any, 8),
			connID: uuid.NewString(),
		}

		go client.writePump()
		client.readPump(m)
	}
}

func (c *Client) readPump(m *Manager) {
	defer func() {
		m.handleDisconnect(c)
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		m.dispatch(c, data)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roomCode := ps.ByName("roomcode")
	if roomCode == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../:roomcode/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed storybox/index.html
var indexHTML []byte

//go:embed storybox/app.css
var storyboxCSS []byte

//go:embed storybox/app.js
var storyboxJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(storyboxCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(storyboxJS)
	}
}

// redirectNewRoom handles GET /path by generating a new random room code
// (with server-side collision detection) and redirecting to /path/:roomcode.
func redirectNewRoom(cfg *Config, path string, m *Manager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		roomCode := m.newRoomCode()
		logf(cfg, "ROOMS: Redirecting to new room %s/%s", path, roomCode)
		http.Redirect(w, r, path+"/"+roomCode, http.StatusTemporaryRedirect)
	}
}

// registerStorybox sets up routes so that:
//   - $path                  → redirects to a new random room (8-char code)
//   - $path/:roomcode        → HTML client
//   - $path/:roomcode/ws     → WebSocket for that room
//   - $path/:roomcode/qr     → PNG QR code for that room URL
func registerStorybox(cfg *Config, path string, mux *httprouter.Router, m *Manager) {
	// Root path → redirect to new random room
	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, cfg.prefix+path, m))

	// Per-room client view (HTML)
	mux.GET(cfg.prefix+path+"/:roomcode", getIndexHandler(cfg))

	// Shared assets (no room code in route)
	mux.GET(cfg.prefix+"/assets/storybox/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/storybox/app.js", getJsHandler(cfg))

	// Per-room websocket
	mux.GET(cfg.prefix+path+"/:roomcode/ws", serveWS(cfg, m))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:roomcode/qr", qrHandler)
}
