package main

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"strings"
)

// Drawings are canvas exports at a fixed raster size. Browsers on scaled
// displays can be off by a few pixels, so dimensions within a small
// tolerance are accepted rather than rejecting the whole submission.
const (
	pngDataURIPrefix = "data:image/png;base64,"
	expectedWidth    = 800
	expectedHeight   = 600
	widthTolerance   = 8
	heightTolerance  = 6
)

const emptyWritePlaceholder = "..."

func intAbs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// validDrawing reports whether a submitted value is a base64 PNG data URI of
// acceptable dimensions. Only the image header is decoded.
func validDrawing(value string) bool {
	if !strings.HasPrefix(value, pngDataURIPrefix) {
		return false
	}

	raw, err := base64.StdEncoding.DecodeString(value[len(pngDataURIPrefix):])
	if err != nil {
		return false
	}

	dims, err := png.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return false
	}

	return intAbs(dims.Width-expectedWidth) < widthTolerance &&
		intAbs(dims.Height-expectedHeight) < heightTolerance
}

// handleSettings applies a lobby settings change. Only the host may change
// settings, only while the room is in the lobby, and the proposed object is
// applied all-or-nothing.
func (m *Manager) handleSettings(c *Client, msg settingsMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, room := m.authorize(c, msg.Key)
	if session == nil || room == nil {
		return
	}
	room.touch()

	if !room.isHost(session.PlayerID) || room.state != stateLobby || !validateSettings(msg.Settings) {
		m.kick(c, "invalid settings")
		return
	}

	room.settings = msg.Settings.clone()
	m.broadcastExcept(room, session.PlayerID, settingsUpdateMessage{
		Type:     "settings",
		Settings: room.settings,
	})
}

// handleStartGame transitions a lobby to playing: the settings are frozen,
// the page-assignment matrix is generated for the active roster, and the
// first countdown starts.
func (m *Manager) handleStartGame(c *Client, msg startGameMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, room := m.authorize(c, msg.Key)
	if session == nil || room == nil {
		return
	}
	room.touch()

	if !room.isHost(session.PlayerID) || room.state != stateLobby ||
		room.activeCount() < 2 || !validateSettings(msg.Settings) {
		m.disconnect(c)
		return
	}

	room.settings = msg.Settings.clone()
	room.state = statePlaying
	room.page = 0
	room.submitted = make(map[string]bool)

	players := make([]string, 0, len(room.members))
	names := make(map[string]string, len(room.members))
	for _, mem := range room.members {
		if mem.connected {
			players = append(players, mem.playerID)
			names[mem.playerID] = mem.name
		}
	}

	assignments := generateAssignments(players, room.settings.pageCount(), room.settings["pageOrder"], m.rng)

	room.books = make(map[string]*Book, len(assignments))
	for owner, authors := range assignments {
		room.books[owner] = newBook(owner, names[owner], authors, room.settings.pageCount())
	}

	logf(m.cfg, "GAME: Started in room %q with %d players", room.code, len(players))

	m.broadcast(room, startGameBroadcast{
		Type:  "startGame",
		Books: assignments,
		Start: room.settings.firstPage(),
	})
	m.startRoundTimer(room, room.settings.firstPage())
}

// handleUpdateTitle renames the sender's own book. Titles are only mutable
// until the first page is committed.
func (m *Manager) handleUpdateTitle(c *Client, msg updateTitleMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, room := m.authorize(c, msg.Key)
	if session == nil || room == nil {
		return
	}
	room.touch()

	if room.state != statePlaying || room.page != 0 {
		return
	}

	book, ok := room.books[session.PlayerID]
	if !ok {
		return
	}

	title := sanitizeText(msg.Title, maxTitleLength)
	if title == "" {
		title = session.Name + "'s book"
	}

	book.Title = title
	m.broadcast(room, titleMessage{
		Type:  "title",
		ID:    session.PlayerID,
		Title: title,
	})
}

// handleSubmitPage accepts one page payload per member per page index. The
// expected mode is derived from the page parity, never from the client's
// claim; a disagreeing mode or a malformed drawing is discarded and an empty
// value broadcast in its place, but the submission still counts toward the
// barrier so the round cannot stall.
func (m *Manager) handleSubmitPage(c *Client, msg submitPageMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, room := m.authorize(c, msg.Key)
	if session == nil || room == nil {
		return
	}
	room.touch()

	if room.state != statePlaying {
		return
	}
	if room.submitted[session.PlayerID] {
		return
	}
	if _, inGame := m.bookForAuthor(room, session.PlayerID); !inGame {
		return
	}

	expected := room.settings.expectedMode(room.page)

	var value string
	switch {
	case msg.Mode != expected:
		logf(m.cfg, "GAME: Unexpected mode %q from %q in room %q (expected %q)",
			msg.Mode, session.PlayerID, room.code, expected)
	case expected == modeWrite:
		value = sanitizeText(msg.Value, maxTextLength)
		if value == "" {
			value = emptyWritePlaceholder
		}
	case expected == modeDraw:
		if validDrawing(msg.Value) {
			value = msg.Value
		} else {
			logf(m.cfg, "GAME: Rejected drawing from %q in room %q", session.PlayerID, room.code)
		}
	}

	m.commitPage(room, session.PlayerID, value)
	m.checkBarrier(room)
}

// bookForAuthor finds the book whose current page is assigned to a player.
func (m *Manager) bookForAuthor(room *Room, playerID string) (*Book, bool) {
	for _, book := range room.books {
		if room.page < len(book.Owners) && book.Owners[room.page] == playerID {
			return book, true
		}
	}
	return nil, false
}

// commitPage stores a submission in its assigned book slot, broadcasts it,
// and marks the author as submitted for the current page.
func (m *Manager) commitPage(room *Room, playerID, value string) {
	book, ok := m.bookForAuthor(room, playerID)
	if !ok {
		return
	}

	mode := room.settings.expectedMode(room.page)
	book.Pages[room.page] = Page{
		Author: playerID,
		Mode:   mode,
		Value:  value,
		Filled: true,
	}
	room.submitted[playerID] = true

	m.broadcast(room, pageMessage{
		Type:   "page",
		ID:     book.Owner,
		Page:   room.page,
		Value:  value,
		Author: playerID,
		Mode:   mode,
	})
}

// checkBarrier advances the round once every active member has submitted for
// the current page. Submissions from members who have since disconnected
// still stand.
func (m *Manager) checkBarrier(room *Room) {
	if room.state != statePlaying {
		return
	}

	for _, mem := range room.members {
		if mem.connected && !room.submitted[mem.playerID] {
			return
		}
	}
	if room.activeCount() == 0 {
		return
	}

	room.submitted = make(map[string]bool)
	room.page++

	if room.page == room.settings.pageCount() {
		room.state = statePresenting
		room.presenter = ""
		room.presentPage = -1
		m.stopRoundTimer(room)
		logf(m.cfg, "GAME: Room %q finished all pages, presenting", room.code)
		m.broadcast(room, simpleBroadcast{Type: "startPresenting"})
		return
	}

	next := room.settings.expectedMode(room.page)
	m.broadcast(room, simpleBroadcast{Type: "pageForward"})
	m.startRoundTimer(room, next)
}

// forceMissingSubmissions commits an empty page for every active member that
// has not submitted, then re-checks the barrier. Invoked on timer expiry.
func (m *Manager) forceMissingSubmissions(room *Room) {
	if room.state != statePlaying {
		return
	}

	var placeholder string
	if room.settings.expectedMode(room.page) == modeWrite {
		placeholder = emptyWritePlaceholder
	}

	missing := make([]string, 0, len(room.members))
	for _, mem := range room.members {
		if mem.connected && !room.submitted[mem.playerID] {
			missing = append(missing, mem.playerID)
		}
	}

	for _, playerID := range missing {
		m.commitPage(room, playerID, placeholder)
	}
	m.checkBarrier(room)
}

// handlePresentBook begins presenting a book. Host only; the book's owner
// becomes the presenter and the cursor starts on the title card.
func (m *Manager) handlePresentBook(c *Client, msg presentBookMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, room := m.authorize(c, msg.Key)
	if session == nil || room == nil {
		return
	}
	room.touch()

	if !room.isHost(session.PlayerID) {
		m.disconnect(c)
		return
	}
	if room.state != statePresenting {
		return
	}

	bookID := sanitizeIdentifier(msg.Book)
	book, ok := room.books[bookID]
	if !ok {
		return
	}

	room.presentPage = -1
	room.presenter = bookID
	book.Presented = true

	m.broadcast(room, presentBookBroadcast{
		Type:      "presentBook",
		Book:      bookID,
		Presenter: room.presenter,
	})
}

// handlePresentStep moves the presentation cursor. Presenter only, bounded
// to the title card on one end and the last page on the other.
func (m *Manager) handlePresentStep(c *Client, msg keyedMessage, forward bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, room := m.authorize(c, msg.Key)
	if session == nil || room == nil {
		return
	}
	room.touch()

	if !room.isPresenter(session.PlayerID) {
		m.disconnect(c)
		return
	}
	if room.state != statePresenting {
		return
	}

	if forward {
		if room.presentPage < room.settings.pageCount()-1 {
			room.presentPage++
			m.broadcast(room, simpleBroadcast{Type: "presentForward"})
		}
	} else {
		if room.presentPage > -1 {
			room.presentPage--
			m.broadcast(room, simpleBroadcast{Type: "presentBack"})
		}
	}
}

// handlePresentOverride lets the host reclaim the presenter role at any
// point during presentation.
func (m *Manager) handlePresentOverride(c *Client, msg keyedMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, room := m.authorize(c, msg.Key)
	if session == nil || room == nil {
		return
	}
	room.touch()

	if !room.isHost(session.PlayerID) {
		m.disconnect(c)
		return
	}
	if room.state != statePresenting {
		return
	}

	room.presenter = session.PlayerID
	m.broadcast(room, simpleBroadcast{Type: "presentOverride"})
}

// handlePresentFinish returns the room to the presentation menu. The book
// list survives, with already-presented books still marked.
func (m *Manager) handlePresentFinish(c *Client, msg keyedMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, room := m.authorize(c, msg.Key)
	if session == nil || room == nil {
		return
	}
	room.touch()

	if !room.isPresenter(session.PlayerID) {
		m.disconnect(c)
		return
	}

	room.presenter = ""
	room.presentPage = -1
	m.broadcast(room, simpleBroadcast{Type: "presentFinish"})
}

// handleFinish ends the game: the room returns to the lobby with membership
// and settings preserved, and the books are cleared.
func (m *Manager) handleFinish(c *Client, msg keyedMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, room := m.authorize(c, msg.Key)
	if session == nil || room == nil {
		return
	}
	room.touch()

	if !room.isHost(session.PlayerID) {
		m.disconnect(c)
		return
	}
	if room.state != statePresenting {
		return
	}

	room.state = stateLobby
	room.page = 0
	room.submitted = make(map[string]bool)
	room.books = nil
	room.presenter = ""
	room.presentPage = 0
	m.stopRoundTimer(room)

	logf(m.cfg, "GAME: Room %q returned to lobby", room.code)
	m.broadcast(room, simpleBroadcast{Type: "finish"})
}
