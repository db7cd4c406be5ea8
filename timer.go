package main

import (
	"time"
)

// Extra time on every countdown to absorb network latency, so clients that
// submit right at zero still make it in.
const timerGrace = 2 * time.Second

// roundDuration derives the countdown for a page mode from the room's
// settings. Zero means no timer for that mode.
func roundDuration(settings Settings, mode string) time.Duration {
	var minutes int
	switch mode {
	case modeWrite:
		minutes = settings.intValue("timeWrite")
	case modeDraw:
		minutes = settings.intValue("timeDraw")
	}

	if minutes == 0 {
		return 0
	}

	return time.Duration(minutes)*time.Minute + timerGrace
}

// startRoundTimer arms the countdown for the current page, cancelling any
// previous timer first so a room never has two running at once. The expiry
// callback re-checks the page index under lock, so a timer that loses the
// race against cancellation is a no-op.
func (m *Manager) startRoundTimer(room *Room, mode string) {
	m.stopRoundTimer(room)

	d := roundDuration(room.settings, mode)
	if d == 0 {
		return
	}

	code := room.code
	page := room.page
	room.timer = time.AfterFunc(d, func() {
		m.handleTimerExpiry(code, page)
	})
}

// stopRoundTimer is idempotent.
func (m *Manager) stopRoundTimer(room *Room) {
	if room.timer == nil {
		return
	}
	room.timer.Stop()
	room.timer = nil
}

// handleTimerExpiry force-advances a stalled page: every active member that
// has not submitted is treated as having sent an empty page, so the round
// can never hang on an unresponsive client. A stale callback, fired for a
// page the room already left, does nothing.
func (m *Manager) handleTimerExpiry(code string, page int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[code]
	if !ok || room.state != statePlaying || room.page != page {
		return
	}

	room.timer = nil
	room.touch()
	logf(m.cfg, "GAME: Timer expired for room %q page %d", code, page)

	m.broadcast(room, simpleBroadcast{Type: "timerFinish"})
	m.forceMissingSubmissions(room)
}
