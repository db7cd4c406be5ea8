package main

import (
	"crypto/subtle"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Session maps a transient connection handle to a player identity. The
// identity (ID) is chosen by the client and persisted in its local storage;
// the key is a per-session secret used to authorize later actions. Sessions
// are owned by the Manager and referenced from rooms by player ID only.
type Session struct {
	ConnID   string // server-assigned connection handle
	PlayerID string
	Key      string
	Name     string
	RoomCode string
	client   *Client
}

// Join arbitration outcomes.
type joinOutcome int

const (
	joinRejected joinOutcome = iota
	joinFresh
	joinReconnect
)

const (
	maxIdentifierLength = 10
	maxKeyLength        = 20
	maxNameLength       = 32
	maxRoomCodeLength   = 12
	maxTitleLength      = 40
	maxTextLength       = 140
)

var (
	stripPolicy     = bluemonday.StrictPolicy()
	nonHexRegexp    = regexp.MustCompile(`[^a-fA-F0-9]`)
	nonCodeRegexp   = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	roomCodeLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func sanitizeIdentifier(s string) string {
	return nonHexRegexp.ReplaceAllString(truncate(s, maxIdentifierLength), "")
}

func sanitizeKey(s string) string {
	return nonHexRegexp.ReplaceAllString(truncate(s, maxKeyLength), "")
}

func sanitizeRoomCode(s string) string {
	return nonCodeRegexp.ReplaceAllString(truncate(s, maxRoomCodeLength), "")
}

// sanitizeText strips markup and caps length. Used for display names, book
// titles, and written pages.
func sanitizeText(s string, max int) string {
	return truncate(strings.TrimSpace(stripPolicy.Sanitize(s)), max)
}

func keysMatch(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// arbitrate scans registered sessions for one already holding the claimed
// identifier. A matching key means the same logical player is reconnecting:
// the old connection is evicted and its session entry removed, so room
// membership and book ownership carry over under the same identifier. A
// mismatched key is an impersonation attempt and the new connection is
// rejected without touching the existing session.
func (m *Manager) arbitrate(playerID, key string) (joinOutcome, *Session) {
	for _, existing := range m.sessions {
		if existing.PlayerID != playerID {
			continue
		}
		if keysMatch(existing.Key, key) {
			m.removeSession(existing)
			return joinReconnect, existing
		}
		return joinRejected, existing
	}
	return joinFresh, nil
}

// removeSession drops the registry entry and closes the client's outbound
// channel, which winds down its write pump and connection.
func (m *Manager) removeSession(s *Session) {
	if _, ok := m.sessions[s.ConnID]; !ok {
		return
	}
	delete(m.sessions, s.ConnID)
	s.client.shutdown()
}
