package main

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{}
}

func newTestManager() *Manager {
	return newManager(testConfig())
}

// newTestClient builds a connection-less client whose outbound messages can
// be read straight from its send channel.
func newTestClient() *Client {
	return &Client{
		send:   make(chan any, 64),
		connID: uuid.NewString(),
	}
}

func joinAs(t *testing.T, m *Manager, c *Client, id, key, name, roomCode string) {
	t.Helper()
	m.handleJoinRoom(c, joinRoomMessage{
		Type:     "joinRoom",
		ID:       id,
		Key:      key,
		Name:     name,
		RoomCode: roomCode,
	})
}

// drain empties a client's outbound channel without blocking.
func drain(c *Client) []any {
	var out []any
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

// messageType reads the Type field every outbound message carries.
func messageType(msg any) string {
	return reflect.ValueOf(msg).FieldByName("Type").String()
}

func messagesOfType(msgs []any, typ string) []any {
	var out []any
	for _, msg := range msgs {
		if messageType(msg) == typ {
			out = append(out, msg)
		}
	}
	return out
}

func hasMessage(msgs []any, typ string) bool {
	return len(messagesOfType(msgs, typ)) > 0
}

// pngDataURI encodes a blank image of the given size as the client would
// export its canvas.
func pngDataURI(t *testing.T, width, height int) string {
	t.Helper()
	var buf bytes.Buffer
	err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)))
	require.NoError(t, err)
	return pngDataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
}
