package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DENisProd/C0NSTRUCT0R/internal/collab"
)

func wsTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	router := mux.NewRouter()
	handler := NewWebsocketHandler(collab.NewRegistry())
	router.HandleFunc("/ws/rooms/{room_id}", handler.ServeWS).Methods("GET")
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func wsDial(t *testing.T, srv *httptest.Server, room, name string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + room + "?name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) collab.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env collab.Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func writeEvent(t *testing.T, conn *websocket.Conn, msgType, payload string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(collab.Envelope{
		Type:    msgType,
		Payload: json.RawMessage(payload),
	}))
}

func TestServeWSJoinSequence(t *testing.T) {
	srv := wsTestServer(t)

	aliceConn := wsDial(t, srv, "landing-7", "Alice")

	// The joiner's roster is a bare array of {id, name} pairs.
	env := readEvent(t, aliceConn)
	require.Equal(t, collab.TypeUsersList, env.Type)
	var roster []collab.Participant
	require.NoError(t, json.Unmarshal(env.Payload, &roster))
	require.Len(t, roster, 1)
	assert.Equal(t, "Alice", roster[0].Name)
	aliceID := roster[0].ID

	bobConn := wsDial(t, srv, "landing-7", "Bob")

	env = readEvent(t, bobConn)
	require.Equal(t, collab.TypeUsersList, env.Type)
	roster = nil
	require.NoError(t, json.Unmarshal(env.Payload, &roster))
	require.Len(t, roster, 2)

	// Alice is told about Bob, but never about her own join.
	env = readEvent(t, aliceConn)
	require.Equal(t, collab.TypeJoin, env.Type)
	var joined collab.Participant
	require.NoError(t, json.Unmarshal(env.Payload, &joined))
	assert.Equal(t, "Bob", joined.Name)
	assert.NotEqual(t, aliceID, joined.ID)

	// Bob edits, Alice converges on the new document.
	writeEvent(t, bobConn, collab.TypeAddBlock, `{"block": {"id": "hero", "type": "text", "content": "Hello"}}`)

	env = readEvent(t, aliceConn)
	require.Equal(t, collab.TypeSyncState, env.Type)
	assert.NotEmpty(t, env.Timestamp)
	assert.JSONEq(t, `{"blocks": [{"id": "hero", "type": "text", "content": "Hello"}]}`, string(env.Payload))
}

func TestServeWSLateJoinerReceivesState(t *testing.T) {
	srv := wsTestServer(t)

	aliceConn := wsDial(t, srv, "landing-8", "Alice")
	readEvent(t, aliceConn) // users_list

	carolConn := wsDial(t, srv, "landing-8", "Carol")
	readEvent(t, carolConn) // users_list
	readEvent(t, aliceConn) // Carol's join

	writeEvent(t, aliceConn, collab.TypeSyncState, `{"blocks": [{"id": "hero", "type": "text"}]}`)

	// The document is replaced before the frame is forwarded, so once
	// Carol's copy arrives the room state is in place.
	env := readEvent(t, carolConn)
	require.Equal(t, collab.TypeSyncState, env.Type)

	bobConn := wsDial(t, srv, "landing-8", "Bob")

	env = readEvent(t, bobConn)
	require.Equal(t, collab.TypeSyncState, env.Type, "a late joiner gets the current document first")
	assert.JSONEq(t, `{"blocks": [{"id": "hero", "type": "text"}]}`, string(env.Payload))

	env = readEvent(t, bobConn)
	assert.Equal(t, collab.TypeUsersList, env.Type)
}
