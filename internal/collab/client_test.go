package collab

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dispatchPair wires Alice and Bob into one room and returns Alice's
// client. handleFrame never touches the connection, so the dispatch layer
// is driven without a socket.
func dispatchPair(t *testing.T) (*Client, *Session, *Room) {
	t.Helper()
	reg := NewRegistry()
	room := reg.GetOrCreate("landing-1")

	alice := NewSession("user-aaa", "Alice")
	bob := NewSession("user-bbb", "Bob")
	room.Add(alice)
	room.Add(bob)

	return NewClient(reg, room, alice, nil), bob, room
}

func frame(t *testing.T, msgType, payload string) []byte {
	t.Helper()
	data, err := json.Marshal(Envelope{Type: msgType, Payload: json.RawMessage(payload)})
	require.NoError(t, err)
	return data
}

func blockOrder(t *testing.T, room *Room) []string {
	t.Helper()
	var doc struct {
		Blocks []struct {
			ID string `json:"id"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal(room.DocumentSnapshot(), &doc))
	out := make([]string, len(doc.Blocks))
	for i, b := range doc.Blocks {
		out[i] = b.ID
	}
	return out
}

func TestDispatchSyncStateForwardedVerbatim(t *testing.T) {
	alice, bob, room := dispatchPair(t)

	msg := frame(t, TypeSyncState, `{"blocks": [{"id": "a", "type": "text"}], "custom": 1}`)
	alice.handleFrame(msg)

	require.True(t, room.HasState())

	got := drain(bob)
	require.Len(t, got, 1)
	assert.Equal(t, msg, got[0], "the client frame is forwarded byte for byte")
	assert.Empty(t, drain(alice.session), "the sender hears nothing back")
}

func TestDispatchCursorUpdateForwardedVerbatim(t *testing.T) {
	alice, bob, room := dispatchPair(t)

	msg := frame(t, TypeCursorUpdate, `{"blockId": "a", "x": 10, "y": 20}`)
	alice.handleFrame(msg)

	got := drain(bob)
	require.Len(t, got, 1)
	assert.Equal(t, msg, got[0])
	assert.False(t, room.HasState(), "cursor traffic never touches the document")
}

func TestDispatchAddBlockRebroadcastsState(t *testing.T) {
	alice, bob, room := dispatchPair(t)

	alice.handleFrame(frame(t, TypeAddBlock, `{"block": {"id": "hero", "type": "text", "content": "Hi"}}`))

	got := drain(bob)
	require.Len(t, got, 1)
	env := decodeEvent(t, got[0])
	assert.Equal(t, TypeSyncState, env.Type)
	assert.NotEmpty(t, env.Timestamp)
	assert.JSONEq(t, `{"blocks": [{"id": "hero", "type": "text", "content": "Hi"}]}`, string(env.Payload))
	assert.Empty(t, drain(alice.session))

	assert.Equal(t, []string{"hero"}, blockOrder(t, room))
}

func TestDispatchUpdateAndDeleteBlock(t *testing.T) {
	alice, bob, room := dispatchPair(t)
	room.ReplaceDocument(json.RawMessage(`{"blocks": [{"id": "a", "type": "text", "content": "old"}, {"id": "b", "type": "image"}]}`))

	alice.handleFrame(frame(t, TypeUpdateBlock, `{"blockId": "a", "data": {"content": "new"}}`))
	got := drain(bob)
	require.Len(t, got, 1)
	env := decodeEvent(t, got[0])
	assert.Equal(t, TypeSyncState, env.Type)
	assert.Contains(t, string(env.Payload), `"new"`)

	alice.handleFrame(frame(t, TypeDeleteBlock, `{"blockId": "b"}`))
	require.Len(t, drain(bob), 1)
	assert.Equal(t, []string{"a"}, blockOrder(t, room))
}

func TestDispatchMoveBlock(t *testing.T) {
	alice, bob, room := dispatchPair(t)
	room.ReplaceDocument(json.RawMessage(`{"blocks": [{"id": "a", "type": "text"}, {"id": "b", "type": "text"}, {"id": "c", "type": "text"}]}`))

	alice.handleFrame(frame(t, TypeMoveBlock, `{"fromIndex": 0, "toIndex": 2}`))

	require.Len(t, drain(bob), 1)
	assert.Equal(t, []string{"b", "c", "a"}, blockOrder(t, room))
}

func TestDispatchMoveBlockRequiresBothIndexes(t *testing.T) {
	alice, bob, room := dispatchPair(t)
	room.ReplaceDocument(json.RawMessage(`{"blocks": [{"id": "a", "type": "text"}, {"id": "b", "type": "text"}, {"id": "c", "type": "text"}]}`))

	// A missing index must not default to position zero.
	alice.handleFrame(frame(t, TypeMoveBlock, `{"toIndex": 2}`))
	alice.handleFrame(frame(t, TypeMoveBlock, `{"fromIndex": 1}`))
	alice.handleFrame(frame(t, TypeMoveBlock, `{}`))

	assert.Empty(t, drain(bob), "partial moves are dropped without a rebroadcast")
	assert.Equal(t, []string{"a", "b", "c"}, blockOrder(t, room))
}

func TestDispatchSectionMerges(t *testing.T) {
	alice, bob, room := dispatchPair(t)

	alice.handleFrame(frame(t, TypeUpdateTheme, `{"primary": "#fff"}`))
	alice.handleFrame(frame(t, TypeUpdateHeader, `{"title": "Shop"}`))
	alice.handleFrame(frame(t, TypeUpdateFooter, `{"note": "ok"}`))

	got := drain(bob)
	require.Len(t, got, 3)
	for _, data := range got {
		assert.Equal(t, TypeSyncState, decodeEvent(t, data).Type)
	}

	snapshot := string(room.DocumentSnapshot())
	assert.Contains(t, snapshot, `"primary"`)
	assert.Contains(t, snapshot, `"title"`)
	assert.Contains(t, snapshot, `"note"`)
}

func TestDispatchDropsMalformedFrames(t *testing.T) {
	alice, bob, room := dispatchPair(t)
	room.ReplaceDocument(json.RawMessage(`{"blocks": [{"id": "a", "type": "text"}]}`))

	bad := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type": "update_block", "payload": "not an object"}`),
		[]byte(`{"type": "delete_block", "payload": 7}`),
		[]byte(`{"type": "update_theme", "payload": []}`),
		frame(t, "mystery_type", `{"x": 1}`),
	}
	for _, msg := range bad {
		alice.handleFrame(msg)
	}

	assert.Empty(t, drain(bob), "bad frames produce no broadcast")
	assert.Equal(t, []string{"a"}, blockOrder(t, room), "bad frames leave the document alone")

	// The connection survives: the next well-formed frame still applies.
	alice.handleFrame(frame(t, TypeDeleteBlock, `{"blockId": "a"}`))
	assert.Len(t, drain(bob), 1)
	assert.Empty(t, blockOrder(t, room))
}

func TestDispatchEditSessionConverges(t *testing.T) {
	reg := NewRegistry()
	room := reg.GetOrCreate("landing-9")

	alice := NewSession("user-aaa", "Alice")
	bob := NewSession("user-bbb", "Bob")
	room.Add(alice)
	room.Add(bob)

	aliceClient := NewClient(reg, room, alice, nil)
	bobClient := NewClient(reg, room, bob, nil)

	aliceClient.handleFrame(frame(t, TypeSyncState, `{"blocks": [{"id": "hero", "type": "text"}]}`))
	bobClient.handleFrame(frame(t, TypeAddBlock, `{"block": {"id": "cta", "type": "button"}}`))

	// Bob saw Alice's sync_state, Alice saw the state after Bob's edit.
	bobFrames := drain(bob)
	require.Len(t, bobFrames, 1)
	assert.Equal(t, TypeSyncState, decodeEvent(t, bobFrames[0]).Type)

	aliceFrames := drain(alice)
	require.Len(t, aliceFrames, 1)
	env := decodeEvent(t, aliceFrames[0])
	assert.Equal(t, TypeSyncState, env.Type)
	assert.JSONEq(t, `{"blocks": [{"id": "hero", "type": "text"}, {"id": "cta", "type": "button"}]}`, string(env.Payload))

	assert.Equal(t, []string{"hero", "cta"}, blockOrder(t, room))
}

func TestDispatchManyFramesKeepOrder(t *testing.T) {
	alice, bob, room := dispatchPair(t)
	room.ReplaceDocument(json.RawMessage(`{"blocks": []}`))

	for i := 0; i < 5; i++ {
		alice.handleFrame(frame(t, TypeAddBlock, fmt.Sprintf(`{"block": {"id": "b%d", "type": "text"}}`, i)))
	}

	assert.Len(t, drain(bob), 5)
	assert.Equal(t, []string{"b0", "b1", "b2", "b3", "b4"}, blockOrder(t, room))
}
