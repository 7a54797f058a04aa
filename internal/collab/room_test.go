package collab

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(sess *Session) [][]byte {
	var out [][]byte
	for {
		select {
		case data, ok := <-sess.send:
			if !ok {
				return out
			}
			out = append(out, data)
		default:
			return out
		}
	}
}

func decodeEvent(t *testing.T, data []byte) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestRegistryGetOrCreate(t *testing.T) {
	reg := NewRegistry()

	room := reg.GetOrCreate("page-1")
	require.NotNil(t, room)
	assert.Same(t, room, reg.GetOrCreate("page-1"))
	assert.NotSame(t, room, reg.GetOrCreate("page-2"))
}

func TestRegistryGetOrCreateConcurrent(t *testing.T) {
	reg := NewRegistry()

	rooms := make([]*Room, 50)
	var wg sync.WaitGroup
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = reg.GetOrCreate("same-key")
		}(i)
	}
	wg.Wait()

	for _, room := range rooms {
		assert.Same(t, rooms[0], room)
	}
}

func TestRoomRosterAndInfo(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Info("page-1")
	assert.False(t, ok, "rooms do not exist before first join")

	room := reg.GetOrCreate("page-1")
	alice := NewSession("user-aaa", "Alice")
	alice.JoinedAt = time.Now().Add(-time.Minute)
	bob := NewSession("user-bbb", "Bob")
	room.Add(alice)
	room.Add(bob)

	info, ok := reg.Info("page-1")
	require.True(t, ok)
	assert.Equal(t, "page-1", info.RoomID)
	assert.Equal(t, 2, info.UsersCount)
	assert.Equal(t, []Participant{
		{ID: "user-aaa", Name: "Alice"},
		{ID: "user-bbb", Name: "Bob"},
	}, info.Users, "roster is in join order")
	assert.False(t, info.HasState)

	room.ReplaceDocument(json.RawMessage(`{"blocks": []}`))
	info, _ = reg.Info("page-1")
	assert.True(t, info.HasState)
}

func TestBroadcastExcludesSender(t *testing.T) {
	reg := NewRegistry()
	room := reg.GetOrCreate("page-1")

	alice := NewSession("user-aaa", "Alice")
	bob := NewSession("user-bbb", "Bob")
	room.Add(alice)
	room.Add(bob)

	reg.Broadcast("page-1", []byte(`{"type":"cursor_update"}`), "user-aaa")

	assert.Empty(t, drain(alice))
	require.Len(t, drain(bob), 1)

	reg.Broadcast("page-1", []byte(`{"type":"cursor_update"}`), "")
	assert.Len(t, drain(alice), 1)
	assert.Len(t, drain(bob), 1)
}

func TestRemoveUserBroadcastsLeave(t *testing.T) {
	reg := NewRegistry()
	room := reg.GetOrCreate("page-1")

	alice := NewSession("user-aaa", "Alice")
	bob := NewSession("user-bbb", "Bob")
	room.Add(alice)
	room.Add(bob)

	reg.RemoveUser("page-1", "user-aaa")

	assert.Equal(t, 1, room.UserCount())

	messages := drain(bob)
	require.Len(t, messages, 1)
	env := decodeEvent(t, messages[0])
	assert.Equal(t, TypeLeave, env.Type)
	assert.JSONEq(t, `{"userId": "user-aaa"}`, string(env.Payload))
	assert.NotEmpty(t, env.Timestamp)

	// Removing again, or removing from an unknown room, is a no-op.
	reg.RemoveUser("page-1", "user-aaa")
	reg.RemoveUser("missing-room", "user-aaa")
	assert.Empty(t, drain(bob))
}

func TestBroadcastRemovesUnreachableParticipant(t *testing.T) {
	reg := NewRegistry()
	room := reg.GetOrCreate("page-1")

	stuck := NewSession("user-stuck", "Stuck")
	bob := NewSession("user-bbb", "Bob")
	room.Add(stuck)
	room.Add(bob)

	filler := []byte(`{}`)
	for i := 0; i < outboundQueueSize; i++ {
		stuck.send <- filler
	}

	reg.Broadcast("page-1", []byte(`{"type":"cursor_update"}`), "")

	assert.Equal(t, 1, room.UserCount())

	var leaves int
	for _, data := range drain(bob) {
		if decodeEvent(t, data).Type == TypeLeave {
			leaves++
		}
	}
	assert.Equal(t, 1, leaves, "eviction produces an ordinary leave event")

	assert.Len(t, drain(stuck), outboundQueueSize, "queue was closed with its backlog intact")
}

func TestDocumentSnapshot(t *testing.T) {
	room := NewRegistry().GetOrCreate("page-1")

	assert.Nil(t, room.DocumentSnapshot())
	assert.False(t, room.HasState())

	room.ReplaceDocument(json.RawMessage(`{"blocks": [{"id": "a", "type": "text"}]}`))
	require.True(t, room.HasState())
	assert.JSONEq(t, `{"blocks": [{"id": "a", "type": "text"}]}`, string(room.DocumentSnapshot()))

	// A malformed replacement leaves the previous document in place.
	room.ReplaceDocument(json.RawMessage(`{"blocks": `))
	assert.True(t, room.HasState())

	room.ReplaceDocument(nil)
	assert.False(t, room.HasState(), "an empty payload resets the document")
}

func TestMutateThroughRoom(t *testing.T) {
	room := NewRegistry().GetOrCreate("page-1")
	room.ReplaceDocument(json.RawMessage(`{"blocks": [{"id": "a", "type": "text"}]}`))

	changed := room.Mutate(func(doc *Document) bool {
		return doc.DeleteBlock("a")
	})
	assert.True(t, changed)

	changed = room.Mutate(func(doc *Document) bool {
		return doc.DeleteBlock("a")
	})
	assert.False(t, changed)
}

func TestRegistryStats(t *testing.T) {
	reg := NewRegistry()

	total, empty := reg.Stats()
	assert.Zero(t, total)
	assert.Zero(t, empty)

	reg.GetOrCreate("a")
	busy := reg.GetOrCreate("b")
	busy.Add(NewSession("user-1", "One"))

	total, empty = reg.Stats()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, empty)

	reg.RemoveUser("b", "user-1")
	total, empty = reg.Stats()
	assert.Equal(t, 2, total, "empty rooms are retained")
	assert.Equal(t, 2, empty)
}
