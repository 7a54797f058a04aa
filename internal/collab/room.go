package collab

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"
)

// outboundQueueSize bounds each session's send queue. A participant whose
// queue stays full during a broadcast is treated as disconnected.
const outboundQueueSize = 256

// Session is one connected participant of a room.
type Session struct {
	ID       string
	Name     string
	JoinedAt time.Time

	send chan []byte
}

// NewSession creates a session with its outbound queue.
func NewSession(id, name string) *Session {
	return &Session{
		ID:       id,
		Name:     name,
		JoinedAt: time.Now(),
		send:     make(chan []byte, outboundQueueSize),
	}
}

// Room is a named collaboration session: a roster of participants and the
// shared document they edit. All access goes through its mutex; broadcast
// helpers never block on a slow participant.
type Room struct {
	Key string

	mu    sync.Mutex
	users map[string]*Session
	doc   *Document
}

func newRoom(key string) *Room {
	return &Room{
		Key:   key,
		users: make(map[string]*Session),
		doc:   NewDocument(),
	}
}

// Add registers a session into the roster.
func (r *Room) Add(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[sess.ID] = sess
}

// remove deletes a session from the roster and closes its queue so the
// writer goroutine exits. Returns nil if the user was not registered, which
// makes repeated removal (disconnect racing a failed broadcast) safe.
func (r *Room) remove(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.users[userID]
	if !ok {
		return nil
	}
	delete(r.users, userID)
	close(sess.send)
	return sess
}

// send queues data to every participant except excludeID and reports the
// ids whose queues were full. Queue sends and close both happen under the
// room mutex, so a session still in the roster always has an open queue.
func (r *Room) send(data []byte, excludeID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []string
	for id, sess := range r.users {
		if excludeID != "" && id == excludeID {
			continue
		}
		select {
		case sess.send <- data:
		default:
			failed = append(failed, id)
		}
	}
	return failed
}

// sendTo queues data to a single participant.
func (r *Room) sendTo(userID string, data []byte) {
	if data == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.users[userID]
	if !ok {
		return
	}
	select {
	case sess.send <- data:
	default:
		log.Printf("[WARN] Dropping direct message to %s in room %s (queue full)", userID, r.Key)
	}
}

// Participants lists the roster in join order.
func (r *Room) Participants() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*Session, 0, len(r.users))
	for _, sess := range r.users {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].JoinedAt.Equal(sessions[j].JoinedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].JoinedAt.Before(sessions[j].JoinedAt)
	})

	out := make([]Participant, len(sessions))
	for i, sess := range sessions {
		out[i] = Participant{ID: sess.ID, Name: sess.Name}
	}
	return out
}

// UserCount returns the number of connected participants.
func (r *Room) UserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// DocumentSnapshot serializes the current document, or nil when empty.
func (r *Room) DocumentSnapshot() json.RawMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc.IsEmpty() {
		return nil
	}
	data, err := json.Marshal(r.doc)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal document for room %s: %v", r.Key, err)
		return nil
	}
	return data
}

// HasState reports whether the room's document is non-empty.
func (r *Room) HasState() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.doc.IsEmpty()
}

// ReplaceDocument swaps the document for the given payload wholesale.
func (r *Room) ReplaceDocument(payload json.RawMessage) {
	doc := NewDocument()
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, doc); err != nil {
			return
		}
	}
	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()
}

// Mutate runs one mutation operator against the document under the room
// lock and reports whether it changed anything.
func (r *Room) Mutate(fn func(doc *Document) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.doc)
}

// RoomInfo is the read-endpoint snapshot of a room.
type RoomInfo struct {
	RoomID     string        `json:"room_id"`
	UsersCount int           `json:"users_count"`
	Users      []Participant `json:"users"`
	HasState   bool          `json:"has_state"`
}

// Registry owns the set of live rooms. Rooms are created lazily on first
// join and retained, with their last document, until process restart.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for the key, creating it when absent. Safe
// for concurrent joins to the same key.
func (reg *Registry) GetOrCreate(key string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[key]
	if !ok {
		room = newRoom(key)
		reg.rooms[key] = room
		log.Printf("[INFO] Created room %s", key)
	}
	return room
}

// lookup returns the room for the key, or nil.
func (reg *Registry) lookup(key string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[key]
}

// Info returns the read-endpoint snapshot, or false when the room has
// never been created.
func (reg *Registry) Info(key string) (RoomInfo, bool) {
	room := reg.lookup(key)
	if room == nil {
		return RoomInfo{}, false
	}
	return RoomInfo{
		RoomID:     key,
		UsersCount: room.UserCount(),
		Users:      room.Participants(),
		HasState:   room.HasState(),
	}, true
}

// Broadcast delivers one serialized event to every participant of the room
// except excludeID. Participants whose queues were full are removed from
// the roster afterwards, each producing an ordinary leave event.
func (reg *Registry) Broadcast(key string, data []byte, excludeID string) {
	if data == nil {
		return
	}
	room := reg.lookup(key)
	if room == nil {
		return
	}
	for _, id := range room.send(data, excludeID) {
		log.Printf("[WARN] Participant %s in room %s unreachable during broadcast, removing", id, key)
		reg.RemoveUser(key, id)
	}
}

// RemoveUser deletes the user from the room's roster if present and
// notifies the remaining participants with a leave event. No-op when the
// room or user is absent.
func (reg *Registry) RemoveUser(key, userID string) {
	room := reg.lookup(key)
	if room == nil {
		return
	}
	if sess := room.remove(userID); sess != nil {
		log.Printf("[INFO] User %s (%s) left room %s", sess.Name, userID, key)
		reg.Broadcast(key, MarshalEvent(TypeLeave, map[string]string{"userId": userID}), userID)
	}
}

// Stats returns the total room count and how many rooms are currently
// empty. Empty rooms are never reaped, so the counts feed the
// housekeeping log to keep the retention cost visible.
func (reg *Registry) Stats() (total, empty int) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	for _, room := range reg.rooms {
		if room.UserCount() == 0 {
			empty++
		}
	}
	return len(reg.rooms), empty
}
