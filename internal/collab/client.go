package collab

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024
)

// Client binds one websocket connection to a room session. ReadPump and
// WritePump each run in their own goroutine; the read side applies
// mutations and the write side is the session's single queue consumer, so
// no send ever blocks on a slow peer.
type Client struct {
	registry *Registry
	room     *Room
	session  *Session
	conn     *websocket.Conn
}

// NewClient wires a connection to its room session.
func NewClient(registry *Registry, room *Room, session *Session, conn *websocket.Conn) *Client {
	return &Client{
		registry: registry,
		room:     room,
		session:  session,
		conn:     conn,
	}
}

// Queue enqueues a pre-serialized event for this client only.
func (c *Client) Queue(data []byte) {
	c.room.sendTo(c.session.ID, data)
}

// ReadPump consumes inbound frames until the connection drops, then
// removes the user from the room. Each frame is handled fail-soft: a
// malformed or unprocessable frame is dropped and the loop continues.
func (c *Client) ReadPump() {
	defer func() {
		c.conn.Close()
		c.registry.RemoveUser(c.room.Key, c.session.ID)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WARN] Read error for %s in room %s: %v", c.session.ID, c.room.Key, err)
			}
			break
		}
		c.handleFrame(message)
	}
}

// WritePump drains the session queue onto the connection and keeps the
// connection alive with pings. It exits when the queue is closed (the user
// was removed from the room) or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.session.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame dispatches one inbound frame. Nothing here may take down the
// connection: parse failures drop the frame, unknown types are ignored,
// and a panic while mutating is swallowed.
func (c *Client) handleFrame(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] Dropped frame from %s in room %s: %v", c.session.ID, c.room.Key, r)
		}
	}()

	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}

	switch env.Type {
	case TypeSyncState:
		c.room.ReplaceDocument(env.Payload)
		c.registry.Broadcast(c.room.Key, message, c.session.ID)

	case TypeUpdateBlock:
		var payload struct {
			BlockID string                     `json:"blockId"`
			Data    map[string]json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		c.room.Mutate(func(doc *Document) bool {
			return doc.UpdateBlock(payload.BlockID, payload.Data)
		})
		c.rebroadcastState()

	case TypeAddBlock:
		var payload struct {
			Block json.RawMessage `json:"block"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		c.room.Mutate(func(doc *Document) bool {
			return doc.AddBlock(payload.Block)
		})
		c.rebroadcastState()

	case TypeDeleteBlock:
		var payload struct {
			BlockID string `json:"blockId"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		c.room.Mutate(func(doc *Document) bool {
			return doc.DeleteBlock(payload.BlockID)
		})
		c.rebroadcastState()

	case TypeMoveBlock:
		var payload struct {
			FromIndex *int `json:"fromIndex"`
			ToIndex   *int `json:"toIndex"`
		}
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		if payload.FromIndex == nil || payload.ToIndex == nil {
			return
		}
		c.room.Mutate(func(doc *Document) bool {
			return doc.MoveBlock(*payload.FromIndex, *payload.ToIndex)
		})
		c.rebroadcastState()

	case TypeUpdateTheme, TypeUpdateHeader, TypeUpdateFooter:
		var patch map[string]json.RawMessage
		if err := json.Unmarshal(env.Payload, &patch); err != nil {
			return
		}
		c.room.Mutate(func(doc *Document) bool {
			switch env.Type {
			case TypeUpdateTheme:
				doc.MergeTheme(patch)
			case TypeUpdateHeader:
				doc.MergeHeader(patch)
			default:
				doc.MergeFooter(patch)
			}
			return true
		})
		c.rebroadcastState()

	case TypeCursorUpdate:
		c.registry.Broadcast(c.room.Key, message, c.session.ID)

	default:
		// Unknown message types are ignored.
	}
}

// rebroadcastState publishes the whole document as a fresh sync_state to
// every other participant. The full snapshot, not a diff, is the
// convergence primitive.
func (c *Client) rebroadcastState() {
	snapshot := c.room.DocumentSnapshot()
	if snapshot == nil {
		snapshot = json.RawMessage("{}")
	}
	c.registry.Broadcast(c.room.Key, MarshalEvent(TypeSyncState, snapshot), c.session.ID)
}
