package collab

import (
	"encoding/json"
	"log"
	"time"
)

// Client-originated message types.
const (
	TypeSyncState    = "sync_state"
	TypeUpdateBlock  = "update_block"
	TypeAddBlock     = "add_block"
	TypeDeleteBlock  = "delete_block"
	TypeMoveBlock    = "move_block"
	TypeUpdateTheme  = "update_theme"
	TypeUpdateHeader = "update_header"
	TypeUpdateFooter = "update_footer"
	TypeCursorUpdate = "cursor_update"
)

// Server-originated event types.
const (
	TypeJoin      = "join"
	TypeLeave     = "leave"
	TypeUsersList = "users_list"
)

// Envelope is the wire shape of every message: a type discriminator, an
// opaque payload, and an RFC-3339 timestamp stamped by the server on
// server-originated events.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// Participant is the {id, name} pair carried by join and users_list events.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MarshalEvent builds a server-stamped envelope. Marshal failures are
// logged and yield nil, which broadcast helpers treat as a no-op.
func MarshalEvent(eventType string, payload interface{}) []byte {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal %s payload: %v", eventType, err)
		return nil
	}
	data, err := json.Marshal(Envelope{
		Type:      eventType,
		Payload:   body,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("[ERROR] Failed to marshal %s event: %v", eventType, err)
		return nil
	}
	return data
}
