package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/DENisProd/C0NSTRUCT0R/internal/collab"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS for websockets is enforced at the proxy
	},
}

// WebsocketHandler joins clients into collaboration rooms.
type WebsocketHandler struct {
	registry *collab.Registry
}

func NewWebsocketHandler(registry *collab.Registry) *WebsocketHandler {
	return &WebsocketHandler{registry: registry}
}

// newUserID mints a per-connection participant id. Connections are
// identified independently of accounts so the same person can edit from
// two tabs at once.
func newUserID() string {
	return "user-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// ServeWS upgrades the connection and runs the join sequence: the current
// document (when the room has one) goes to the joiner, a join event goes
// to everyone else, and the full roster goes to the joiner.
func (h *WebsocketHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["room_id"]
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name query parameter is required", http.StatusBadRequest)
		return
	}
	// An access token may be supplied, but rooms are open to anonymous
	// participants so it is not required.
	_ = r.URL.Query().Get("token")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] WebSocket upgrade failed for room %s: %v", roomID, err)
		return
	}

	room := h.registry.GetOrCreate(roomID)
	session := collab.NewSession(newUserID(), name)
	room.Add(session)
	log.Printf("[INFO] User %s (%s) joined room %s", name, session.ID, roomID)

	client := collab.NewClient(h.registry, room, session, conn)

	if snapshot := room.DocumentSnapshot(); snapshot != nil {
		client.Queue(collab.MarshalEvent(collab.TypeSyncState, snapshot))
	}
	h.registry.Broadcast(roomID, collab.MarshalEvent(collab.TypeJoin, collab.Participant{
		ID:   session.ID,
		Name: session.Name,
	}), session.ID)
	client.Queue(collab.MarshalEvent(collab.TypeUsersList, room.Participants()))

	go client.WritePump()
	go client.ReadPump()
}
