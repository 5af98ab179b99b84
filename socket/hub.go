package socket

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"slidesync/internal/presentation/model"
	"slidesync/internal/realtime"
	"slidesync/pkg/logger"
)

// RoleResolver looks up a user's authoritative role in a presentation. It returns
// repository.ErrNotFound or repository.ErrNotParticipant when the user may not connect.
type RoleResolver interface {
	RoleFor(ctx context.Context, presentationID, userID string) (model.Role, error)
}

// Envelope is a relayed message together with the client that sent it.
type Envelope struct {
	Message realtime.Message
	From    *Client
}

type roleChange struct {
	presentationID string
	userID         string
	role           model.Role
}

// Hub relays presentation events between the clients of a room. It keeps no
// document state: every update is forwarded verbatim and the last one wins.
type Hub struct {
	Rooms      map[string]map[*Client]bool
	Broadcast  chan Envelope
	Register   chan *Client
	Unregister chan *Client
	roleChange chan roleChange
	roles      RoleResolver
	mu         sync.Mutex
}

func NewHub(roles RoleResolver) *Hub {
	return &Hub{
		Rooms:      make(map[string]map[*Client]bool),
		Broadcast:  make(chan Envelope),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		roleChange: make(chan roleChange),
		roles:      roles,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if h.Rooms[client.PresentationID] == nil {
				h.Rooms[client.PresentationID] = make(map[*Client]bool)
			}
			h.Rooms[client.PresentationID][client] = true
			h.mu.Unlock()

			logger.Sugar.Infof("User %s joined presentation %s as %s", client.UserID, client.PresentationID, client.Role())
			// The joiner's copy of the roster doubles as its join acknowledgement.
			h.broadcastRoster(client.PresentationID)

		case client := <-h.Unregister:
			if h.removeClient(client) {
				h.broadcastRoster(client.PresentationID)
			}

		case env := <-h.Broadcast:
			h.relay(env)

		case rc := <-h.roleChange:
			changed := false
			h.mu.Lock()
			for client := range h.Rooms[rc.presentationID] {
				if client.UserID == rc.userID {
					client.setRole(rc.role)
					changed = true
				}
			}
			h.mu.Unlock()
			if changed {
				h.broadcastRoster(rc.presentationID)
			}
		}
	}
}

// UpdateRole pushes a role change to connected clients and refreshes the room's roster.
func (h *Hub) UpdateRole(presentationID, userID string, role model.Role) {
	h.roleChange <- roleChange{presentationID: presentationID, userID: userID, role: role}
}

// RemovePresentation disconnects everyone in a presentation's room.
func (h *Hub) RemovePresentation(presentationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.Rooms[presentationID] {
		client.Conn.Close() // readPump exits and unregisters
	}
}

// RoomSize reports how many clients are joined to a presentation.
func (h *Hub) RoomSize(presentationID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Rooms[presentationID])
}

// removeClient drops client from its room and reports whether it was a member.
// Must only be called from Run.
func (h *Hub) removeClient(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.Rooms[client.PresentationID]
	if _, ok := room[client]; !ok {
		client.closeSend()
		return false
	}
	delete(room, client)
	client.closeSend()
	if len(room) == 0 {
		delete(h.Rooms, client.PresentationID)
		logger.Sugar.Infof("Closed empty room: %s", client.PresentationID)
		return false
	}
	return true
}

func (h *Hub) relay(env Envelope) {
	payload, err := json.Marshal(env.Message)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
		return
	}

	h.mu.Lock()
	recipients := make([]*Client, 0, len(h.Rooms[env.Message.PresentationID]))
	for client := range h.Rooms[env.Message.PresentationID] {
		if client != env.From {
			recipients = append(recipients, client)
		}
	}
	h.mu.Unlock()

	h.deliver(recipients, payload)
}

func (h *Hub) broadcastRoster(presentationID string) {
	h.mu.Lock()
	byUser := make(map[string]model.Participant)
	recipients := make([]*Client, 0, len(h.Rooms[presentationID]))
	for client := range h.Rooms[presentationID] {
		byUser[client.UserID] = client.participant()
		recipients = append(recipients, client)
	}
	h.mu.Unlock()

	if len(recipients) == 0 {
		return
	}

	roster := make([]model.Participant, 0, len(byUser))
	for _, p := range byUser {
		roster = append(roster, p)
	}
	sort.Slice(roster, func(i, j int) bool { return roster[i].UserID < roster[j].UserID })

	payload, err := realtime.Encode(realtime.EventParticipantUpdate, presentationID, roster)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling roster: %v", err)
		return
	}
	h.deliver(recipients, payload)
}

// deliver queues payload on every recipient. Clients whose buffer is full are
// dropped so one slow socket cannot stall the room.
func (h *Hub) deliver(recipients []*Client, payload []byte) {
	for _, client := range recipients {
		select {
		case client.Send <- payload:
		default:
			logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.UserID)
			h.removeClient(client)
			client.Conn.Close()
		}
	}
}
