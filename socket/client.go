package socket

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"slidesync/internal/presentation/model"
	"slidesync/internal/presentation/repository"
	"slidesync/internal/realtime"
	"slidesync/internal/rolegate"
	"slidesync/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is checked by the CORS layer in front of the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 1 << 20
)

type Client struct {
	Hub            *Hub
	Conn           *websocket.Conn
	PresentationID string
	UserID         string
	Send           chan []byte

	mu       sync.Mutex
	username string
	role     model.Role
	joined   bool
	sendOnce sync.Once
}

func (c *Client) Role() model.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Client) setRole(role model.Role) {
	c.mu.Lock()
	c.role = role
	c.mu.Unlock()
}

func (c *Client) participant() model.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.Participant{UserID: c.UserID, Username: c.username, Role: c.role}
}

func (c *Client) closeSend() {
	c.sendOnce.Do(func() { close(c.Send) })
}

// ServeWs resolves the caller's role, upgrades the connection and starts the pumps.
// The client joins its room once it sends join_presentation.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID, username string) {
	presentationID := strings.TrimSpace(r.URL.Query().Get("presentationId"))
	if presentationID == "" {
		http.Error(w, "Missing presentationId", http.StatusBadRequest)
		return
	}

	role, err := hub.roles.RoleFor(r.Context(), presentationID, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		logger.Sugar.Warnf("Connection rejected: presentation %s not found", presentationID)
		http.Error(w, "Presentation not found", http.StatusNotFound)
		return
	case errors.Is(err, repository.ErrNotParticipant):
		logger.Sugar.Warnf("Connection rejected: user %s has not joined presentation %s", userID, presentationID)
		http.Error(w, "Not a participant", http.StatusForbidden)
		return
	case err != nil:
		logger.Sugar.Errorf("Role lookup failed for presentation %s: %v", presentationID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Sugar.Error(err)
		return
	}

	client := &Client{
		Hub:            hub,
		Conn:           conn,
		PresentationID: presentationID,
		UserID:         userID,
		Send:           make(chan []byte, 256),
		username:       username,
		role:           role,
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)

	for {
		_, rawMessage, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Sugar.Errorf("error: %v", err)
			}
			break
		}

		var msg realtime.Message
		if err := json.Unmarshal(rawMessage, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling message: %v", err)
			continue
		}

		// Server-authoritative fields; a client cannot speak for another user or room.
		msg.PresentationID = c.PresentationID
		msg.UserID = c.UserID

		if msg.Type == realtime.EventJoinPresentation {
			c.join(msg.Payload)
			continue
		}

		c.mu.Lock()
		joined := c.joined
		c.mu.Unlock()
		if !joined {
			logger.Sugar.Warnf("User %s sent %s before joining presentation %s", c.UserID, msg.Type, c.PresentationID)
			continue
		}

		switch msg.Type {
		case realtime.EventPresentationUpdated, realtime.EventSlideUpdated, realtime.EventTitleUpdated:
		default:
			logger.Sugar.Warnf("Ignoring unsupported event %q from user %s", msg.Type, c.UserID)
			continue
		}

		if role := c.Role(); !rolegate.AllowedEvent(role, msg.Type) {
			logger.Sugar.Warnf("Permission Denied: User %s (Role: %s) tried to send %s to presentation %s", c.UserID, role, msg.Type, c.PresentationID)
			continue
		}

		c.Hub.Broadcast <- Envelope{Message: msg, From: c}
	}
}

func (c *Client) join(payload json.RawMessage) {
	c.mu.Lock()
	if c.joined {
		c.mu.Unlock()
		return
	}
	var p realtime.JoinPayload
	if err := json.Unmarshal(payload, &p); err == nil && strings.TrimSpace(p.Username) != "" {
		c.username = strings.TrimSpace(p.Username)
	}
	c.joined = true
	c.mu.Unlock()

	c.Hub.Register <- c
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
