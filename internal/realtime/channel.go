// Package realtime is the editor's side of the presentation relay socket.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"slidesync/internal/presentation/model"
	"slidesync/pkg/logger"

	"github.com/gorilla/websocket"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Joined
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	default:
		return "disconnected"
	}
}

var (
	ErrNotJoined      = errors.New("realtime: channel is not joined")
	ErrClosed         = errors.New("realtime: channel already used")
	ErrSendBufferFull = errors.New("realtime: send buffer full")
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

// Handlers receive relay events. They run on the channel's single read
// goroutine, one at a time and in delivery order.
type Handlers struct {
	OnParticipants        func([]model.Participant)
	OnPresentationUpdated func([]model.Slide)
	OnSlideUpdated        func([]model.Slide)
	OnTitleUpdated        func(string)
	// OnClosed fires once when the socket is lost. It does not fire after Close.
	OnClosed func(error)
}

// Channel is a one-shot session: Disconnected -> Connecting -> Joined -> Disconnected.
// A closed Channel cannot be reconnected; build a new one and re-fetch the document.
type Channel struct {
	url    string
	token  string
	dialer *websocket.Dialer

	mu             sync.Mutex
	handlers       Handlers
	state          State
	used           bool
	conn           *websocket.Conn
	presentationID string
	send           chan []byte
	joined         chan struct{}
	done           chan struct{}
	closeOnce      sync.Once
}

// NewChannel returns a channel for the relay at wsURL, authenticating with token.
func NewChannel(wsURL, token string) *Channel {
	return &Channel{
		url:    wsURL,
		token:  token,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (c *Channel) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the relay, sends join_presentation and waits for the first
// roster, which acknowledges the join.
func (c *Channel) Connect(ctx context.Context, presentationID, username string) error {
	c.mu.Lock()
	if c.used {
		c.mu.Unlock()
		return ErrClosed
	}
	c.used = true
	c.state = Connecting
	c.presentationID = presentationID
	c.send = make(chan []byte, sendBuffer)
	c.joined = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	u, err := url.Parse(c.url)
	if err != nil {
		c.shutdown(nil)
		return fmt.Errorf("realtime: bad relay url: %w", err)
	}
	q := u.Query()
	q.Set("presentationId", presentationID)
	if c.token != "" {
		q.Set("token", c.token)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		c.shutdown(nil)
		return fmt.Errorf("realtime: dial relay: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writePump()
	go c.readPump()

	join, err := Encode(EventJoinPresentation, presentationID, JoinPayload{PresentationID: presentationID, Username: username})
	if err != nil {
		c.shutdown(nil)
		return err
	}
	c.send <- join

	select {
	case <-c.joined:
		logger.Sugar.Infof("Joined presentation %s as %s", presentationID, username)
		return nil
	case <-c.done:
		return fmt.Errorf("realtime: connection closed before join was acknowledged")
	case <-ctx.Done():
		c.shutdown(nil)
		return ctx.Err()
	}
}

// EmitPresentationUpdated broadcasts a structural change with the full slide sequence.
func (c *Channel) EmitPresentationUpdated(slides []model.Slide) error {
	return c.emit(EventPresentationUpdated, SlidesPayload{Slides: slides})
}

// EmitSlideUpdated broadcasts a block-level change with the full slide sequence.
func (c *Channel) EmitSlideUpdated(slides []model.Slide) error {
	return c.emit(EventSlideUpdated, SlidesPayload{Slides: slides})
}

func (c *Channel) EmitTitleUpdated(title string) error {
	return c.emit(EventTitleUpdated, TitlePayload{Title: title})
}

func (c *Channel) emit(eventType string, payload any) error {
	c.mu.Lock()
	state, id, send, done := c.state, c.presentationID, c.send, c.done
	c.mu.Unlock()
	if state != Joined {
		return ErrNotJoined
	}

	frame, err := Encode(eventType, id, payload)
	if err != nil {
		return err
	}
	select {
	case <-done:
		return ErrNotJoined
	case send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close ends the session. It is safe to call more than once.
func (c *Channel) Close() {
	c.shutdown(nil)
}

// shutdown moves to the terminal Disconnected state. cause is non-nil when
// the socket was lost rather than closed locally.
func (c *Channel) shutdown(cause error) {
	c.mu.Lock()
	if c.done == nil {
		// never connected
		c.used = true
		c.state = Disconnected
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = Disconnected
		conn := c.conn
		onClosed := c.handlers.OnClosed
		close(c.done)
		c.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		if cause != nil {
			logger.Sugar.Warnf("Relay connection for presentation %s lost: %v", c.presentationID, cause)
			if onClosed != nil {
				onClosed(cause)
			}
		}
	})
}

func (c *Channel) readPump() {
	var cause error
	defer func() { c.shutdown(cause) }()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				cause = err
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			logger.Sugar.Errorf("Error unmarshalling relay message: %v", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Channel) dispatch(msg Message) {
	c.mu.Lock()
	h := c.handlers
	state := c.state
	if msg.Type == EventParticipantUpdate && state == Connecting {
		c.state = Joined
		state = Joined
		close(c.joined)
	}
	c.mu.Unlock()

	if state != Joined {
		logger.Sugar.Debugf("Dropping %s received before join was acknowledged", msg.Type)
		return
	}

	switch msg.Type {
	case EventParticipantUpdate:
		var roster []model.Participant
		if err := json.Unmarshal(msg.Payload, &roster); err != nil {
			logger.Sugar.Errorf("Bad participant_update payload: %v", err)
			return
		}
		if h.OnParticipants != nil {
			h.OnParticipants(roster)
		}
	case EventPresentationUpdated, EventSlideUpdated:
		var p SlidesPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			logger.Sugar.Errorf("Bad %s payload: %v", msg.Type, err)
			return
		}
		fn := h.OnSlideUpdated
		if msg.Type == EventPresentationUpdated {
			fn = h.OnPresentationUpdated
		}
		if fn != nil {
			fn(p.Slides)
		}
	case EventTitleUpdated:
		var p TitlePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			logger.Sugar.Errorf("Bad title_updated payload: %v", err)
			return
		}
		if h.OnTitleUpdated != nil {
			h.OnTitleUpdated(p.Title)
		}
	default:
		logger.Sugar.Debugf("Ignoring relay event %q", msg.Type)
	}
}

func (c *Channel) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.shutdown(err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}
