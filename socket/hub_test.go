package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slidesync/internal/presentation/model"
	"slidesync/internal/presentation/repository"
	"slidesync/internal/realtime"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoles map[string]model.Role

func (f fakeRoles) RoleFor(_ context.Context, presentationID, userID string) (model.Role, error) {
	if presentationID != "p1" {
		return "", repository.ErrNotFound
	}
	role, ok := f[userID]
	if !ok {
		return "", repository.ErrNotParticipant
	}
	return role, nil
}

func readMessage(t *testing.T, conn *websocket.Conn) realtime.Message {
	t.Helper()
	var msg realtime.Message
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, p, err := conn.ReadMessage()
	require.NoError(t, err, "Failed to read message from WebSocket")
	require.NoError(t, json.Unmarshal(p, &msg), "Failed to unmarshal message")
	return msg
}

func readRoster(t *testing.T, conn *websocket.Conn) []model.Participant {
	t.Helper()
	msg := readMessage(t, conn)
	require.Equal(t, realtime.EventParticipantUpdate, msg.Type)
	var roster []model.Participant
	require.NoError(t, json.Unmarshal(msg.Payload, &roster))
	return roster
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload any) {
	t.Helper()
	frame, err := realtime.Encode(eventType, "p1", payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func startRelay(t *testing.T, roles fakeRoles) (*Hub, string) {
	t.Helper()
	hub := NewHub(roles)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, r.URL.Query().Get("user_id"), r.URL.Query().Get("user_id"))
	}))
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, base, presentationID, userID string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(base+"/ws?presentationId="+presentationID+"&user_id="+userID, nil)
	require.NoError(t, err, "%s failed to connect", userID)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func join(t *testing.T, base, userID, username string) *websocket.Conn {
	t.Helper()
	conn := dial(t, base, "p1", userID)
	send(t, conn, realtime.EventJoinPresentation, realtime.JoinPayload{PresentationID: "p1", Username: username})
	return conn
}

func TestRelayIntegration(t *testing.T) {
	hub, base := startRelay(t, fakeRoles{"u1": model.RoleCreator, "u2": model.RoleEditor, "u3": model.RoleViewer})

	// The joiner's roster is its acknowledgement.
	c1 := join(t, base, "u1", "alice")
	roster := readRoster(t, c1)
	assert.Equal(t, []model.Participant{{UserID: "u1", Username: "alice", Role: model.RoleCreator}}, roster)

	c2 := join(t, base, "u2", "bob")
	assert.Len(t, readRoster(t, c2), 2)
	assert.Len(t, readRoster(t, c1), 2)

	// Relay reaches others, never the sender.
	send(t, c1, realtime.EventSlideUpdated, realtime.SlidesPayload{Slides: []model.Slide{{Order: 0, TextBlocks: []model.TextBlock{}}}})
	msg := readMessage(t, c2)
	assert.Equal(t, realtime.EventSlideUpdated, msg.Type)
	assert.Equal(t, "u1", msg.UserID)
	assert.Equal(t, "p1", msg.PresentationID)

	send(t, c2, realtime.EventTitleUpdated, realtime.TitlePayload{Title: "Q3"})
	msg = readMessage(t, c1)
	assert.Equal(t, realtime.EventTitleUpdated, msg.Type)
	var title realtime.TitlePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &title))
	assert.Equal(t, "Q3", title.Title)

	// Editors may not broadcast structural changes.
	send(t, c2, realtime.EventPresentationUpdated, realtime.SlidesPayload{Slides: []model.Slide{}})
	send(t, c2, realtime.EventSlideUpdated, realtime.SlidesPayload{Slides: []model.Slide{}})
	assert.Equal(t, realtime.EventSlideUpdated, readMessage(t, c1).Type)

	// Viewers may not broadcast anything.
	c3 := join(t, base, "u3", "carol")
	assert.Len(t, readRoster(t, c3), 3)
	assert.Len(t, readRoster(t, c1), 3)
	assert.Len(t, readRoster(t, c2), 3)
	assert.Equal(t, 3, hub.RoomSize("p1"))

	send(t, c3, realtime.EventSlideUpdated, realtime.SlidesPayload{Slides: []model.Slide{}})
	time.Sleep(100 * time.Millisecond)
	send(t, c1, realtime.EventTitleUpdated, realtime.TitlePayload{Title: "after viewer"})
	msg = readMessage(t, c2)
	assert.Equal(t, realtime.EventTitleUpdated, msg.Type)
	assert.Equal(t, "u1", msg.UserID)
	_ = readMessage(t, c3)

	// A role change refreshes everyone's roster and takes effect immediately.
	hub.UpdateRole("p1", "u3", model.RoleEditor)
	for _, c := range []*websocket.Conn{c1, c2, c3} {
		roster := readRoster(t, c)
		require.Len(t, roster, 3)
		assert.Equal(t, model.RoleEditor, roster[2].Role)
	}
	send(t, c3, realtime.EventSlideUpdated, realtime.SlidesPayload{Slides: []model.Slide{}})
	msg = readMessage(t, c1)
	assert.Equal(t, realtime.EventSlideUpdated, msg.Type)
	assert.Equal(t, "u3", msg.UserID)
	_ = readMessage(t, c2)

	// Leaving pushes a smaller roster.
	c3.Close()
	assert.Len(t, readRoster(t, c1), 2)
	assert.Len(t, readRoster(t, c2), 2)
}

func TestRelayIgnoresEventsBeforeJoin(t *testing.T) {
	hub, base := startRelay(t, fakeRoles{"u1": model.RoleCreator, "u2": model.RoleCreator})

	c1 := join(t, base, "u1", "alice")
	readRoster(t, c1)

	c2 := dial(t, base, "p1", "u2")
	send(t, c2, realtime.EventTitleUpdated, realtime.TitlePayload{Title: "sneaky"})
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, hub.RoomSize("p1"))

	send(t, c2, realtime.EventJoinPresentation, realtime.JoinPayload{PresentationID: "p1", Username: "bob"})
	// c1's next frame is the roster, not the pre-join title.
	assert.Len(t, readRoster(t, c1), 2)
}

func TestServeWsRejections(t *testing.T) {
	_, base := startRelay(t, fakeRoles{"u1": model.RoleCreator})

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws?presentationId=missing&user_id=u1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/ws?presentationId=p1&user_id=stranger", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/ws?user_id=u1", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
