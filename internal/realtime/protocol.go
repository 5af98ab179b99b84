package realtime

import (
	"encoding/json"

	"slidesync/internal/presentation/model"
)

const (
	EventJoinPresentation    = "join_presentation"    // client -> relay, first message on a socket
	EventParticipantUpdate   = "participant_update"   // relay -> client, full roster
	EventPresentationUpdated = "presentation_updated" // slide sequence changed (add/remove/reorder)
	EventSlideUpdated        = "slide_updated"        // block-level change, full slide sequence
	EventTitleUpdated        = "title_updated"        // title changed
)

// Message is the envelope for every frame on the relay socket.
type Message struct {
	Type           string          `json:"type"`
	PresentationID string          `json:"presentation_id"`
	UserID         string          `json:"user_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
}

type JoinPayload struct {
	PresentationID string `json:"presentationId"`
	Username       string `json:"username"`
}

type SlidesPayload struct {
	Slides []model.Slide `json:"slides"`
}

type TitlePayload struct {
	Title string `json:"title"`
}

// Encode marshals payload into a Message frame.
func Encode(eventType, presentationID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: eventType, PresentationID: presentationID, Payload: raw})
}
