package model

import (
	"encoding/json"
	"strings"
	"time"
)

type Role string

const (
	RoleCreator Role = "creator"
	RoleEditor  Role = "editor"
	RoleViewer  Role = "viewer"
)

// ParseRole maps a stored or wire role string to a Role. Unknown values are viewers.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleCreator:
		return RoleCreator
	case RoleEditor:
		return RoleEditor
	default:
		return RoleViewer
	}
}

func (r Role) Valid() bool {
	return r == RoleCreator || r == RoleEditor || r == RoleViewer
}

// TextBlock coordinates are percentages of the slide container.
// x+width and y+height are not clamped to 100.
type TextBlock struct {
	Content string  `json:"content"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

type Slide struct {
	Order      int         `json:"order"`
	TextBlocks []TextBlock `json:"TextBlocks"`
}

type Presentation struct {
	ID     string  `json:"id,omitempty"`
	Title  string  `json:"title"`
	Slides []Slide `json:"Slides"`
}

type Participant struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// PresentationResponse is the body of GET /presentation/{id}.
type PresentationResponse struct {
	Presentation Presentation `json:"presentation"`
}

// SaveRequest is the body of PUT /presentation/{id}.
type SaveRequest struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

type CreateRequest struct {
	Title string `json:"title"`
}

type CreateResponse struct {
	ID string `json:"id"`
}

// ParticipantResponse is the body of GET /participant/get/{id} and POST /presentation/join/{id}.
type ParticipantResponse struct {
	Participant Participant `json:"participant"`
}

type RoleChangeRequest struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// PresentationRecord is the stored row.
type PresentationRecord struct {
	ID        string
	Title     string
	OwnerID   string
	Slides    json.RawMessage
	UpdatedAt time.Time
}
