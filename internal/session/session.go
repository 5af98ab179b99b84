// Package session carries the identity of one editing session.
package session

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrDecode means a share link or session id could not be read.
var ErrDecode = errors.New("invalid share link")

type Session struct {
	PresentationID string
	UserID         string
	Username       string
	Token          string
}

func (s Session) Validate() error {
	if _, err := uuid.Parse(s.PresentationID); err != nil {
		return fmt.Errorf("%w: presentation id %q", ErrDecode, s.PresentationID)
	}
	if s.UserID == "" {
		return errors.New("session has no user")
	}
	return nil
}

// EncodeShareLink turns a presentation id into the token used in share links.
func EncodeShareLink(presentationID string) (string, error) {
	id, err := uuid.Parse(presentationID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return base64.RawURLEncoding.EncodeToString(id[:]), nil
}

// DecodeShareLink reverses EncodeShareLink. Padded tokens are accepted.
func DecodeShareLink(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(token), "="))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return id.String(), nil
}
