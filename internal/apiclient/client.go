// Package apiclient talks to the presentation REST API on behalf of the editor.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slidesync/internal/presentation/model"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, e.Body)
	}
	return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient normalizes baseURL and uses a 10s request timeout.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *Client) GetPresentation(ctx context.Context, id string) (model.Presentation, error) {
	var resp model.PresentationResponse
	if err := c.doJSON(ctx, http.MethodGet, "/presentation/"+url.PathEscape(id), nil, &resp); err != nil {
		return model.Presentation{}, err
	}
	if resp.Presentation.ID == "" {
		resp.Presentation.ID = id
	}
	return resp.Presentation, nil
}

// SavePresentation sends the full document; the server keeps the last write.
func (c *Client) SavePresentation(ctx context.Context, id string, doc model.Presentation) error {
	req := model.SaveRequest{Title: doc.Title, Slides: doc.Slides}
	return c.doJSON(ctx, http.MethodPut, "/presentation/"+url.PathEscape(id), req, nil)
}

func (c *Client) GetRole(ctx context.Context, id string) (model.Role, error) {
	var resp model.ParticipantResponse
	if err := c.doJSON(ctx, http.MethodGet, "/participant/get/"+url.PathEscape(id), nil, &resp); err != nil {
		return "", err
	}
	return model.ParseRole(string(resp.Participant.Role)), nil
}

func (c *Client) JoinPresentation(ctx context.Context, id string) (model.Participant, error) {
	var resp model.ParticipantResponse
	if err := c.doJSON(ctx, http.MethodPost, "/presentation/join/"+url.PathEscape(id), nil, &resp); err != nil {
		return model.Participant{}, err
	}
	return resp.Participant, nil
}

func (c *Client) CreatePresentation(ctx context.Context, title string) (string, error) {
	var resp model.CreateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/presentation", model.CreateRequest{Title: title}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) ChangeRole(ctx context.Context, id, userID string, role model.Role) error {
	req := model.RoleChangeRequest{UserID: userID, Role: role}
	return c.doJSON(ctx, http.MethodPut, "/participant/role/"+url.PathEscape(id), req, nil)
}

func (c *Client) Participants(ctx context.Context, id string) ([]model.Participant, error) {
	var list []model.Participant
	if err := c.doJSON(ctx, http.MethodGet, "/participant/list/"+url.PathEscape(id), nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}
