package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"slidesync/internal/presentation/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "tok")
}

func TestGetPresentation(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /presentation/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "p1", r.PathValue("id"))
		w.Write([]byte(`{"presentation":{"title":"Deck","Slides":[{"order":0,"TextBlocks":[{"content":"hi","x":10,"y":20,"width":30,"height":40}]}]}}`))
	})
	c := newServer(t, mux)

	doc, err := c.GetPresentation(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", doc.ID)
	assert.Equal(t, "Deck", doc.Title)
	require.Len(t, doc.Slides, 1)
	assert.Equal(t, model.TextBlock{Content: "hi", X: 10, Y: 20, Width: 30, Height: 40}, doc.Slides[0].TextBlocks[0])
}

func TestSavePresentationSendsLowercaseSlides(t *testing.T) {
	var got map[string]json.RawMessage
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /presentation/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("Presentation saved successfully"))
	})
	c := newServer(t, mux)

	doc := model.Presentation{ID: "p1", Title: "T", Slides: []model.Slide{{Order: 0, TextBlocks: []model.TextBlock{}}}}
	require.NoError(t, c.SavePresentation(context.Background(), "p1", doc))
	assert.JSONEq(t, `"T"`, string(got["title"]))
	assert.JSONEq(t, `[{"order":0,"TextBlocks":[]}]`, string(got["slides"]))
}

func TestStatusError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /presentation/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "permission denied", http.StatusForbidden)
	})
	c := newServer(t, mux)

	err := c.SavePresentation(context.Background(), "p1", model.Presentation{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, "permission denied", se.Body)
	assert.Contains(t, err.Error(), "403")
}

func TestRoleAndJoin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /participant/get/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"participant":{"userId":"u1","username":"alice","role":"editor"}}`))
	})
	mux.HandleFunc("POST /presentation/join/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"participant":{"userId":"u1","username":"alice","role":"viewer"}}`))
	})
	mux.HandleFunc("POST /presentation", func(w http.ResponseWriter, r *http.Request) {
		var req model.CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Q3", req.Title)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"new-id"}`))
	})
	mux.HandleFunc("PUT /participant/role/{id}", func(w http.ResponseWriter, r *http.Request) {
		var req model.RoleChangeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.RoleChangeRequest{UserID: "u2", Role: model.RoleEditor}, req)
	})
	mux.HandleFunc("GET /participant/list/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"userId":"u1","username":"alice","role":"creator"}]`))
	})
	c := newServer(t, mux)
	ctx := context.Background()

	role, err := c.GetRole(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleEditor, role)

	p, err := c.JoinPresentation(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleViewer, p.Role)

	id, err := c.CreatePresentation(ctx, "Q3")
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)

	require.NoError(t, c.ChangeRole(ctx, "p1", "u2", model.RoleEditor))

	list, err := c.Participants(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
