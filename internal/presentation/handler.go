package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"slidesync/internal/presentation/model"
	"slidesync/internal/presentation/repository"
	"slidesync/internal/presentation/service"
	"slidesync/internal/rolegate"
	"slidesync/middleware"
	"slidesync/pkg/logger"

	"github.com/gorilla/mux"
)

type PresentationHandler struct {
	Service *service.PresentationService
}

func NewPresentationHandler(service *service.PresentationService) *PresentationHandler {
	return &PresentationHandler{Service: service}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Sugar.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrNotParticipant), errors.Is(err, rolegate.ErrPermissionDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrEmptyPresentation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Sugar.Errorf("Handler: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// POST /presentation
func (h *PresentationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // empty body means default title

	id, err := h.Service.Create(r.Context(), middleware.UserID(r.Context()), middleware.Username(r.Context()), req.Title)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create presentation: %v", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.CreateResponse{ID: id})
}

// GET /presentation/{id}
func (h *PresentationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	doc, err := h.Service.Get(r.Context(), id, middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.PresentationResponse{Presentation: doc})
}

// PUT /presentation/{id}
func (h *PresentationHandler) Save(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req model.SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.Save(r.Context(), id, middleware.UserID(r.Context()), req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Presentation saved successfully"))
}

// DELETE /presentation/{id}
func (h *PresentationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Service.Delete(r.Context(), id, middleware.UserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Presentation deleted successfully"))
}

// GET /participant/get/{presentationId}
func (h *PresentationHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["presentationId"]
	p, err := h.Service.Role(r.Context(), id, middleware.UserID(r.Context()), middleware.Username(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ParticipantResponse{Participant: p})
}

// POST /presentation/join/{id}
func (h *PresentationHandler) Join(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := h.Service.Join(r.Context(), id, middleware.UserID(r.Context()), middleware.Username(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ParticipantResponse{Participant: p})
}

// PUT /participant/role/{presentationId}
func (h *PresentationHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["presentationId"]
	var req model.RoleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.ChangeRole(r.Context(), id, middleware.UserID(r.Context()), req); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Role updated successfully"))
}

// GET /participant/list/{presentationId}
func (h *PresentationHandler) Participants(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["presentationId"]
	list, err := h.Service.Participants(r.Context(), id, middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Register mounts the presentation routes on r.
func (h *PresentationHandler) Register(r *mux.Router) {
	r.HandleFunc("/presentation", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/presentation/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/presentation/{id}", h.Save).Methods(http.MethodPut)
	r.HandleFunc("/presentation/{id}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/presentation/join/{id}", h.Join).Methods(http.MethodPost)
	r.HandleFunc("/participant/get/{presentationId}", h.GetRole).Methods(http.MethodGet)
	r.HandleFunc("/participant/role/{presentationId}", h.ChangeRole).Methods(http.MethodPut)
	r.HandleFunc("/participant/list/{presentationId}", h.Participants).Methods(http.MethodGet)
}
