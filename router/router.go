package router

import (
	"database/sql"
	"net/http"

	"slidesync/config"
	presentationHandler "slidesync/internal/presentation"
	"slidesync/internal/presentation/repository"
	"slidesync/internal/presentation/service"
	"slidesync/middleware"
	"slidesync/socket"

	"github.com/gorilla/mux"
)

// Setup wires the REST API and the relay endpoint. The hub must be built on the
// same repository so the relay and the API agree on roles.
func Setup(db *sql.DB, cfg config.Config) (http.Handler, *socket.Hub) {
	repo := repository.NewPresentationRepository(db)
	hub := socket.NewHub(repo)
	svc := service.NewPresentationService(repo, hub)
	handler := presentationHandler.NewPresentationHandler(svc)

	r := mux.NewRouter()
	r.Use(middleware.WithLogging)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	api.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, middleware.UserID(r.Context()), middleware.Username(r.Context()))
	})
	handler.Register(api)

	return middleware.CORSMiddleware(cfg.AllowedOrigin)(r), hub
}
