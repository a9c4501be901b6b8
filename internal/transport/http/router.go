package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter mounts the REST API under /v1, the websocket endpoint at /ws, and a health check.
func NewRouter(games *GameHandler, ws *WSHandler, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/games", games.Create).Methods(http.MethodPost)
	v1.HandleFunc("/games", games.List).Methods(http.MethodGet)
	v1.HandleFunc("/games/{code}", games.Get).Methods(http.MethodGet)
	v1.HandleFunc("/games/{code}/players", games.Join).Methods(http.MethodPost)
	v1.HandleFunc("/games/{code}/players", games.Players).Methods(http.MethodGet)
	v1.HandleFunc("/games/{code}/players/{name}", games.Leave).Methods(http.MethodDelete)
	v1.HandleFunc("/games/{code}/status", games.Status).Methods(http.MethodGet)
	v1.HandleFunc("/games/{code}/questions", games.Questions).Methods(http.MethodPut)
	v1.HandleFunc("/games/{code}/generation", games.Generation).Methods(http.MethodPost)

	r.HandleFunc("/ws", ws.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
		},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}
