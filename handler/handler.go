package handler

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"slipway/config"
	"slipway/consul"
	"slipway/dispatch"
	"slipway/hub"
	"slipway/platform"
	"slipway/saga"
	"slipway/storage"
	"slipway/store"
)

var validRunIDRe = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

type Handler struct {
	db         *store.DB
	platform   *platform.Client
	consul     *consul.Client
	ws         *hub.Hub
	cfg        *config.Config
	dispatcher *dispatch.Dispatcher
	sagaStore  saga.Store
	s3         *storage.Client
}

func New(db *store.DB, p *platform.Client, c *consul.Client, ws *hub.Hub, cfg *config.Config, d *dispatch.Dispatcher, ss saga.Store, s3 *storage.Client) *Handler {
	return &Handler{
		db:         db,
		platform:   p,
		consul:     c,
		ws:         ws,
		cfg:        cfg,
		dispatcher: d,
		sagaStore:  ss,
		s3:         s3,
	}
}

// ValidateRunID is middleware that rejects requests with invalid run IDs.
func ValidateRunID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id != "" && !validRunIDRe.MatchString(id) {
			http.Error(w, "invalid run id", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
