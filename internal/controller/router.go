package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sharetube/watchparty/internal/metrics"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Handle("/metrics", metrics.Handler())
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		r.Route("/party", func(r chi.Router) {
			r.Get("/", c.getParty)
			r.Post("/host", c.hostParty)
			r.Post("/join", c.joinParty)
			r.Post("/leave", c.leaveParty)
			r.Get("/participants", c.getParticipants)
		})
		r.Route("/player", func(r chi.Router) {
			r.Post("/toggle", c.togglePlayPause)
			r.Post("/seek", c.seek)
			r.Post("/forward", c.seekForward)
			r.Post("/backward", c.seekBackward)
		})
		r.Get("/ws/events", c.subscribeEvents)
	})

	return r
}
