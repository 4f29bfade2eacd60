package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sharetube/jukebox/internal/metrics"
)

func (c *controller) GetMux() http.Handler {
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

		r.Get("/ws/rooms/{room-id}", c.serveWS)

		r.Route("/rooms", func(r chi.Router) {
			r.Use(c.userIdMw)

			r.Post("/", c.createRoom)
			r.Route("/{room-id}", func(r chi.Router) {
				r.Get("/", c.getRoom)
				r.Delete("/", c.closeRoom)
				r.Put("/settings", c.updateSettings)

				r.Post("/members", c.joinRoom)
				r.Delete("/members", c.leaveRoom)
				r.Put("/hosts/{user-id}", c.setHost)

				r.Post("/queue", c.addToQueue)
				r.Delete("/queue/{entry-id}", c.removeFromQueue)

				r.Post("/rotation", c.joinRotation)
				r.Delete("/rotation", c.leaveRotation)
				r.Post("/rotation/queue", c.addToRotationQueue)
				r.Delete("/rotation/queue/{entry-id}", c.removeFromRotationQueue)

				r.Route("/player", func(r chi.Router) {
					r.Get("/position", c.getPosition)
					r.Post("/track", c.changeTrack)
					r.Post("/skip", c.skip)
					r.Post("/pause", c.pause)
					r.Post("/resume", c.resume)
					r.Post("/seek", c.seek)
				})

				r.Get("/votes", c.getVotes)
				r.Post("/votes", c.vote)
				r.Delete("/votes", c.unvote)
			})
		})
	})

	return r
}
