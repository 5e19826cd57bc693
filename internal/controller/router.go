package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Group(func(r chi.Router) {
			r.Use(c.userMw)

			r.Route("/chatrooms", func(r chi.Router) {
				r.Get("/", c.listChatRooms)
				r.Post("/save", c.saveChatRoom)
				r.Get("/video/{video-id}", c.getChatRoomsByVideo)
				r.Route("/{room-id}", func(r chi.Router) {
					r.Get("/", c.getChatRoom)
					r.Delete("/", c.deleteChatRoom)
				})
			})

			r.Post("/videos", c.uploadVideo)

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/save", c.saveConversation)
				r.Get("/history", c.getHistory)
				r.Post("/search", c.searchConversations)
			})

			r.Route("/users/openai-key", func(r chi.Router) {
				r.Post("/test", c.testOpenAIKey)
				r.Post("/save", c.saveOpenAIKey)
				r.Get("/status", c.getOpenAIKeyStatus)
				r.Delete("/", c.deleteOpenAIKey)
			})

			r.Route("/ws", func(r chi.Router) {
				r.Get("/player", c.connectPlayer)
			})
		})
	})

	return r
}
