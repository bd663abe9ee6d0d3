package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"quizdesk/internal/app"
)

// NewRouter wires the REST and websocket handlers.
func NewRouter(service *app.QuizService, log logrus.FieldLogger, allowedOrigins []string) http.Handler {
	api := NewAPIHandler(service, log)
	ws := NewWSHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/parse", api.Parse)
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", api.OpenSession)
		r.Get("/{id}", api.GetSession)
		r.Delete("/{id}", api.CloseSession)
		r.Post("/{id}/quiz", api.SubmitQuiz)
		r.Post("/{id}/answers", api.SelectAnswer)
	})
	r.Route("/quizzes", func(r chi.Router) {
		r.Get("/{id}", api.GetQuiz)
		r.Post("/{id}/sessions", api.StartStoredQuiz)
	})
	r.Get("/ws", ws.ServeWS)
	return r
}
