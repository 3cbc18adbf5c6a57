package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quaero-ai/quaero/internal/api"
	"github.com/quaero-ai/quaero/internal/api/handlers"
	"github.com/quaero-ai/quaero/internal/api/middleware"
)

type RouterConfig struct {
	KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
	DocumentHandler      *handlers.DocumentHandler
	QuestionHandler      *handlers.QuestionHandler
	ConversationHandler  *handlers.ConversationHandler
	// MaxBodyBytes bounds request bodies; uploads are additionally
	// bounded by the document service
	MaxBodyBytes int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(cfg.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/knowledge-bases", func(r chi.Router) {
			r.Post("/", cfg.KnowledgeBaseHandler.Create)
			r.Get("/", cfg.KnowledgeBaseHandler.List)
			r.Get("/{id}", cfg.KnowledgeBaseHandler.Get)
			r.Delete("/{id}", cfg.KnowledgeBaseHandler.Delete)

			r.Post("/{id}/documents", cfg.DocumentHandler.Upload)
			r.Get("/{id}/documents", cfg.DocumentHandler.List)

			r.Post("/{id}/questions", cfg.QuestionHandler.Create)
			r.Get("/{id}/questions", cfg.QuestionHandler.List)
			r.Post("/{id}/questions/import", cfg.QuestionHandler.Import)

			r.Post("/{id}/conversations", cfg.ConversationHandler.Create)
			r.Get("/{id}/conversations", cfg.ConversationHandler.List)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Post("/{id}/resubmit", cfg.DocumentHandler.Resubmit)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Route("/questions", func(r chi.Router) {
			r.Get("/{id}", cfg.QuestionHandler.Get)
			r.Delete("/{id}", cfg.QuestionHandler.Delete)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/{id}", cfg.ConversationHandler.Get)
			r.Delete("/{id}", cfg.ConversationHandler.Delete)
			r.Post("/{id}/messages", cfg.ConversationHandler.Ask)
			r.Get("/{id}/messages", cfg.ConversationHandler.ListMessages)
		})

		r.Get("/messages/{id}", cfg.ConversationHandler.GetMessage)
	})

	return r
}
