package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/mindharbor/backend/internal/handler/chat"
	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	middlewarePkg "github.com/zhouzirui/mindharbor/backend/internal/middleware"
	"github.com/zhouzirui/mindharbor/backend/internal/service/session"
	"github.com/zhouzirui/mindharbor/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(orchestrator chat.Orchestrator, sessions session.Store, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(orchestrator, sessions, log)

	r.Route("/api", func(api chi.Router) {
		// 存活探针，不经过对话流程
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		chatHandler.RegisterRoutes(api)
	})

	return r
}
