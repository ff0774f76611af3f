package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pmahattanasawat/resume-chat/backend/internal/config"
	chatHandler "github.com/pmahattanasawat/resume-chat/backend/internal/handler/chat"
	wsHandler "github.com/pmahattanasawat/resume-chat/backend/internal/handler/ws"
	middlewarePkg "github.com/pmahattanasawat/resume-chat/backend/internal/middleware"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/agent"
	"github.com/pmahattanasawat/resume-chat/backend/internal/service/memory"
)

// NewRouter wires HTTP routes to core services. agentSvc may be nil when the
// model is not configured; the chat endpoints then answer 503 while history
// and health keep working.
func NewRouter(agentSvc *agent.Service, mem *memory.Registry, agentCfg config.AgentConfig, corsCfg config.CORSConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(corsCfg.AllowedOrigins))

	var responder chatHandler.Responder
	if agentSvc != nil {
		responder = agentSvc
	}
	chat := chatHandler.New(responder, mem, agentCfg.RequestTimeout)

	r.Route("/api", func(api chi.Router) {
		chat.RegisterRoutes(api)

		if agentSvc != nil {
			ws := wsHandler.New(agentSvc, mem, agentCfg.RequestTimeout)
			ws.RegisterRoutes(api)
		}
	})

	return r
}
