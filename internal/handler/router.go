package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/speech-coach/backend/internal/handler/chat"
	"github.com/zhouzirui/speech-coach/backend/internal/handler/pronunciation"
	"github.com/zhouzirui/speech-coach/backend/internal/handler/specialist"
	middlewarePkg "github.com/zhouzirui/speech-coach/backend/internal/middleware"
	specialistModel "github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
	chatService "github.com/zhouzirui/speech-coach/backend/internal/service/chat"
	"github.com/zhouzirui/speech-coach/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(specialists specialistModel.Directory, chatSvc *chatService.Service, scorer pronunciation.Scorer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		})

		specialist.New(specialists).RegisterRoutes(api)
		chat.New(chatSvc).RegisterRoutes(api)

		if scorer != nil {
			pronunciation.New(scorer).RegisterRoutes(api)
		} else {
			api.Post("/pronuncia/analisar", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "pronunciation analysis unavailable")
			})
		}
	})

	return r
}
