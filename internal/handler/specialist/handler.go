package specialist

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	specialistModel "github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
	"github.com/zhouzirui/speech-coach/backend/pkg/utils"
)

// Handler 专家目录的HTTP处理器
type Handler struct {
	directory specialistModel.Directory
}

// New 创建专家目录处理器
func New(directory specialistModel.Directory) *Handler {
	return &Handler{directory: directory}
}

// RegisterRoutes 注册专家相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/especialistas", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.directory.ListSpecialists(r.Context())
	if err != nil {
		log.Printf("[specialist] list failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to list specialists")
		return
	}
	if items == nil {
		items = []specialistModel.Specialist{}
	}
	utils.RespondJSON(w, http.StatusOK, items)
}
