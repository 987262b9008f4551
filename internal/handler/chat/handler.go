package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/speech-coach/backend/internal/service/chat"
	"github.com/zhouzirui/speech-coach/backend/pkg/utils"
)

// Handler 聊天记录的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chats", func(chats chi.Router) {
		chats.Post("/", h.handleCreateOrGet)
		chats.Get("/especialista/{specialistID}", h.handleListBySpecialist)
		chats.Get("/{id}", h.handleGet)
		chats.Put("/{id}", h.handleUpdate)
		chats.Delete("/{id}", h.handleDelete)
	})
}

type chatPayload struct {
	PatientID    string `json:"clienteId"`
	SpecialistID string `json:"especialistaId"`
	Conversation string `json:"conversa"`
	Counter      int64  `json:"duracao"`
}

// handleCreateOrGet 创建会话，已存在时直接返回
func (h *Handler) handleCreateOrGet(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, created, err := h.chatSvc.CreateOrGet(r.Context(), payload.PatientID, payload.SpecialistID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	utils.RespondJSON(w, status, record)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	record, err := h.chatSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, record)
}

// handleUpdate 覆盖保存会话内容
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var payload chatPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.chatSvc.Update(r.Context(), chi.URLParam(r, "id"), chatService.Update{
		Conversation: payload.Conversation,
		Counter:      payload.Counter,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, record)
}

func (h *Handler) handleListBySpecialist(w http.ResponseWriter, r *http.Request) {
	records, err := h.chatSvc.ListBySpecialist(r.Context(), chi.URLParam(r, "specialistID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, records)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.chatSvc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondNoContent(w)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrParticipantsRequired):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatService.ErrSessionNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	default:
		log.Printf("[chat] request failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "chat storage failed")
	}
}
