package pronunciation

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/speech-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/service/scoring"
	"github.com/zhouzirui/speech-coach/backend/pkg/utils"
)

const maxUploadBytes = 32 << 20 // 32MB max

// Scorer 抽象发音评分，便于测试与替换实现
type Scorer interface {
	Score(ctx context.Context, req scoring.Request) (conversation.AnalysisResult, error)
}

// Handler 发音评估的HTTP处理器
type Handler struct {
	scorer Scorer
}

// New 创建发音评估处理器
func New(scorer Scorer) *Handler {
	return &Handler{scorer: scorer}
}

// RegisterRoutes 注册发音评估相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/pronuncia/analisar", h.handleAnalyze)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	result, err := h.scorer.Score(r.Context(), scoring.Request{
		Audio:         audio,
		Format:        inferAudioFormat(header.Filename),
		ExpectedWords: r.FormValue("expectedWords"),
	})
	if err != nil {
		switch {
		case errors.Is(err, scoring.ErrExpectedWordsRequired), errors.Is(err, scoring.ErrEmptyAudio):
			utils.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, scoring.ErrTranscriptionFailed):
			log.Printf("[pronunciation] ASR error: %v", err)
			utils.RespondError(w, http.StatusBadGateway, "speech recognition failed")
		default:
			log.Printf("[pronunciation] scoring error: %v", err)
			utils.RespondError(w, http.StatusInternalServerError, "pronunciation analysis failed")
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, result)
}

// inferAudioFormat 从文件名推断音频格式
func inferAudioFormat(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp3":
		return "mp3"
	case ".ogg":
		return "ogg"
	case ".webm":
		return "webm"
	case ".pcm":
		return "pcm"
	default:
		return "wav"
	}
}
