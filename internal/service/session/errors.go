package session

import (
	"errors"

	"github.com/zhouzirui/speech-coach/backend/internal/service/analysis"
	"github.com/zhouzirui/speech-coach/backend/internal/service/binder"
	"github.com/zhouzirui/speech-coach/backend/internal/service/capture"
)

var (
	ErrNotBound             = errors.New("no specialist selected")
	ErrRecordingBusy        = errors.New("recording already in progress")
	ErrNotRecording         = errors.New("no recording in progress")
	ErrPracticeTextRequired = analysis.ErrPracticeTextRequired
)

// AnalysisUnavailable is the feedback appended when scoring fails.
const AnalysisUnavailable = "Análise indisponível no momento. Tente gravar novamente."

// UserMessage turns an error returned by the controller into text that can
// be shown to the patient.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return "Não foi possível acessar seu microfone. Verifique as permissões do dispositivo e tente novamente."
	case errors.Is(err, binder.ErrBindFailed):
		return "Não foi possível abrir a conversa com o especialista. Selecione o especialista novamente."
	case errors.Is(err, ErrNotBound):
		return "Selecione um especialista para começar."
	case errors.Is(err, ErrRecordingBusy):
		return "Aguarde o fim da gravação atual."
	case errors.Is(err, ErrPracticeTextRequired):
		return "Informe o texto de treino antes de gravar."
	case errors.Is(err, ErrNotRecording):
		return "Nenhuma gravação em andamento."
	default:
		return "Algo deu errado. Tente novamente."
	}
}
