package scoring

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/zhouzirui/speech-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/service/ai"
)

var (
	ErrExpectedWordsRequired = errors.New("expected words are required")
	ErrEmptyAudio            = errors.New("audio is empty")
	ErrTranscriptionFailed   = errors.New("transcription failed")
)

// LimitedFeedback is returned when no transcriber is configured.
const LimitedFeedback = "Análise automática limitada: o reconhecimento de fala não está configurado. Sua gravação foi recebida."

// Transcriber converts recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)
}

// FeedbackWriter writes the feedback text for a scored attempt.
type FeedbackWriter interface {
	Write(ctx context.Context, in ai.FeedbackInput) (string, error)
}

// Request is one pronunciation attempt.
type Request struct {
	Audio         []byte
	Format        string
	ExpectedWords string
}

// Service scores pronunciation attempts. Both dependencies are optional.
type Service struct {
	transcriber Transcriber
	writer      FeedbackWriter
}

// NewService wires the scorer.
func NewService(transcriber Transcriber, writer FeedbackWriter) *Service {
	return &Service{transcriber: transcriber, writer: writer}
}

// Score transcribes the audio and compares it with the expected words.
func (s *Service) Score(ctx context.Context, req Request) (conversation.AnalysisResult, error) {
	expected := normalizeWords(req.ExpectedWords)
	if len(expected) == 0 {
		return conversation.AnalysisResult{}, ErrExpectedWordsRequired
	}
	if len(req.Audio) == 0 {
		return conversation.AnalysisResult{}, ErrEmptyAudio
	}

	if s.transcriber == nil {
		log.Printf("[scoring] no transcriber configured, returning limited analysis")
		return conversation.AnalysisResult{Feedback: LimitedFeedback}, nil
	}

	transcript, err := s.transcriber.Transcribe(ctx, req.Audio, req.Format)
	if err != nil {
		return conversation.AnalysisResult{}, fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}

	matched, missing := overlap(expected, normalizeWords(transcript))
	score := math.Round(float64(matched) * 100 / float64(len(expected)))
	log.Printf("[scoring] expected=%d matched=%d score=%.0f", len(expected), matched, score)

	feedback := s.feedback(ctx, ai.FeedbackInput{
		ExpectedWords: req.ExpectedWords,
		Transcript:    transcript,
		Score:         score,
		Missing:       missing,
	})
	return conversation.AnalysisResult{Score: &score, Feedback: feedback}, nil
}

func (s *Service) feedback(ctx context.Context, in ai.FeedbackInput) string {
	if s.writer != nil {
		text, err := s.writer.Write(ctx, in)
		if err == nil {
			return text
		}
		log.Printf("[scoring] feedback writer failed, using template: %v", err)
	}
	return templateFeedback(in.Score, in.Missing)
}

func templateFeedback(score float64, missing []string) string {
	switch {
	case score >= 85:
		return "Excelente pronúncia! Continue praticando assim."
	case score >= 60:
		return fmt.Sprintf("Bom trabalho! Preste atenção em: %s.", strings.Join(missing, ", "))
	case len(missing) > 0:
		return fmt.Sprintf("Vamos tentar de novo com calma. Repita devagar: %s.", strings.Join(missing, ", "))
	default:
		return "Vamos tentar de novo com calma."
	}
}
