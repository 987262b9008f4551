package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	model "github.com/zhouzirui/speech-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/service/session"
)

// renderer prints entries the terminal has not shown yet.
type renderer struct {
	mu        sync.Mutex
	w         io.Writer
	seen      map[int64]bool
	sessionID string
	recording model.RecordingState
}

func newRenderer(w io.Writer) *renderer {
	return &renderer{w: w, seen: make(map[int64]bool), recording: model.RecordingIdle}
}

// Show is registered with session.Controller.OnChange.
func (r *renderer) Show(view session.View) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := view.SessionID
	if view.OfflinePreview {
		key = "offline"
	}
	if key != r.sessionID {
		r.sessionID = key
		r.seen = make(map[int64]bool)
		switch {
		case view.Phase == session.PhaseBound:
			fmt.Fprintf(r.w, "── Conversa com %s ──\n", view.Specialist.Name)
		case view.OfflinePreview:
			fmt.Fprintln(r.w, "── Conversa salva (somente leitura) ──")
		}
	}

	for _, entry := range view.Messages {
		if r.seen[entry.ID] {
			continue
		}
		r.seen[entry.ID] = true
		fmt.Fprintln(r.w, renderEntry(entry))
	}

	if view.Recording != r.recording {
		r.recording = view.Recording
		if view.Recording == model.RecordingAnalyzing {
			fmt.Fprintln(r.w, "Analisando sua pronúncia...")
		}
	}
}

func renderEntry(e model.Entry) string {
	who := "especialista"
	if e.Sender == model.SenderPatient {
		who = "você"
	}

	switch e.Kind {
	case model.KindAudio:
		line := fmt.Sprintf("[%d] %s: áudio %s", e.ID, who, e.Content)
		if e.PracticeTarget != "" {
			line += fmt.Sprintf(" (treino: %q)", e.PracticeTarget)
		}
		return line
	case model.KindFeedback:
		return fmt.Sprintf("[%d] avaliação:\n    %s", e.ID, strings.ReplaceAll(e.Content, "\n", "\n    "))
	default:
		return fmt.Sprintf("[%d] %s: %s", e.ID, who, e.Content)
	}
}
