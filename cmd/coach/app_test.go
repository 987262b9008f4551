package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zhouzirui/speech-coach/backend/internal/auth"
	model "github.com/zhouzirui/speech-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
	"github.com/zhouzirui/speech-coach/backend/internal/service/capture"
	"github.com/zhouzirui/speech-coach/backend/internal/service/remote"
	"github.com/zhouzirui/speech-coach/backend/internal/service/session"
)

type fakeController struct {
	calls    []string
	practice string
	err      error
}

func (f *fakeController) SelectSpecialist(_ context.Context, id string) error {
	f.calls = append(f.calls, "select:"+id)
	return f.err
}

func (f *fakeController) SendText(text string) error {
	f.calls = append(f.calls, "text:"+text)
	return f.err
}

func (f *fakeController) SetPracticeText(text string) { f.practice = text }

func (f *fakeController) StartRecording(context.Context) error {
	f.calls = append(f.calls, "start")
	return f.err
}

func (f *fakeController) StopRecording(context.Context) error {
	f.calls = append(f.calls, "stop")
	return f.err
}

func (f *fakeController) DeleteMessage(id int64) error {
	f.calls = append(f.calls, "delete")
	return f.err
}

func (f *fakeController) ClearConversation(context.Context) error {
	f.calls = append(f.calls, "clear")
	return f.err
}

type fakeChats struct {
	records []remote.ChatRecord
	listed  string
	deleted []string
	err     error
}

func (f *fakeChats) ListBySpecialist(_ context.Context, specialistID string) ([]remote.ChatRecord, error) {
	f.listed = specialistID
	return f.records, f.err
}

func (f *fakeChats) DeleteSession(_ context.Context, sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	return f.err
}

func newTestApp(ctrl controller) (*app, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &app{
		ctrl:      ctrl,
		directory: specialist.NewMemoryStore(specialist.Seed()),
		chats:     &fakeChats{},
		identity:  auth.Identity{UserID: "patient-1", Role: auth.RolePatient},
		source:    &fileSource{},
		out:       out,
	}, out
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		line, name, arg string
	}{
		{"olá", "", "olá"},
		{"  /Escolher  ana-souza ", "/escolher", "ana-souza"},
		{"/treino o rato roeu", "/treino", "o rato roeu"},
		{"/sair", "/sair", ""},
	}
	for _, tc := range cases {
		name, arg := parseCommand(tc.line)
		if name != tc.name || arg != tc.arg {
			t.Fatalf("parseCommand(%q) = %q, %q", tc.line, name, arg)
		}
	}
}

func TestHandleDispatches(t *testing.T) {
	ctrl := &fakeController{}
	a, _ := newTestApp(ctrl)
	ctx := context.Background()

	for _, line := range []string{"/escolher ana-souza", "oi", "/treino pato", "/gravar clip.wav", "/parar", "/apagar 2", "/limpar"} {
		if !a.handle(ctx, line) {
			t.Fatalf("handle(%q) stopped the loop", line)
		}
	}
	want := []string{"select:ana-souza", "text:oi", "start", "stop", "delete", "clear"}
	if strings.Join(ctrl.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", ctrl.calls, want)
	}
	if ctrl.practice != "pato" || a.source.path != "clip.wav" {
		t.Fatalf("practice=%q path=%q", ctrl.practice, a.source.path)
	}
	if a.handle(ctx, "/sair") {
		t.Fatal("expected /sair to stop the loop")
	}
}

func TestHandlePrintsUserMessage(t *testing.T) {
	ctrl := &fakeController{err: capture.ErrDeviceUnavailable}
	a, out := newTestApp(ctrl)

	a.handle(context.Background(), "/gravar missing.wav")
	if !strings.Contains(out.String(), "microfone") {
		t.Fatalf("expected microphone instructions, got %q", out.String())
	}
}

func TestHandleUsageErrors(t *testing.T) {
	ctrl := &fakeController{err: errors.New("unused")}
	a, out := newTestApp(ctrl)

	a.handle(context.Background(), "/apagar abc")
	a.handle(context.Background(), "/escolher")
	if len(ctrl.calls) != 0 {
		t.Fatalf("expected no controller calls, got %v", ctrl.calls)
	}
	if !strings.Contains(out.String(), "Uso: /apagar") || !strings.Contains(out.String(), "Uso: /escolher") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestListSpecialists(t *testing.T) {
	a, out := newTestApp(&fakeController{})

	a.handle(context.Background(), "/especialistas")
	if !strings.Contains(out.String(), "ana-souza") {
		t.Fatalf("expected specialist list, got %q", out.String())
	}
}

func TestRendererPrintsNewEntriesOnce(t *testing.T) {
	out := &bytes.Buffer{}
	r := newRenderer(out)
	view := session.View{
		Phase:      session.PhaseBound,
		SessionID:  "s1",
		Specialist: specialist.Specialist{Name: "Dra. Ana Souza"},
		Messages: []model.Entry{
			{ID: 1, Kind: model.KindText, Sender: model.SenderSystem, Content: "Olá!"},
		},
	}
	r.Show(view)
	view.Messages = append(view.Messages, model.Entry{ID: 2, Kind: model.KindAudio, Sender: model.SenderPatient, Content: "file:///c.wav", PracticeTarget: "pato"})
	r.Show(view)

	got := out.String()
	if strings.Count(got, "Olá!") != 1 {
		t.Fatalf("greeting printed more than once: %q", got)
	}
	if !strings.Contains(got, "Dra. Ana Souza") || !strings.Contains(got, `(treino: "pato")`) {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRenderFeedbackEntry(t *testing.T) {
	got := renderEntry(model.Entry{ID: 3, Kind: model.KindFeedback, Sender: model.SenderSystem, Content: "Pontuação: 87/100\nMuito bem!"})
	if got != "[3] avaliação:\n    Pontuação: 87/100\n    Muito bem!" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestPanelListsSpecialistChats(t *testing.T) {
	a, out := newTestApp(&fakeController{})
	store := &fakeChats{records: []remote.ChatRecord{
		{ID: "chat-1", PatientID: "patient-1", SpecialistID: "ana-souza", Conversation: `[{"id":1,"type":"text","sender":"sent","content":"bom dia"}]`},
		{ID: "chat-2", PatientID: "patient-2", SpecialistID: "ana-souza", Conversation: "{corrompido"},
	}}
	a.chats = store
	a.identity = auth.Identity{UserID: "ana-souza", Role: auth.RoleSpecialist}

	a.handle(context.Background(), "/painel")
	if store.listed != "ana-souza" {
		t.Fatalf("listed chats for %q", store.listed)
	}
	got := out.String()
	for _, want := range []string{"chat-1", "você: bom dia", "chat-2", "conversa ilegível"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in %q", want, got)
		}
	}
}

func TestDeleteChatRequiresSpecialist(t *testing.T) {
	a, out := newTestApp(&fakeController{})
	store := a.chats.(*fakeChats)

	a.handle(context.Background(), "/excluir chat-1")
	a.handle(context.Background(), "/painel")
	if len(store.deleted) != 0 || store.listed != "" {
		t.Fatalf("patient reached the specialist commands: %+v", store)
	}
	if strings.Count(out.String(), "apenas para especialistas") != 2 {
		t.Fatalf("unexpected output: %q", out.String())
	}

	a.identity.Role = auth.RoleSpecialist
	a.handle(context.Background(), "/excluir chat-1")
	if len(store.deleted) != 1 || store.deleted[0] != "chat-1" {
		t.Fatalf("deleted = %v", store.deleted)
	}
	if !strings.Contains(out.String(), "Conversa chat-1 excluída.") {
		t.Fatalf("missing confirmation: %q", out.String())
	}
}
