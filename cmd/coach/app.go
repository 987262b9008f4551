package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/zhouzirui/speech-coach/backend/internal/auth"
	"github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
	"github.com/zhouzirui/speech-coach/backend/internal/service/capture"
	"github.com/zhouzirui/speech-coach/backend/internal/service/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/service/remote"
	"github.com/zhouzirui/speech-coach/backend/internal/service/session"
)

const helpText = `Comandos:
  /especialistas         lista os especialistas
  /escolher <id>         abre a conversa com um especialista
  /treino <texto>        define as palavras do próximo treino
  /gravar <arquivo>      começa a gravar a partir de um arquivo de áudio
  /parar                 encerra a gravação e envia para análise
  /apagar <id>           apaga uma mensagem sua
  /limpar                apaga toda a conversa
  /painel                lista as conversas dos seus pacientes (especialistas)
  /excluir <conversa>    exclui uma conversa do servidor (especialistas)
  /sair                  encerra
Qualquer outro texto é enviado como mensagem.`

// controller is the part of session.Controller the terminal drives.
type controller interface {
	SelectSpecialist(ctx context.Context, specialistID string) error
	SendText(text string) error
	SetPracticeText(text string)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) error
	DeleteMessage(id int64) error
	ClearConversation(ctx context.Context) error
}

// chats is the specialist-side view of the persistence service.
type chats interface {
	ListBySpecialist(ctx context.Context, specialistID string) ([]remote.ChatRecord, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type app struct {
	ctrl      controller
	directory specialist.Directory
	chats     chats
	identity  auth.Identity
	source    *fileSource
	out       io.Writer
}

// parseCommand splits "/cmd arg..." into its name and argument. Plain text
// yields an empty name.
func parseCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	name, arg, _ := strings.Cut(line, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

// handle runs one input line and reports whether the loop should go on.
func (a *app) handle(ctx context.Context, line string) bool {
	name, arg := parseCommand(line)

	var err error
	switch name {
	case "":
		err = a.ctrl.SendText(arg)
	case "/sair":
		return false
	case "/ajuda":
		fmt.Fprintln(a.out, helpText)
	case "/especialistas":
		err = a.listSpecialists(ctx)
	case "/escolher":
		if arg == "" {
			fmt.Fprintln(a.out, "Uso: /escolher <id>")
			return true
		}
		err = a.ctrl.SelectSpecialist(ctx, arg)
	case "/treino":
		a.ctrl.SetPracticeText(arg)
		fmt.Fprintf(a.out, "Texto de treino: %q\n", arg)
	case "/gravar":
		if arg == "" {
			fmt.Fprintln(a.out, "Uso: /gravar <arquivo>")
			return true
		}
		a.source.Use(arg)
		if err = a.ctrl.StartRecording(ctx); err == nil {
			fmt.Fprintln(a.out, "Gravando... use /parar para enviar.")
		}
	case "/parar":
		err = a.ctrl.StopRecording(ctx)
	case "/apagar":
		id, perr := strconv.ParseInt(arg, 10, 64)
		if perr != nil {
			fmt.Fprintln(a.out, "Uso: /apagar <id>")
			return true
		}
		err = a.ctrl.DeleteMessage(id)
	case "/limpar":
		err = a.ctrl.ClearConversation(ctx)
	case "/painel":
		if !a.specialistOnly() {
			return true
		}
		err = a.listChats(ctx)
	case "/excluir":
		if !a.specialistOnly() {
			return true
		}
		if arg == "" {
			fmt.Fprintln(a.out, "Uso: /excluir <conversa>")
			return true
		}
		if err = a.chats.DeleteSession(ctx, arg); err == nil {
			fmt.Fprintf(a.out, "Conversa %s excluída.\n", arg)
		}
	default:
		fmt.Fprintf(a.out, "Comando desconhecido: %s. Digite /ajuda.\n", name)
	}

	if err != nil {
		fmt.Fprintln(a.out, session.UserMessage(err))
	}
	return true
}

func (a *app) listSpecialists(ctx context.Context) error {
	items, err := a.directory.ListSpecialists(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Fprintf(a.out, "  %s  %s (%s)\n", item.ID, item.Name, item.Specialty)
	}
	return nil
}

func (a *app) specialistOnly() bool {
	if a.identity.Role != auth.RoleSpecialist || a.chats == nil {
		fmt.Fprintln(a.out, "Disponível apenas para especialistas.")
		return false
	}
	return true
}

// listChats prints every conversation stored for the signed-in specialist.
func (a *app) listChats(ctx context.Context) error {
	records, err := a.chats.ListBySpecialist(ctx, a.identity.UserID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "Nenhuma conversa registrada.")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(a.out, "── Conversa %s com paciente %s ──\n", rec.ID, rec.PatientID)
		entries, err := conversation.Decode(rec.Conversation)
		if err != nil {
			fmt.Fprintln(a.out, "  (conversa ilegível)")
			continue
		}
		for _, entry := range entries {
			fmt.Fprintln(a.out, "  "+renderEntry(entry))
		}
	}
	return nil
}

// fileSource is a capture.Device whose file is chosen before each recording.
type fileSource struct {
	mu   sync.Mutex
	path string
}

func (s *fileSource) Use(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
}

func (s *fileSource) Open(ctx context.Context) (capture.Stream, error) {
	s.mu.Lock()
	device := &capture.FileDevice{Path: s.path}
	s.mu.Unlock()
	return device.Open(ctx)
}
