package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
	"github.com/zhouzirui/speech-coach/backend/internal/service/analysis"
	"github.com/zhouzirui/speech-coach/backend/internal/service/capture"
	chatService "github.com/zhouzirui/speech-coach/backend/internal/service/chat"
	"github.com/zhouzirui/speech-coach/backend/internal/service/remote"
	"github.com/zhouzirui/speech-coach/backend/internal/service/scoring"
	"github.com/zhouzirui/speech-coach/backend/internal/service/syncer"
)

type echoTranscriber struct{ text string }

func (e echoTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return e.text, nil
}

func newServer(t *testing.T, scorer *scoring.Service) *httptest.Server {
	t.Helper()
	var router http.Handler
	if scorer != nil {
		router = NewRouter(specialist.NewMemoryStore(specialist.Seed()), chatService.NewService(nil), scorer)
	} else {
		router = NewRouter(specialist.NewMemoryStore(specialist.Seed()), chatService.NewService(nil), nil)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET err: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS header, got %q", got)
	}
}

func TestRemoteClientsAgainstRouter(t *testing.T) {
	srv := newServer(t, nil)
	ctx := context.Background()

	directory := remote.NewDirectoryClient(srv.URL, nil)
	items, err := directory.ListSpecialists(ctx)
	if err != nil {
		t.Fatalf("ListSpecialists err: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected seeded specialists")
	}

	persistence := remote.NewPersistenceClient(srv.URL, nil)
	rec, err := persistence.CreateOrGetSession(ctx, "p1", items[0].ID)
	if err != nil {
		t.Fatalf("CreateOrGetSession err: %v", err)
	}
	if rec.SessionID == "" || rec.Conversation != "[]" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	snap := syncer.Snapshot{
		SessionID:    rec.SessionID,
		PatientID:    "p1",
		SpecialistID: items[0].ID,
		Conversation: `[{"id":1,"type":"text","content":"oi","sender":"sent"}]`,
		Counter:      1,
	}
	if err := persistence.UpdateSession(ctx, snap); err != nil {
		t.Fatalf("UpdateSession err: %v", err)
	}

	again, err := persistence.CreateOrGetSession(ctx, "p1", items[0].ID)
	if err != nil {
		t.Fatalf("second CreateOrGetSession err: %v", err)
	}
	if again.SessionID != rec.SessionID || again.Conversation != snap.Conversation || again.Counter != 1 {
		t.Fatalf("expected stored conversation, got %+v", again)
	}

	listed, err := persistence.ListBySpecialist(ctx, items[0].ID)
	if err != nil || len(listed) != 1 {
		t.Fatalf("ListBySpecialist = %v, %v", listed, err)
	}
	if err := persistence.DeleteSession(ctx, rec.SessionID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
}

func TestAnalysisClientAgainstRouter(t *testing.T) {
	srv := newServer(t, scoring.NewService(echoTranscriber{text: "o rato roeu"}, nil))

	client := analysis.NewClient(srv.URL, nil)
	clip := capture.Clip{ID: "c1", Format: capture.PCM16Mono16k.Name, Data: []byte("RIFF"), Duration: time.Second}

	result, err := client.Analyze(context.Background(), clip, "O rato roeu")
	if err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	if result.Score == nil || *result.Score != 100 {
		t.Fatalf("unexpected score: %v", result.Score)
	}
	if result.Feedback == "" {
		t.Fatal("expected feedback text")
	}
}

func TestAnalysisUnavailableWithoutScorer(t *testing.T) {
	srv := newServer(t, nil)

	client := analysis.NewClient(srv.URL, nil)
	clip := capture.Clip{ID: "c1", Format: capture.PCM16Mono16k.Name, Data: []byte("RIFF")}

	if _, err := client.Analyze(context.Background(), clip, "bola"); err == nil {
		t.Fatal("expected analysis failure when scoring is not wired")
	}
}
