package specialist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	specialistModel "github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
)

type failingDirectory struct{}

func (failingDirectory) ListSpecialists(context.Context) ([]specialistModel.Specialist, error) {
	return nil, errors.New("db down")
}

func serve(dir specialistModel.Directory) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	New(dir).RegisterRoutes(r)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/especialistas", nil))
	return resp
}

func TestListSpecialists(t *testing.T) {
	resp := serve(specialistModel.NewMemoryStore(specialistModel.Seed()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var items []map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if len(items) != len(specialistModel.Seed()) {
		t.Fatalf("expected %d specialists, got %d", len(specialistModel.Seed()), len(items))
	}
	if items[0]["nome"] == "" || items[0]["especialidade"] == "" {
		t.Fatalf("expected pt-BR field names, got %v", items[0])
	}
}

func TestListSpecialistsEmpty(t *testing.T) {
	resp := serve(specialistModel.NewMemoryStore(nil))
	if body := resp.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty array, got %q", body)
	}
}

func TestListSpecialistsFailure(t *testing.T) {
	if resp := serve(failingDirectory{}); resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
}
