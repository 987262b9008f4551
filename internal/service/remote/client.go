package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
	"github.com/zhouzirui/speech-coach/backend/internal/service/binder"
	"github.com/zhouzirui/speech-coach/backend/internal/service/syncer"
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// ChatRecord is the wire form of a chat on the backend.
type ChatRecord struct {
	ID           string `json:"id,omitempty"`
	PatientID    string `json:"clienteId"`
	SpecialistID string `json:"especialistaId"`
	Conversation string `json:"conversa"`
	Counter      int64  `json:"duracao"`
}

type base struct {
	baseURL    string
	httpClient *http.Client
}

func newBase(baseURL string, httpClient *http.Client) base {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return base{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (b base) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// PersistenceClient talks to the chat endpoints of the backend.
type PersistenceClient struct {
	base
}

// NewPersistenceClient returns a client rooted at baseURL.
func NewPersistenceClient(baseURL string, httpClient *http.Client) *PersistenceClient {
	return &PersistenceClient{base: newBase(baseURL, httpClient)}
}

// CreateOrGetSession satisfies binder.Persistence.
func (c *PersistenceClient) CreateOrGetSession(ctx context.Context, patientID, specialistID string) (binder.Record, error) {
	var rec ChatRecord
	in := ChatRecord{PatientID: patientID, SpecialistID: specialistID}
	if err := c.do(ctx, http.MethodPost, "/api/chats", in, &rec); err != nil {
		return binder.Record{}, err
	}
	return binder.Record{
		SessionID:    rec.ID,
		PatientID:    rec.PatientID,
		SpecialistID: rec.SpecialistID,
		Conversation: rec.Conversation,
		Counter:      rec.Counter,
	}, nil
}

// UpdateSession satisfies syncer.Writer.
func (c *PersistenceClient) UpdateSession(ctx context.Context, snap syncer.Snapshot) error {
	in := ChatRecord{
		ID:           snap.SessionID,
		PatientID:    snap.PatientID,
		SpecialistID: snap.SpecialistID,
		Conversation: snap.Conversation,
		Counter:      snap.Counter,
	}
	return c.do(ctx, http.MethodPut, "/api/chats/"+url.PathEscape(snap.SessionID), in, nil)
}

// ListBySpecialist returns every chat of a specialist.
func (c *PersistenceClient) ListBySpecialist(ctx context.Context, specialistID string) ([]ChatRecord, error) {
	var out []ChatRecord
	if err := c.do(ctx, http.MethodGet, "/api/chats/especialista/"+url.PathEscape(specialistID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSession removes a chat.
func (c *PersistenceClient) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(sessionID), nil, nil)
}

// DirectoryClient lists specialists from the backend.
type DirectoryClient struct {
	base
}

// NewDirectoryClient returns a client rooted at baseURL.
func NewDirectoryClient(baseURL string, httpClient *http.Client) *DirectoryClient {
	return &DirectoryClient{base: newBase(baseURL, httpClient)}
}

// ListSpecialists satisfies specialist.Directory.
func (c *DirectoryClient) ListSpecialists(ctx context.Context) ([]specialist.Specialist, error) {
	var out []specialist.Specialist
	if err := c.do(ctx, http.MethodGet, "/api/especialistas", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
