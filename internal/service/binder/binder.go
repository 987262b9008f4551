package binder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	model "github.com/zhouzirui/speech-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
	"github.com/zhouzirui/speech-coach/backend/internal/service/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/service/syncer"
)

// ErrBindFailed wraps every failure to resolve or create a session record.
var ErrBindFailed = errors.New("session bind failed")

// Record is the persistence service's view of a session.
type Record struct {
	SessionID    string
	PatientID    string
	SpecialistID string
	Conversation string
	Counter      int64
}

// Persistence creates or fetches the session record for a participant pair.
// Repeated calls with the same pair must return the same session id.
type Persistence interface {
	CreateOrGetSession(ctx context.Context, patientID, specialistID string) (Record, error)
}

// Binding is an attached session together with its hydrated log.
type Binding struct {
	SessionID  string
	PatientID  string
	Specialist specialist.Specialist
	Log        *conversation.Log
	// Seeded is set when the greeting was added locally and still needs to
	// reach the remote record.
	Seeded bool
}

// Bound reports whether b refers to a live remote session.
func (b *Binding) Bound() bool {
	return b != nil && b.SessionID != ""
}

// Snapshot captures the full state to write back.
func (b *Binding) Snapshot() syncer.Snapshot {
	return syncer.Snapshot{
		SessionID:    b.SessionID,
		PatientID:    b.PatientID,
		SpecialistID: b.Specialist.ID,
		Conversation: b.Log.Serialize(),
		Counter:      b.Log.Counter(),
	}
}

// Binder attaches the current patient to a specialist's session.
type Binder struct {
	store     Persistence
	directory specialist.Directory
}

// New returns a Binder. directory may be nil, in which case specialists are
// known only by id.
func New(store Persistence, directory specialist.Directory) *Binder {
	return &Binder{store: store, directory: directory}
}

// Bind resolves the session for (patientID, specialistID) and hydrates its
// log. An empty conversation is seeded with a greeting from the specialist.
func (b *Binder) Bind(ctx context.Context, patientID, specialistID string) (*Binding, error) {
	patientID = strings.TrimSpace(patientID)
	specialistID = strings.TrimSpace(specialistID)
	if patientID == "" || specialistID == "" {
		return nil, fmt.Errorf("%w: patient and specialist are required", ErrBindFailed)
	}

	who, err := b.resolve(ctx, specialistID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBindFailed, err)
	}

	rec, err := b.store.CreateOrGetSession(ctx, patientID, specialistID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBindFailed, err)
	}
	if rec.SessionID == "" {
		return nil, fmt.Errorf("%w: persistence returned no session id", ErrBindFailed)
	}

	entries := conversation.NewLog()
	if err := entries.Hydrate(rec.Conversation); err != nil {
		log.Printf("[binder] session %s: %v; starting empty", rec.SessionID, err)
	}
	entries.Advance(rec.Counter)

	binding := &Binding{
		SessionID:  rec.SessionID,
		PatientID:  patientID,
		Specialist: who,
		Log:        entries,
	}
	if entries.Len() == 0 {
		entries.Append(model.Entry{
			Kind:    model.KindText,
			Sender:  model.SenderSystem,
			Content: Greeting(who),
		})
		binding.Seeded = true
	}

	log.Printf("[binder] bound patient=%s specialist=%s session=%s entries=%d", patientID, specialistID, rec.SessionID, entries.Len())
	return binding, nil
}

// Unbind detaches binding and drops its log.
func (b *Binder) Unbind(binding *Binding) {
	if binding == nil {
		return
	}
	binding.SessionID = ""
	binding.Seeded = false
	binding.Log = conversation.NewLog()
}

func (b *Binder) resolve(ctx context.Context, id string) (specialist.Specialist, error) {
	if b.directory == nil {
		return specialist.Specialist{ID: id}, nil
	}
	return specialist.Find(ctx, b.directory, id)
}

// Greeting is the first system message of a new conversation.
func Greeting(who specialist.Specialist) string {
	name := strings.TrimSpace(who.Name)
	if name == "" {
		name = who.ID
	}
	if specialty := strings.TrimSpace(who.Specialty); specialty != "" {
		return fmt.Sprintf("Olá! Sou %s (%s). Como posso te ajudar hoje?", name, specialty)
	}
	return fmt.Sprintf("Olá! Sou %s. Como posso te ajudar hoje?", name)
}
