package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/speech-coach/backend/internal/auth"
	"github.com/zhouzirui/speech-coach/backend/internal/cache"
	model "github.com/zhouzirui/speech-coach/backend/internal/model/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/model/specialist"
	"github.com/zhouzirui/speech-coach/backend/internal/service/binder"
	"github.com/zhouzirui/speech-coach/backend/internal/service/capture"
	"github.com/zhouzirui/speech-coach/backend/internal/service/conversation"
	"github.com/zhouzirui/speech-coach/backend/internal/service/syncer"
)

// Binder attaches and detaches sessions.
type Binder interface {
	Bind(ctx context.Context, patientID, specialistID string) (*binder.Binding, error)
	Unbind(binding *binder.Binding)
}

// Recorder is the microphone state machine.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (capture.Clip, error)
	Abort()
}

// Analyzer scores one recording.
type Analyzer interface {
	Analyze(ctx context.Context, clip capture.Clip, practiceText string) (model.AnalysisResult, error)
}

// Syncer writes snapshots to the persistence service and reports the ones
// that were stored.
type Syncer interface {
	Schedule(snap syncer.Snapshot)
	FlushNow(ctx context.Context, snap syncer.Snapshot) error
	Flush(ctx context.Context) error
	OnWritten(fn func(syncer.Snapshot))
}

// Phase is the top-level controller state.
type Phase string

const (
	PhaseNoSpecialist Phase = "no_specialist"
	PhaseBound        Phase = "bound"
)

// Deps wires a Controller. Clips and Cache are optional.
type Deps struct {
	Identity auth.Identity
	Binder   Binder
	Recorder Recorder
	Analyzer Analyzer
	Sync     Syncer
	Clips    capture.ClipStore
	Cache    cache.Store
}

// View is a copy of the controller state.
type View struct {
	Phase          Phase
	SessionID      string
	Specialist     specialist.Specialist
	Recording      model.RecordingState
	PracticeText   string
	Messages       []model.Entry
	OfflinePreview bool
	// Dirty is set while the log has changes the backend has not stored.
	Dirty bool
}

// Controller is the conversation session engine. All state changes happen
// under mu; analysis results and write confirmations re-enter under mu and
// are dropped if the session they were started for is gone. Network calls
// to the binder and the syncer run with mu released, so State and Messages
// never wait on the backend.
type Controller struct {
	deps Deps

	mu        sync.Mutex
	binding   *binder.Binding
	epoch     uint64
	recording model.RecordingState
	practice  string
	preview   []model.Entry
	cancel    context.CancelFunc
	observers []func(View)

	analyses sync.WaitGroup
}

// New returns an unbound controller.
func New(deps Deps) *Controller {
	c := &Controller{deps: deps, recording: model.RecordingIdle}
	if deps.Sync != nil {
		deps.Sync.OnWritten(c.markWritten)
	}
	return c
}

// OnChange registers fn to receive a View after every state change. It is
// called without the controller lock held.
func (c *Controller) OnChange(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// State returns the current view.
func (c *Controller) State() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Messages returns the visible conversation.
func (c *Controller) Messages() []model.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messagesLocked()
}

// PracticeText returns the words the next recording will be scored against.
func (c *Controller) PracticeText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.practice
}

// SetPracticeText sets the words the next recording is scored against.
func (c *Controller) SetPracticeText(text string) {
	c.mu.Lock()
	c.practice = strings.TrimSpace(text)
	c.unlockAndNotify()
}

// Restore loads the cached conversation of the current user for display
// before a specialist is bound. It returns the cached specialist id.
func (c *Controller) Restore(ctx context.Context) (string, bool) {
	if c.deps.Cache == nil {
		return "", false
	}
	rec, ok, err := c.deps.Cache.Load(ctx, cache.Key(c.deps.Identity))
	if err != nil {
		log.Printf("[session] load cache: %v", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	entries, err := conversation.Decode(rec.Conversation)
	if err != nil {
		log.Printf("[session] cached conversation unreadable: %v", err)
	}

	c.mu.Lock()
	if c.binding.Bound() {
		c.mu.Unlock()
		return rec.SpecialistID, true
	}
	c.preview = entries
	c.unlockAndNotify()
	return rec.SpecialistID, true
}

// SelectSpecialist binds the session to specialistID, releasing any
// previous session first. On failure the controller is left unbound.
// A later selection started while this one is binding wins.
func (c *Controller) SelectSpecialist(ctx context.Context, specialistID string) error {
	c.mu.Lock()
	c.unbindLocked()
	epoch := c.epoch
	c.unlockAndNotify()

	c.flushPending(ctx)

	binding, err := c.deps.Binder.Bind(ctx, c.deps.Identity.UserID, specialistID)
	if err != nil {
		log.Printf("[session] bind %s failed: %v", specialistID, err)
		return err
	}

	c.mu.Lock()
	if epoch != c.epoch || c.binding != nil {
		c.mu.Unlock()
		log.Printf("[session] bind %s superseded by a newer selection", specialistID)
		c.deps.Binder.Unbind(binding)
		return nil
	}
	c.binding = binding
	c.preview = nil
	if binding.Seeded {
		c.touchLocked()
	} else {
		c.cacheLocked(binding.Snapshot())
	}
	c.unlockAndNotify()
	return nil
}

// SendText appends a patient text message. Blank text is ignored.
func (c *Controller) SendText(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	c.mu.Lock()
	if !c.binding.Bound() {
		c.mu.Unlock()
		return ErrNotBound
	}
	c.binding.Log.Append(model.Entry{
		Kind:    model.KindText,
		Sender:  model.SenderPatient,
		Content: text,
	})
	c.touchLocked()
	c.unlockAndNotify()
	return nil
}

// StartRecording acquires the microphone. It is rejected without touching
// the device unless the session is bound, idle and has practice text.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case !c.binding.Bound():
		c.mu.Unlock()
		return ErrNotBound
	case c.recording != model.RecordingIdle:
		c.mu.Unlock()
		return ErrRecordingBusy
	case c.practice == "":
		c.mu.Unlock()
		return ErrPracticeTextRequired
	}

	if err := c.deps.Recorder.Start(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	c.recording = model.RecordingActive
	c.unlockAndNotify()
	return nil
}

// StopRecording finalizes the recording, appends its audio entry and starts
// the analysis in the background.
func (c *Controller) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.recording != model.RecordingActive || !c.binding.Bound() {
		c.mu.Unlock()
		return ErrNotRecording
	}

	clip, err := c.deps.Recorder.Stop(ctx)
	if err != nil {
		c.recording = model.RecordingIdle
		c.unlockAndNotify()
		return err
	}

	practice := c.practice
	c.binding.Log.Append(model.Entry{
		Kind:           model.KindAudio,
		Sender:         model.SenderPatient,
		Content:        c.clipReference(ctx, clip),
		PracticeTarget: practice,
	})
	c.touchLocked()
	c.recording = model.RecordingAnalyzing

	actx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.analyses.Add(1)
	go c.analyze(actx, c.epoch, clip, practice)

	c.unlockAndNotify()
	return nil
}

func (c *Controller) analyze(ctx context.Context, epoch uint64, clip capture.Clip, practice string) {
	defer c.analyses.Done()

	var (
		result model.AnalysisResult
		err    error
	)
	if c.deps.Analyzer == nil {
		err = errors.New("no analyzer configured")
	} else {
		result, err = c.deps.Analyzer.Analyze(ctx, clip, practice)
	}

	c.mu.Lock()
	if epoch != c.epoch || !c.binding.Bound() {
		c.mu.Unlock()
		log.Printf("[session] discarding analysis for clip %s: session changed", clip.ID)
		return
	}

	content := AnalysisUnavailable
	if err != nil {
		log.Printf("[session] analysis of clip %s failed: %v", clip.ID, err)
	} else {
		content = FormatFeedback(result)
	}
	c.binding.Log.Append(model.Entry{
		Kind:    model.KindFeedback,
		Sender:  model.SenderSystem,
		Content: content,
	})
	c.touchLocked()
	c.recording = model.RecordingIdle
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.unlockAndNotify()
}

// DeleteMessage removes a patient entry. Other or unknown ids are ignored.
func (c *Controller) DeleteMessage(id int64) error {
	c.mu.Lock()
	if !c.binding.Bound() {
		c.mu.Unlock()
		return ErrNotBound
	}
	entry, ok := c.binding.Log.Get(id)
	if !ok || !entry.Removable() {
		c.mu.Unlock()
		return nil
	}
	c.binding.Log.Remove(id)
	c.touchLocked()
	c.unlockAndNotify()
	return nil
}

// ClearConversation empties the log and writes the empty log immediately.
func (c *Controller) ClearConversation(ctx context.Context) error {
	c.mu.Lock()
	if !c.binding.Bound() {
		c.mu.Unlock()
		return ErrNotBound
	}
	c.binding.Log.Clear()
	snap := c.binding.Snapshot()
	c.cacheLocked(snap)
	c.unlockAndNotify()

	if c.deps.Sync != nil {
		// Failures are logged by the scheduler.
		_ = c.deps.Sync.FlushNow(ctx, snap)
	}
	return nil
}

// Close releases the microphone, abandons in-flight analyses, flushes any
// pending write and waits for the analysis goroutines to return.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	c.unbindLocked()
	c.unlockAndNotify()
	c.flushPending(ctx)
	c.analyses.Wait()
}

// Wait blocks until in-flight analyses have completed.
func (c *Controller) Wait() {
	c.analyses.Wait()
}

// unbindLocked tears the current session down. The epoch bump makes any
// analysis still running drop its result. The caller flushes the pending
// write after releasing mu.
func (c *Controller) unbindLocked() {
	if c.recording == model.RecordingActive {
		c.deps.Recorder.Abort()
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.recording = model.RecordingIdle
	c.epoch++

	if c.binding == nil {
		return
	}
	c.deps.Binder.Unbind(c.binding)
	c.binding = nil
}

// flushPending writes the snapshot still waiting for its quiet period.
func (c *Controller) flushPending(ctx context.Context) {
	if c.deps.Sync != nil {
		_ = c.deps.Sync.Flush(ctx)
	}
}

// markWritten clears the dirty flag when the stored snapshot is still the
// current state of the bound log.
func (c *Controller) markWritten(snap syncer.Snapshot) {
	c.mu.Lock()
	if !c.binding.Bound() || snap.SessionID != c.binding.SessionID || !c.binding.Log.Dirty() {
		c.mu.Unlock()
		return
	}
	if snap.Counter != c.binding.Log.Counter() || snap.Conversation != c.binding.Log.Serialize() {
		c.mu.Unlock()
		return
	}
	c.binding.Log.MarkClean()
	c.unlockAndNotify()
}

// touchLocked records a log mutation: schedule the remote write and mirror
// the snapshot locally.
func (c *Controller) touchLocked() {
	snap := c.binding.Snapshot()
	if c.deps.Sync != nil {
		c.deps.Sync.Schedule(snap)
	}
	c.cacheLocked(snap)
}

func (c *Controller) cacheLocked(snap syncer.Snapshot) {
	if c.deps.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.deps.Cache.Save(ctx, cache.Key(c.deps.Identity), cache.Record{
		SpecialistID: snap.SpecialistID,
		SessionID:    snap.SessionID,
		Conversation: snap.Conversation,
	})
	if err != nil {
		log.Printf("[session] save cache: %v", err)
	}
}

func (c *Controller) clipReference(ctx context.Context, clip capture.Clip) string {
	if c.deps.Clips == nil {
		return capture.Reference(clip)
	}
	ref, err := c.deps.Clips.Save(ctx, clip)
	if err != nil {
		log.Printf("[session] store clip %s: %v", clip.ID, err)
		return capture.Reference(clip)
	}
	return ref
}

func (c *Controller) messagesLocked() []model.Entry {
	if c.binding.Bound() {
		return c.binding.Log.Entries()
	}
	return append([]model.Entry(nil), c.preview...)
}

func (c *Controller) viewLocked() View {
	view := View{
		Phase:        PhaseNoSpecialist,
		Recording:    c.recording,
		PracticeText: c.practice,
		Messages:     c.messagesLocked(),
	}
	if c.binding.Bound() {
		view.Phase = PhaseBound
		view.SessionID = c.binding.SessionID
		view.Specialist = c.binding.Specialist
		view.Dirty = c.binding.Log.Dirty()
	} else {
		view.OfflinePreview = len(c.preview) > 0
	}
	return view
}

// unlockAndNotify releases mu and hands the new view to observers.
func (c *Controller) unlockAndNotify() {
	view := c.viewLocked()
	observers := append(([]func(View))(nil), c.observers...)
	c.mu.Unlock()
	for _, fn := range observers {
		fn(view)
	}
}
