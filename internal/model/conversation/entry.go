package conversation

import "time"

// Kind tags the content carried by an Entry.
type Kind string

const (
	KindText     Kind = "text"
	KindAudio    Kind = "audio"
	KindFeedback Kind = "feedback"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindAudio, KindFeedback:
		return true
	default:
		return false
	}
}

// Sender identifies who produced an entry. The wire values follow the
// chat screens of the mobile app ("sent" bubbles belong to the patient).
type Sender string

const (
	SenderPatient Sender = "sent"
	SenderSystem  Sender = "received"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderPatient || s == SenderSystem
}

// Entry is one line of the conversation log.
//
// Content holds the text for KindText and KindFeedback entries and a
// playable audio reference for KindAudio entries. CreatedAt is only used for
// display; the position inside the log is the conversation order.
type Entry struct {
	ID             int64     `json:"id"`
	Kind           Kind      `json:"type"`
	Content        string    `json:"content"`
	Sender         Sender    `json:"sender"`
	PracticeTarget string    `json:"targetText,omitempty"`
	CreatedAt      time.Time `json:"timestamp"`
}

// Removable reports whether the patient may delete the entry.
func (e Entry) Removable() bool {
	return e.Sender == SenderPatient
}
