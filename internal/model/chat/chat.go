package chat

import "time"

// Chat is the persisted conversation between one patient and one
// specialist. Conversation holds the serialized message log as a JSON array
// string; Counter is the highest message id ever assigned in it.
type Chat struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"clienteId"`
	SpecialistID string    `json:"especialistaId"`
	Conversation string    `json:"conversa"`
	Counter      int64     `json:"duracao"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
