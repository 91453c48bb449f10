package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the delivery state of an outbox entry
type Status string

const (
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
	StatusSent    Status = "sent"
	StatusDead    Status = "dead"
)

// Kinds of follow-up intents
const (
	KindPlaylistAdd          = "playlist.add"
	KindWhatsAppConfirmation = "whatsapp.confirmation"
)

const (
	DefaultMaxAttempts = 5
	baseBackoff        = time.Second
)

// Entry is a follow-up intent recorded after an RSVP was persisted
type Entry struct {
	ID            string     `db:"id" json:"id"`
	Kind          string     `db:"kind" json:"kind"`
	Payload       []byte     `db:"payload" json:"-"`
	Status        Status     `db:"status" json:"status"`
	Attempts      int        `db:"attempts" json:"attempts"`
	MaxAttempts   int        `db:"max_attempts" json:"maxAttempts"`
	LastError     string     `db:"last_error" json:"lastError,omitempty"`
	NextAttemptAt *time.Time `db:"next_attempt_at" json:"nextAttemptAt,omitempty"`
	ProcessedAt   *time.Time `db:"processed_at" json:"processedAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// NewEntry creates a pending entry with a JSON payload
func NewEntry(kind string, payload any, maxAttempts int) (*Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	now := time.Now().UTC()
	return &Entry{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     data,
		Status:      StatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Decode unmarshals the payload into v
func (e *Entry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// MarkSent marks the entry as delivered
func (e *Entry) MarkSent(now time.Time) {
	e.Status = StatusSent
	e.ProcessedAt = &now
	e.NextAttemptAt = nil
	e.UpdatedAt = now
}

// MarkFailed records a failed attempt and schedules the next one with exponential backoff.
// The entry is dead once it runs out of attempts.
func (e *Entry) MarkFailed(err error, now time.Time) {
	e.Attempts++
	e.LastError = err.Error()
	e.UpdatedAt = now

	if e.Attempts >= e.MaxAttempts {
		e.Status = StatusDead
		e.NextAttemptAt = nil
		return
	}
	e.Status = StatusFailed
	next := now.Add(Backoff(e.Attempts))
	e.NextAttemptAt = &next
}

// ResetForRetry makes a dead or failed entry due immediately with a fresh attempt budget
func (e *Entry) ResetForRetry(now time.Time) error {
	if e.Status != StatusDead && e.Status != StatusFailed {
		return errors.New("can only retry failed or dead entries")
	}
	e.Status = StatusPending
	e.Attempts = 0
	e.LastError = ""
	e.NextAttemptAt = nil
	e.UpdatedAt = now
	return nil
}

// Backoff returns the wait after the given number of attempts: 1s, 2s, 4s, ...
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}
	return baseBackoff * time.Duration(1<<uint(attempts-1))
}

// PlaylistAdd is the payload of a playlist.add entry
type PlaylistAdd struct {
	TrackURI string `json:"trackUri"`
}

// WhatsAppConfirmation is the payload of a whatsapp.confirmation entry
type WhatsAppConfirmation struct {
	Phone     string   `json:"phone"`
	Attending []string `json:"attending"`
	Declined  []string `json:"declined"`
}
