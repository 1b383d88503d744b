// Package notify bridges challenge day reminders to the notification
// delivery subsystem. Scheduling hands a request to a Center for future
// delivery; the web-push Center keeps its pending queue durable and a
// background worker delivers due entries.
package notify

import (
	"errors"
	"time"
)

// ErrInvalidState signals a reminder built from a habit that lacks the
// entity links scheduling requires (no active challenge, empty name).
var ErrInvalidState = errors.New("notify: habit is not in a schedulable state")

// Request is one reminder handed to the center, keyed by the external id
// stored on the owning notification record.
type Request struct {
	ID     string    `json:"id"`
	UserID int       `json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	Tag    string    `json:"tag,omitempty"`
	FireAt time.Time `json:"fire_at"`
}

// Center is the delivery subsystem the scheduler talks to. Implementations
// must tolerate RemovePending being handed unknown ids.
type Center interface {
	// Authorized reports whether reminders may be delivered to the user
	// at all. Denial is an expected state, not an error.
	Authorized(userID int) (bool, error)
	Add(req Request) error
	Pending(userID int) ([]Request, error)
	RemovePending(ids []string) error
}
