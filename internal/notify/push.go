package notify

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// PushPayload is the JSON body delivered to web push clients.
type PushPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// GetVapidOptions returns configured VAPID options from environment
func GetVapidOptions() *webpush.Options {
	return &webpush.Options{
		Subscriber:      os.Getenv("VAPID_SUBJECT"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		TTL:             30,
	}
}

// IsWebPushConfigured checks if VAPID keys are configured
func IsWebPushConfigured() bool {
	return os.Getenv("VAPID_PUBLIC_KEY") != "" &&
		os.Getenv("VAPID_PRIVATE_KEY") != "" &&
		os.Getenv("VAPID_SUBJECT") != ""
}

// PushCenter is the web-push-backed Center. Pending reminders live in the
// pending_pushes table until DispatchDue delivers them.
type PushCenter struct {
	db *sql.DB
}

func NewPushCenter(db *sql.DB) *PushCenter {
	return &PushCenter{db: db}
}

// Authorized reports whether the user can receive pushes: VAPID keys are
// configured and the user has at least one subscription.
func (p *PushCenter) Authorized(userID int) (bool, error) {
	if !IsWebPushConfigured() {
		return false, nil
	}
	var n int
	err := p.db.QueryRow("SELECT COUNT(*) FROM push_subscriptions WHERE user_id = ?", userID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *PushCenter) Add(req Request) error {
	_, err := p.db.Exec(
		`INSERT INTO pending_pushes (id, user_id, title, body, tag, fire_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		req.ID, req.UserID, req.Title, req.Body, req.Tag, req.FireAt,
	)
	return err
}

func (p *PushCenter) Pending(userID int) ([]Request, error) {
	rows, err := p.db.Query(
		"SELECT id, user_id, title, body, COALESCE(tag, ''), fire_at FROM pending_pushes WHERE user_id = ? ORDER BY fire_at ASC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pending := []Request{}
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Body, &r.Tag, &r.FireAt); err != nil {
			return nil, err
		}
		pending = append(pending, r)
	}
	return pending, rows.Err()
}

func (p *PushCenter) RemovePending(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	// Unknown ids simply match no row.
	_, err := p.db.Exec("DELETE FROM pending_pushes WHERE id IN ("+placeholders+")", args...)
	return err
}

// DispatchDue delivers every pending reminder whose fire time has passed and
// removes it from the queue. Delivery failures are logged, not retried; the
// queue row is consumed either way so a dead subscription cannot wedge the
// worker.
func (p *PushCenter) DispatchDue(now time.Time) error {
	rows, err := p.db.Query(
		"SELECT id, user_id, title, body, COALESCE(tag, ''), fire_at FROM pending_pushes WHERE fire_at <= ?",
		now,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	due := []Request{}
	for rows.Next() {
		var r Request
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.Body, &r.Tag, &r.FireAt); err != nil {
			return err
		}
		due = append(due, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range due {
		payload := PushPayload{Title: r.Title, Body: r.Body, Tag: r.Tag}
		if err := SendPushToUser(p.db, r.UserID, payload); err != nil {
			log.Printf("Failed to deliver reminder %s to user %d: %v", r.ID, r.UserID, err)
		}
		if _, err := p.db.Exec("DELETE FROM pending_pushes WHERE id = ?", r.ID); err != nil {
			return err
		}
	}
	return nil
}

// SendPushToUser sends a push notification to all subscriptions for a user.
func SendPushToUser(db *sql.DB, userID int, payload PushPayload) error {
	if !IsWebPushConfigured() {
		log.Println("Web push not configured - skipping notification")
		return nil
	}

	rows, err := db.Query(
		"SELECT endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to fetch subscriptions: %w", err)
	}
	defer rows.Close()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	options := GetVapidOptions()
	successCount := 0
	failCount := 0
	subscriptionCount := 0

	for rows.Next() {
		subscriptionCount++
		var endpoint, p256dh, auth string
		if err := rows.Scan(&endpoint, &p256dh, &auth); err != nil {
			log.Printf("Error scanning subscription: %v", err)
			failCount++
			continue
		}

		subscription := &webpush.Subscription{
			Endpoint: endpoint,
			Keys: webpush.Keys{
				P256dh: p256dh,
				Auth:   auth,
			},
		}

		resp, err := webpush.SendNotification(payloadJSON, subscription, options)
		if err != nil {
			log.Printf("Failed to send push to %s: %v", endpoint, err)
			failCount++

			// Expired or invalid subscriptions are removed so they are not
			// attempted again.
			if resp != nil && (resp.StatusCode == 410 || resp.StatusCode == 404) {
				_, _ = db.Exec("DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
				log.Printf("Removed expired subscription: %s", endpoint)
			}
			continue
		}

		if resp != nil {
			if resp.StatusCode >= 400 {
				body, _ := io.ReadAll(resp.Body)
				log.Printf("Push service error response (%d): %s", resp.StatusCode, string(body))
			}
			resp.Body.Close()

			// 403 means the VAPID keys don't match this subscription; drop it
			// so the client re-subscribes with current keys.
			if resp.StatusCode == 403 {
				_, _ = db.Exec("DELETE FROM push_subscriptions WHERE endpoint = ?", endpoint)
				failCount++
				continue
			}
		}

		successCount++
	}

	if subscriptionCount == 0 {
		return fmt.Errorf("no push subscriptions found for user %d", userID)
	}
	if failCount > 0 && successCount == 0 {
		return fmt.Errorf("failed to send any push notifications (attempted %d)", failCount)
	}
	return nil
}
