package notify

import (
	"testing"
	"time"

	"stride/internal/database"
)

func TestPushCenterPendingLifecycle(t *testing.T) {
	db, _, _ := setupSchedulerTest(t)
	center := NewPushCenter(db)

	req := Request{
		ID:     "ext-1",
		UserID: 1,
		Title:  "Meditate",
		Body:   "Don't forget, this is the 1st day.",
		Tag:    "stride-habit-1",
		FireAt: time.Now().Add(time.Hour),
	}
	if err := center.Add(req); err != nil {
		t.Fatal(err)
	}

	pending, err := center.Pending(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "ext-1" {
		t.Fatalf("Expected the queued request, got %v", pending)
	}

	// Unknown ids are ignored, known ones removed.
	if err := center.RemovePending([]string{"ext-1", "no-such-id"}); err != nil {
		t.Fatal(err)
	}
	pending, err = center.Pending(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("Expected empty queue, got %v", pending)
	}
}

func TestPushCenterAuthorizedRequiresSubscription(t *testing.T) {
	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Exec("INSERT INTO users (username, password_hash) VALUES ('tester', 'x')"); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VAPID_PUBLIC_KEY", "pub")
	t.Setenv("VAPID_PRIVATE_KEY", "priv")
	t.Setenv("VAPID_SUBJECT", "mailto:ops@stride.app")

	center := NewPushCenter(db)
	ok, err := center.Authorized(1)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Expected authorization denied without a subscription")
	}

	if _, err := db.Exec(
		"INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth) VALUES (1, 'https://push.example/1', 'k', 'a')",
	); err != nil {
		t.Fatal(err)
	}
	ok, err = center.Authorized(1)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Expected authorization with a subscription and VAPID keys")
	}
}

func TestDispatchDueConsumesQueue(t *testing.T) {
	db, _, _ := setupSchedulerTest(t)
	center := NewPushCenter(db)

	now := time.Now()
	due := Request{ID: "due", UserID: 1, Title: "t", Body: "b", FireAt: now.Add(-time.Minute)}
	later := Request{ID: "later", UserID: 1, Title: "t", Body: "b", FireAt: now.Add(time.Hour)}
	if err := center.Add(due); err != nil {
		t.Fatal(err)
	}
	if err := center.Add(later); err != nil {
		t.Fatal(err)
	}

	// Web push is unconfigured here, so delivery is skipped, but due rows
	// are still consumed.
	if err := center.DispatchDue(now); err != nil {
		t.Fatal(err)
	}

	pending, err := center.Pending(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != "later" {
		t.Fatalf("Expected only the future request to remain, got %v", pending)
	}
}
