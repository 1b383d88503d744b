package notify

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"stride/internal/database"
	"stride/internal/models"
)

// fakeCenter records requests instead of delivering them.
type fakeCenter struct {
	authorized bool
	addErr     error
	added      []Request
	removed    []string
}

func (f *fakeCenter) Authorized(userID int) (bool, error) { return f.authorized, nil }

func (f *fakeCenter) Add(req Request) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, req)
	return nil
}

func (f *fakeCenter) Pending(userID int) ([]Request, error) { return f.added, nil }

func (f *fakeCenter) RemovePending(ids []string) error {
	f.removed = append(f.removed, ids...)
	return nil
}

func setupSchedulerTest(t *testing.T) (*sql.DB, models.Habit, *models.DaysChallenge) {
	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("INSERT INTO users (username, password_hash) VALUES ('tester', 'x')"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("INSERT INTO habits (user_id, name, color) VALUES (1, 'Meditate', 2)"); err != nil {
		t.Fatal(err)
	}

	habit := models.Habit{ID: 1, UserID: 1, Name: "Meditate", Color: 2}
	ch := &models.DaysChallenge{ID: 1, HabitID: 1}
	return db, habit, ch
}

func insertNotification(t *testing.T, db *sql.DB, fireDate time.Time, order int) *models.Notification {
	res, err := db.Exec(
		"INSERT INTO notifications (habit_id, fire_date, day_order) VALUES (1, ?, ?)",
		fireDate, order,
	)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()
	return &models.Notification{ID: int(id), HabitID: 1, FireDate: fireDate, DayOrder: order}
}

func TestScheduleAssignsExternalIDAndMarksScheduled(t *testing.T) {
	db, habit, ch := setupSchedulerTest(t)
	center := &fakeCenter{authorized: true}
	s := NewScheduler(db, center)

	n := insertNotification(t, db, time.Now().Add(time.Hour), 1)
	if err := s.Schedule(1, habit, ch, n); err != nil {
		t.Fatal(err)
	}

	if n.UserNotificationID == "" {
		t.Fatal("Expected an external id to be assigned")
	}
	if !n.WasScheduled {
		t.Fatal("Expected notification to be marked scheduled")
	}
	if len(center.added) != 1 {
		t.Fatalf("Expected 1 center request, got %d", len(center.added))
	}
	if center.added[0].ID != n.UserNotificationID {
		t.Fatal("Expected the center request keyed by the external id")
	}

	var wasScheduled bool
	var externalID string
	if err := db.QueryRow(
		"SELECT was_scheduled, user_notification_id FROM notifications WHERE id = ?", n.ID,
	).Scan(&wasScheduled, &externalID); err != nil {
		t.Fatal(err)
	}
	if !wasScheduled || externalID != n.UserNotificationID {
		t.Fatal("Expected scheduling state persisted")
	}
}

func TestScheduleSkipsPastFireDates(t *testing.T) {
	db, habit, ch := setupSchedulerTest(t)
	center := &fakeCenter{authorized: true}
	s := NewScheduler(db, center)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local) }

	n := insertNotification(t, db, time.Date(2024, 6, 1, 9, 0, 0, 0, time.Local), 1)
	if err := s.Schedule(1, habit, ch, n); err != nil {
		t.Fatal(err)
	}

	if len(center.added) != 0 {
		t.Fatal("Expected a past fire date to never reach the center")
	}
	if n.WasScheduled {
		t.Fatal("Expected notification to stay unscheduled")
	}
}

func TestScheduleSilentWhenUnauthorized(t *testing.T) {
	db, habit, ch := setupSchedulerTest(t)
	center := &fakeCenter{authorized: false}
	s := NewScheduler(db, center)

	n := insertNotification(t, db, time.Now().Add(time.Hour), 1)
	if err := s.Schedule(1, habit, ch, n); err != nil {
		t.Fatal(err)
	}
	if len(center.added) != 0 {
		t.Fatal("Expected no center request without authorization")
	}
	if n.WasScheduled {
		t.Fatal("Expected notification to stay unscheduled")
	}
}

func TestScheduleFailureLeavesUnscheduled(t *testing.T) {
	db, habit, ch := setupSchedulerTest(t)
	center := &fakeCenter{authorized: true, addErr: errors.New("boom")}
	s := NewScheduler(db, center)

	n := insertNotification(t, db, time.Now().Add(time.Hour), 1)
	if err := s.Schedule(1, habit, ch, n); err != nil {
		t.Fatal("Expected center failures to be swallowed")
	}
	if n.WasScheduled {
		t.Fatal("Expected notification to stay unscheduled after failure")
	}
}

func TestScheduleRequiresHabitLinks(t *testing.T) {
	db, habit, _ := setupSchedulerTest(t)
	center := &fakeCenter{authorized: true}
	s := NewScheduler(db, center)

	n := insertNotification(t, db, time.Now().Add(time.Hour), 1)
	if err := s.Schedule(1, habit, nil, n); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState without a challenge, got %v", err)
	}

	nameless := models.Habit{ID: 1, UserID: 1}
	if _, err := MakeContent(nameless, &models.DaysChallenge{}, *n); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState for a nameless habit, got %v", err)
	}
}

func TestUnscheduleIgnoresNeverScheduled(t *testing.T) {
	db, habit, ch := setupSchedulerTest(t)
	center := &fakeCenter{authorized: true}
	s := NewScheduler(db, center)

	scheduled := insertNotification(t, db, time.Now().Add(time.Hour), 1)
	if err := s.Schedule(1, habit, ch, scheduled); err != nil {
		t.Fatal(err)
	}
	never := insertNotification(t, db, time.Now().Add(2*time.Hour), 2)

	if err := s.Unschedule([]models.Notification{*scheduled, *never}); err != nil {
		t.Fatal(err)
	}
	if len(center.removed) != 1 || center.removed[0] != scheduled.UserNotificationID {
		t.Fatalf("Expected only the scheduled id removed, got %v", center.removed)
	}
}

func TestMakeContentText(t *testing.T) {
	habit := models.Habit{ID: 7, Name: "Run"}
	content, err := MakeContent(habit, &models.DaysChallenge{}, models.Notification{DayOrder: 2})
	if err != nil {
		t.Fatal(err)
	}
	if content.Title != "Run" {
		t.Fatalf("Expected habit name as title, got %q", content.Title)
	}
	if content.Body != "Don't forget, this is the 2nd day." {
		t.Fatalf("Unexpected body: %q", content.Body)
	}
}
