package notify

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"stride/internal/challenge"
	"stride/internal/models"
)

// Execer is satisfied by *sql.DB and *sql.Tx so scheduling can join the
// caller's transaction.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Content is the user-facing text of a reminder.
type Content struct {
	Title string
	Body  string
	Tag   string
}

// MakeContent builds reminder text for one notification. The habit must
// have a name and an active challenge; anything else is an invalid state
// the caller created, reported as ErrInvalidState rather than a crash.
func MakeContent(habit models.Habit, ch *models.DaysChallenge, n models.Notification) (Content, error) {
	if habit.Name == "" || ch == nil {
		return Content{}, ErrInvalidState
	}
	return Content{
		Title: habit.Name,
		Body:  fmt.Sprintf("Don't forget, this is the %s", challenge.NotificationText(n.DayOrder)),
		Tag:   fmt.Sprintf("stride-habit-%d", habit.ID),
	}, nil
}

// Scheduler translates notification records into center requests and keeps
// the two sides in sync.
type Scheduler struct {
	q      Execer
	center Center

	// now is swappable in tests.
	now func() time.Time
}

func NewScheduler(q Execer, center Center) *Scheduler {
	return &Scheduler{q: q, center: center, now: time.Now}
}

// Schedule hands one reminder to the center. A fire date that is not
// strictly in the future is skipped outright, never retried. Authorization
// denial silently suppresses the add: the user already said no. A center
// failure leaves the notification unscheduled and is only logged.
func (s *Scheduler) Schedule(userID int, habit models.Habit, ch *models.DaysChallenge, n *models.Notification) error {
	if !n.FireDate.After(s.now()) {
		return nil
	}

	content, err := MakeContent(habit, ch, *n)
	if err != nil {
		return err
	}

	authorized, err := s.center.Authorized(userID)
	if err != nil {
		return err
	}
	if !authorized {
		return nil
	}

	externalID := uuid.NewString()
	if _, err := s.q.Exec(
		"UPDATE notifications SET user_notification_id = ? WHERE id = ?",
		externalID, n.ID,
	); err != nil {
		return err
	}
	n.UserNotificationID = externalID

	if err := s.center.Add(Request{
		ID:     externalID,
		UserID: userID,
		Title:  content.Title,
		Body:   content.Body,
		Tag:    content.Tag,
		FireAt: n.FireDate,
	}); err != nil {
		log.Printf("Failed to schedule notification %d: %v", n.ID, err)
		return nil
	}

	if _, err := s.q.Exec("UPDATE notifications SET was_scheduled = 1 WHERE id = ?", n.ID); err != nil {
		return err
	}
	n.WasScheduled = true
	return nil
}

// ScheduleAll schedules each notification in turn. There is no batching and
// no rollback: a failure for one entry does not undo the ones before it.
func (s *Scheduler) ScheduleAll(userID int, habit models.Habit, ch *models.DaysChallenge, ns []models.Notification) error {
	for i := range ns {
		if err := s.Schedule(userID, habit, ch, &ns[i]); err != nil {
			return err
		}
	}
	return nil
}

// Unschedule cancels the center entries for the given notifications.
// Notifications that were never scheduled, or whose pending entry is gone,
// are silently ignored.
func (s *Scheduler) Unschedule(ns []models.Notification) error {
	ids := []string{}
	for _, n := range ns {
		if n.UserNotificationID != "" {
			ids = append(ids, n.UserNotificationID)
		}
	}
	return s.center.RemovePending(ids)
}
