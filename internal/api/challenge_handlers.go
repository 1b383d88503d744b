package api

import (
	"database/sql"
	"errors"
	"log"
	"strconv"
	"time"

	"stride/internal/calendar"
	"stride/internal/challenge"
	"stride/internal/models"
	"stride/internal/notify"

	"github.com/gofiber/fiber/v2"
	"github.com/mattn/go-sqlite3"
)

// isConstraintViolation reports whether err is a SQLite constraint failure,
// here the unique (habit, calendar day) index rejecting an already-claimed
// date. Other database errors keep surfacing as server faults.
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// CreateChallengeHandler starts a new days challenge for an existing habit.
// The day-selection client only offers unclaimed future dates; the unique
// (habit, calendar day) constraint backstops overlapping selections.
func CreateChallengeHandler(db *sql.DB, sched *notify.Scheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		habitID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid habit ID")
		}

		var req models.CreateChallengeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if len(req.Days) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "At least one day is required")
		}

		habit, err := loadHabit(db, habitID, userID)
		if err == errNotFound {
			return fiber.NewError(fiber.StatusNotFound, "Habit not found")
		}
		if err != nil {
			return err
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		ch, notifications, err := createChallengeTx(tx, habit, req.Days)
		if err != nil {
			if errors.Is(err, calendar.ErrNoDates) {
				return fiber.NewError(fiber.StatusBadRequest, "At least one day is required")
			}
			if isConstraintViolation(err) {
				return fiber.NewError(fiber.StatusConflict, "Selected days overlap an existing challenge")
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		if err := sched.ScheduleAll(userID, habit, &ch, notifications); err != nil {
			log.Printf("Failed to schedule reminders for habit %d: %v", habit.ID, err)
		}

		return c.Status(fiber.StatusCreated).JSON(ch)
	}
}

// GetCurrentChallengeHandler returns the open challenge covering today,
// with its derived day partitions and progress.
func GetCurrentChallengeHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		habitID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid habit ID")
		}

		if _, err := loadHabit(db, habitID, userID); err != nil {
			if err == errNotFound {
				return fiber.NewError(fiber.StatusNotFound, "Habit not found")
			}
			return err
		}

		ch, err := currentChallenge(db, habitID, time.Now())
		if err == errNotFound {
			return fiber.NewError(fiber.StatusNotFound, "No active challenge")
		}
		if err != nil {
			return err
		}

		return c.JSON(challengeView(ch, time.Now()))
	}
}

// MarkCurrentDayHandler marks today's day of the habit's open challenge as
// executed or missed. When the challenge range covers today but the day
// record is missing (it was removed earlier, or the request came straight
// from a notification action), the record is created on the fly.
func MarkCurrentDayHandler(db *sql.DB, sched *notify.Scheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		habitID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid habit ID")
		}

		req := models.MarkDayRequest{Executed: true}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
			}
		}

		if _, err := loadHabit(db, habitID, userID); err != nil {
			if err == errNotFound {
				return fiber.NewError(fiber.StatusNotFound, "Habit not found")
			}
			return err
		}

		now := time.Now()
		ch, err := currentChallenge(db, habitID, now)
		if err == errNotFound {
			return fiber.NewError(fiber.StatusNotFound, "No active challenge")
		}
		if err != nil {
			return err
		}

		if challenge.CurrentDay(&ch, now) == nil && challenge.Contains(&ch, now) {
			day, err := calendar.CreateDay(db, habitID, ch.ID, now)
			if err != nil {
				return err
			}
			ch.Days = append(ch.Days, day)
			challenge.Normalize(&ch)
		}

		day := challenge.MarkCurrentDayExecuted(&ch, now, req.Executed)
		if day == nil {
			return c.JSON(fiber.Map{"updated": false})
		}

		if _, err := db.Exec(
			"UPDATE habit_days SET was_executed = ?, updated_at = ? WHERE id = ?",
			day.WasExecuted, day.UpdatedAt, day.ID,
		); err != nil {
			return err
		}

		if ch.IsClosed {
			if _, err := db.Exec("UPDATE days_challenges SET is_closed = 1 WHERE id = ?", ch.ID); err != nil {
				return err
			}
			// The challenge completed on its final day; any reminders still
			// queued for later today are moot.
			if err := unscheduleFrom(db, sched, habitID, now); err != nil {
				log.Printf("Failed to unschedule reminders for habit %d: %v", habitID, err)
			}
		}

		return c.JSON(challengeView(ch, now))
	}
}

// CloseChallengeHandler abandons the habit's open challenge: today's day and
// every future day are deleted, their reminders cancelled, and the challenge
// is truncated to end yesterday.
func CloseChallengeHandler(db *sql.DB, sched *notify.Scheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		habitID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid habit ID")
		}

		if _, err := loadHabit(db, habitID, userID); err != nil {
			if err == errNotFound {
				return fiber.NewError(fiber.StatusNotFound, "Habit not found")
			}
			return err
		}

		now := time.Now()
		ch, err := currentChallenge(db, habitID, now)
		if err == errNotFound {
			return fiber.NewError(fiber.StatusNotFound, "No active challenge")
		}
		if err != nil {
			return err
		}

		removed, err := challenge.Close(&ch, now)
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, "Challenge already closed")
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, day := range removed {
			if err := calendar.DeleteDay(tx, day.ID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(
			"UPDATE days_challenges SET is_closed = 1, from_date = ?, to_date = ? WHERE id = ?",
			calendar.FormatDay(ch.FromDate), calendar.FormatDay(ch.ToDate), ch.ID,
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		if err := unscheduleFrom(db, sched, habitID, calendar.StartOfDay(now)); err != nil {
			log.Printf("Failed to unschedule reminders for habit %d: %v", habitID, err)
		}

		return c.JSON(ch)
	}
}

// unscheduleFrom cancels and deletes the habit's notifications firing at or
// after the cutoff.
func unscheduleFrom(db *sql.DB, sched *notify.Scheduler, habitID int, cutoff time.Time) error {
	all, err := loadNotifications(db, habitID)
	if err != nil {
		return err
	}
	stale := []models.Notification{}
	for _, n := range all {
		if !n.FireDate.Before(cutoff) {
			stale = append(stale, n)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := sched.Unschedule(stale); err != nil {
		return err
	}
	for _, n := range stale {
		if _, err := db.Exec("DELETE FROM notifications WHERE id = ?", n.ID); err != nil {
			return err
		}
	}
	return nil
}
