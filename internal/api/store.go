package api

import (
	"database/sql"
	"errors"
	"time"

	"stride/internal/calendar"
	"stride/internal/models"
)

var errNotFound = errors.New("not found")

func loadHabit(q calendar.Queryer, habitID, userID int) (models.Habit, error) {
	var h models.Habit
	err := q.QueryRow(
		"SELECT id, user_id, name, color, created_at FROM habits WHERE id = ? AND user_id = ?",
		habitID, userID,
	).Scan(&h.ID, &h.UserID, &h.Name, &h.Color, &h.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return h, errNotFound
	}
	if err != nil {
		return h, err
	}

	rows, err := q.Query(
		"SELECT id, habit_id, hour, minute, created_at FROM fire_times WHERE habit_id = ? ORDER BY hour, minute",
		habitID,
	)
	if err != nil {
		return h, err
	}
	defer rows.Close()
	for rows.Next() {
		var ft models.FireTime
		if err := rows.Scan(&ft.ID, &ft.HabitID, &ft.Hour, &ft.Minute, &ft.CreatedAt); err != nil {
			return h, err
		}
		h.FireTimes = append(h.FireTimes, ft)
	}
	return h, rows.Err()
}

func scanChallenge(row *sql.Row) (models.DaysChallenge, error) {
	var c models.DaysChallenge
	var from, to string
	err := row.Scan(&c.ID, &c.HabitID, &from, &to, &c.IsClosed, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, errNotFound
	}
	if err != nil {
		return c, err
	}
	if c.FromDate, err = calendar.ParseDay(from); err != nil {
		return c, err
	}
	if c.ToDate, err = calendar.ParseDay(to); err != nil {
		return c, err
	}
	return c, nil
}

// currentChallenge returns the habit's open challenge whose range contains
// now's date, with member days loaded. Callers maintain the at-most-one-open
// invariant; if it was ever violated the most recently created match wins.
func currentChallenge(q calendar.Queryer, habitID int, now time.Time) (models.DaysChallenge, error) {
	today := calendar.FormatDay(now)
	c, err := scanChallenge(q.QueryRow(
		`SELECT id, habit_id, from_date, to_date, is_closed, created_at
		FROM days_challenges
		WHERE habit_id = ? AND is_closed = 0 AND from_date <= ? AND to_date >= ?
		ORDER BY created_at DESC LIMIT 1`,
		habitID, today, today,
	))
	if err != nil {
		return c, err
	}
	c.Days, err = calendar.ChallengeDays(q, c.ID)
	return c, err
}

func loadNotifications(q calendar.Queryer, habitID int) ([]models.Notification, error) {
	rows, err := q.Query(
		`SELECT id, habit_id, fire_date, day_order, was_scheduled, COALESCE(user_notification_id, ''), created_at
		FROM notifications WHERE habit_id = ? ORDER BY fire_date ASC`,
		habitID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ns := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.HabitID, &n.FireDate, &n.DayOrder, &n.WasScheduled, &n.UserNotificationID, &n.CreatedAt); err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, rows.Err()
}
