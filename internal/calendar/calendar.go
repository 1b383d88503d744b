// Package calendar owns the deduplicated calendar-day registry and the
// habit-day ledger on top of it. A calendar date is normalized to local
// midnight and stored once; habit days reference the shared row.
package calendar

import (
	"database/sql"
	"errors"
	"time"

	"stride/internal/models"
)

const dayLayout = "2006-01-02"

// ErrNoDates is returned when a ledger operation is asked to create day
// records from an empty date list.
var ErrNoDates = errors.New("calendar: no dates given")

// Queryer is satisfied by both *sql.DB and *sql.Tx so registry and ledger
// calls can run inside the caller's transaction.
type Queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same local calendar date.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// FormatDay renders t as the stored 'YYYY-MM-DD' key.
func FormatDay(t time.Time) string {
	return StartOfDay(t).Format(dayLayout)
}

// ParseDay parses a stored 'YYYY-MM-DD' key into local midnight.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dayLayout, s, time.Local)
}

// DayFor returns the calendar day covering date, creating it when absent.
// Absence is never an error: creation is the fallback. The UNIQUE(day_date)
// constraint backstops concurrent find-or-create races.
func DayFor(q Queryer, date time.Time) (models.CalendarDay, error) {
	key := FormatDay(date)

	var day models.CalendarDay
	var stored string
	err := q.QueryRow("SELECT id, day_date FROM calendar_days WHERE day_date = ?", key).
		Scan(&day.ID, &stored)
	if err == nil {
		day.Date, err = ParseDay(stored)
		return day, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.CalendarDay{}, err
	}

	res, err := q.Exec("INSERT OR IGNORE INTO calendar_days (day_date) VALUES (?)", key)
	if err != nil {
		return models.CalendarDay{}, err
	}
	var id int64
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		if id, err = res.LastInsertId(); err != nil {
			return models.CalendarDay{}, err
		}
	} else {
		// Lost the insert race; the row exists now.
		if err := q.QueryRow("SELECT id FROM calendar_days WHERE day_date = ?", key).Scan(&id); err != nil {
			return models.CalendarDay{}, err
		}
	}

	day.ID = int(id)
	day.Date = StartOfDay(date)
	return day, nil
}

// CreateDay obtains the shared calendar day for date and records an
// unexecuted habit day against it.
func CreateDay(q Queryer, habitID, challengeID int, date time.Time) (models.HabitDay, error) {
	calDay, err := DayFor(q, date)
	if err != nil {
		return models.HabitDay{}, err
	}

	now := time.Now()
	res, err := q.Exec(
		`INSERT INTO habit_days (habit_id, challenge_id, calendar_day_id, was_executed, updated_at)
		VALUES (?, ?, ?, 0, ?)`,
		habitID, challengeID, calDay.ID, now,
	)
	if err != nil {
		return models.HabitDay{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.HabitDay{}, err
	}

	return models.HabitDay{
		ID:            int(id),
		HabitID:       habitID,
		ChallengeID:   challengeID,
		CalendarDayID: calDay.ID,
		Date:          calDay.Date,
		WasExecuted:   false,
		UpdatedAt:     now,
	}, nil
}

// CreateDays records one habit day per date, preserving input order in the
// result. The date list must be non-empty.
func CreateDays(q Queryer, habitID, challengeID int, dates []time.Time) ([]models.HabitDay, error) {
	if len(dates) == 0 {
		return nil, ErrNoDates
	}
	days := make([]models.HabitDay, 0, len(dates))
	for _, date := range dates {
		day, err := CreateDay(q, habitID, challengeID, date)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

// DeleteDay removes a habit day record. The shared calendar day is left in
// place; orphans are reaped separately (see PruneOrphanDays).
func DeleteDay(q Queryer, habitDayID int) error {
	_, err := q.Exec("DELETE FROM habit_days WHERE id = ?", habitDayID)
	return err
}

// ChallengeDays loads a challenge's member days joined with their calendar
// dates, ascending by date.
func ChallengeDays(q Queryer, challengeID int) ([]models.HabitDay, error) {
	rows, err := q.Query(
		`SELECT hd.id, hd.habit_id, hd.challenge_id, hd.calendar_day_id, cd.day_date, hd.was_executed, hd.updated_at
		FROM habit_days hd
		JOIN calendar_days cd ON cd.id = hd.calendar_day_id
		WHERE hd.challenge_id = ?
		ORDER BY cd.day_date ASC`,
		challengeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := []models.HabitDay{}
	for rows.Next() {
		var d models.HabitDay
		var stored string
		if err := rows.Scan(&d.ID, &d.HabitID, &d.ChallengeID, &d.CalendarDayID, &stored, &d.WasExecuted, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if d.Date, err = ParseDay(stored); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// PruneOrphanDays deletes calendar days no habit day references anymore.
// Shared days outlive any single challenge, so this runs out of band rather
// than inside day deletion.
func PruneOrphanDays(q Queryer) (int, error) {
	res, err := q.Exec(
		`DELETE FROM calendar_days
		WHERE id NOT IN (SELECT DISTINCT calendar_day_id FROM habit_days)`,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
