// Package challenge implements the days-challenge lifecycle: the in-memory
// state machine over one challenge's ordered day set. It is storage-free;
// callers load the entity graph, apply transitions here, and persist what
// changed.
package challenge

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"stride/internal/calendar"
	"stride/internal/models"
)

// ErrClosed is returned when a mutation is attempted on a closed challenge.
var ErrClosed = errors.New("challenge: already closed")

// Normalize sorts the member days ascending by date and resets the
// from/to bounds to the min/max member dates. Call after any day removal.
func Normalize(c *models.DaysChallenge) {
	sort.Slice(c.Days, func(i, j int) bool {
		return c.Days[i].Date.Before(c.Days[j].Date)
	})
	if len(c.Days) > 0 {
		c.FromDate = calendar.StartOfDay(c.Days[0].Date)
		c.ToDate = calendar.StartOfDay(c.Days[len(c.Days)-1].Date)
	}
}

// DayAt returns the member day whose date falls within date's calendar day,
// or nil if the challenge has no day for that date.
func DayAt(c *models.DaysChallenge, date time.Time) *models.HabitDay {
	for i := range c.Days {
		if calendar.SameDay(c.Days[i].Date, date) {
			return &c.Days[i]
		}
	}
	return nil
}

// CurrentDay returns the member day for now's calendar date, if any.
func CurrentDay(c *models.DaysChallenge, now time.Time) *models.HabitDay {
	return DayAt(c, now)
}

// OrderOf returns the 1-based rank of day among the member days by ascending
// date. The second return is false when the day is not a member.
func OrderOf(c *models.DaysChallenge, day models.HabitDay) (int, bool) {
	order := 1
	found := false
	for i := range c.Days {
		if c.Days[i].ID == day.ID {
			found = true
			continue
		}
		if c.Days[i].Date.Before(day.Date) {
			order++
		}
	}
	if !found {
		return 0, false
	}
	return order, true
}

// MarkCurrentDayExecuted sets the execution flag on today's day. It is a
// no-op (nil) when the challenge has no current day. Successful completion
// of the final day closes the challenge; marking the final day as missed
// leaves it open. A closed challenge is never reopened.
func MarkCurrentDayExecuted(c *models.DaysChallenge, now time.Time, executed bool) *models.HabitDay {
	day := CurrentDay(c, now)
	if day == nil {
		return nil
	}

	day.WasExecuted = executed
	day.UpdatedAt = now

	if order, ok := OrderOf(c, *day); ok && order == len(c.Days) && executed {
		c.IsClosed = true
	}
	return day
}

// ExecutedDays returns the member days marked as executed.
func ExecutedDays(c *models.DaysChallenge) []models.HabitDay {
	return filterDays(c, func(d models.HabitDay) bool {
		return d.WasExecuted
	})
}

// MissedDays returns past days that were not executed. Today and future
// days are excluded by construction.
func MissedDays(c *models.DaysChallenge, now time.Time) []models.HabitDay {
	todayStart := calendar.StartOfDay(now)
	return filterDays(c, func(d models.HabitDay) bool {
		return !d.WasExecuted && d.Date.Before(todayStart)
	})
}

// PastDays returns the member days strictly before today.
func PastDays(c *models.DaysChallenge, now time.Time) []models.HabitDay {
	todayStart := calendar.StartOfDay(now)
	return filterDays(c, func(d models.HabitDay) bool {
		return d.Date.Before(todayStart)
	})
}

// FutureDays returns the member days strictly after today.
func FutureDays(c *models.DaysChallenge, now time.Time) []models.HabitDay {
	todayStart := calendar.StartOfDay(now)
	return filterDays(c, func(d models.HabitDay) bool {
		return d.Date.After(todayStart)
	})
}

func filterDays(c *models.DaysChallenge, keep func(models.HabitDay) bool) []models.HabitDay {
	out := []models.HabitDay{}
	for _, d := range c.Days {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}

// Progress reports how far the challenge has advanced toward its total day
// count. Elapsed days count regardless of outcome, so the bar moves forward
// as time passes; today counts only once executed. Total is never below 1 so
// callers can divide safely.
func Progress(c *models.DaysChallenge, now time.Time) (past, total int) {
	past = len(PastDays(c, now))
	if today := CurrentDay(c, now); today != nil && today.WasExecuted {
		past++
	}
	total = len(c.Days)
	if total < 1 {
		total = 1
	}
	return past, total
}

// NotificationText formats a day's 1-based order as reminder body text,
// e.g. "1st day." or "22nd day.".
func NotificationText(order int) string {
	return fmt.Sprintf("%s day.", ordinal(order))
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
		// 11th, 12th, 13th
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// Close terminates the challenge: today's day and every future day are
// removed from the member set and returned for deletion, and the end bound
// is truncated to yesterday so historical views never show unexecuted tail
// days. Closing is irreversible; closing twice returns ErrClosed.
func Close(c *models.DaysChallenge, now time.Time) ([]models.HabitDay, error) {
	if c.IsClosed {
		return nil, ErrClosed
	}
	c.IsClosed = true

	todayStart := calendar.StartOfDay(now)
	removed := []models.HabitDay{}
	kept := c.Days[:0]
	for _, d := range c.Days {
		if d.Date.Before(todayStart) {
			kept = append(kept, d)
		} else {
			removed = append(removed, d)
		}
	}
	c.Days = kept
	if len(c.Days) > 0 {
		c.FromDate = calendar.StartOfDay(c.Days[0].Date)
	}
	c.ToDate = todayStart.AddDate(0, 0, -1)

	return removed, nil
}

// Contains reports whether date falls inside the challenge's inclusive
// [from, to] range at day granularity.
func Contains(c *models.DaysChallenge, date time.Time) bool {
	d := calendar.StartOfDay(date)
	return !d.Before(calendar.StartOfDay(c.FromDate)) && !d.After(calendar.StartOfDay(c.ToDate))
}
