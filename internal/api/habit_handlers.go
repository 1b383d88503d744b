package api

import (
	"database/sql"
	"log"
	"sort"
	"strconv"
	"time"

	"stride/internal/calendar"
	"stride/internal/challenge"
	"stride/internal/models"
	"stride/internal/notify"

	"github.com/gofiber/fiber/v2"
)

// paletteSize bounds the habit color index.
const paletteSize = 12

func validColor(color int) bool {
	return color >= 0 && color < paletteSize
}

func validFireTime(ft models.FireTimeRequest) bool {
	return ft.Hour >= 0 && ft.Hour <= 23 && ft.Minute >= 0 && ft.Minute <= 59
}

// uniqueDays normalizes the requested dates to local midnight, drops
// duplicates, and returns them sorted ascending.
func uniqueDays(dates []time.Time) []time.Time {
	seen := map[string]bool{}
	out := []time.Time{}
	for _, d := range dates {
		key := calendar.FormatDay(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, calendar.StartOfDay(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// createChallengeTx builds a challenge, its day records and its notification
// records inside tx. One notification is created per day and fire time, set
// to fire at that time of the day it reminds about.
func createChallengeTx(tx *sql.Tx, habit models.Habit, dates []time.Time) (models.DaysChallenge, []models.Notification, error) {
	days := uniqueDays(dates)
	if len(days) == 0 {
		return models.DaysChallenge{}, nil, calendar.ErrNoDates
	}

	from := calendar.FormatDay(days[0])
	to := calendar.FormatDay(days[len(days)-1])
	now := time.Now()

	res, err := tx.Exec(
		"INSERT INTO days_challenges (habit_id, from_date, to_date, is_closed, created_at) VALUES (?, ?, ?, 0, ?)",
		habit.ID, from, to, now,
	)
	if err != nil {
		return models.DaysChallenge{}, nil, err
	}
	challengeID, err := res.LastInsertId()
	if err != nil {
		return models.DaysChallenge{}, nil, err
	}

	ch := models.DaysChallenge{
		ID:        int(challengeID),
		HabitID:   habit.ID,
		FromDate:  days[0],
		ToDate:    days[len(days)-1],
		CreatedAt: now,
	}
	ch.Days, err = calendar.CreateDays(tx, habit.ID, ch.ID, days)
	if err != nil {
		return ch, nil, err
	}

	notifications := []models.Notification{}
	for i, day := range days {
		for _, ft := range habit.FireTimes {
			fireDate := time.Date(day.Year(), day.Month(), day.Day(), ft.Hour, ft.Minute, 0, 0, day.Location())
			res, err := tx.Exec(
				"INSERT INTO notifications (habit_id, fire_date, day_order, was_scheduled, created_at) VALUES (?, ?, ?, 0, ?)",
				habit.ID, fireDate, i+1, now,
			)
			if err != nil {
				return ch, nil, err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return ch, nil, err
			}
			notifications = append(notifications, models.Notification{
				ID:        int(id),
				HabitID:   habit.ID,
				FireDate:  fireDate,
				DayOrder:  i + 1,
				CreatedAt: now,
			})
		}
	}
	return ch, notifications, nil
}

func CreateHabitHandler(db *sql.DB, sched *notify.Scheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		var req models.CreateHabitRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Habit name is required")
		}
		if !validColor(req.Color) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid color index")
		}
		if len(req.Days) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "At least one day is required")
		}
		for _, ft := range req.FireTimes {
			if !validFireTime(ft) {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid fire time")
			}
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		now := time.Now()
		res, err := tx.Exec(
			"INSERT INTO habits (user_id, name, color, created_at) VALUES (?, ?, ?, ?)",
			userID, req.Name, req.Color, now,
		)
		if err != nil {
			return err
		}
		habitID, _ := res.LastInsertId()

		habit := models.Habit{
			ID:        int(habitID),
			UserID:    userID,
			Name:      req.Name,
			Color:     req.Color,
			CreatedAt: now,
		}

		for _, ft := range req.FireTimes {
			res, err := tx.Exec(
				"INSERT OR IGNORE INTO fire_times (habit_id, hour, minute, created_at) VALUES (?, ?, ?, ?)",
				habit.ID, ft.Hour, ft.Minute, now,
			)
			if err != nil {
				return err
			}
			// LastInsertId is stale when the insert was ignored; only an
			// affected row carries a fresh id. Repeated (hour, minute) pairs
			// in the request collapse to one fire time.
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				continue
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			habit.FireTimes = append(habit.FireTimes, models.FireTime{
				ID: int(id), HabitID: habit.ID, Hour: ft.Hour, Minute: ft.Minute, CreatedAt: now,
			})
		}

		ch, notifications, err := createChallengeTx(tx, habit, req.Days)
		if err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		// Reminder scheduling happens after commit; a scheduling failure
		// leaves the notification unscheduled but never loses the habit.
		if err := sched.ScheduleAll(userID, habit, &ch, notifications); err != nil {
			log.Printf("Failed to schedule reminders for habit %d: %v", habit.ID, err)
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"habit":     habit,
			"challenge": ch,
		})
	}
}

func ListHabitsHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)

		rows, err := db.Query(
			"SELECT id, user_id, name, color, created_at FROM habits WHERE user_id = ? ORDER BY created_at ASC",
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		habits := []models.Habit{}
		for rows.Next() {
			var h models.Habit
			if err := rows.Scan(&h.ID, &h.UserID, &h.Name, &h.Color, &h.CreatedAt); err != nil {
				return err
			}
			habits = append(habits, h)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		summaries := []models.HabitSummary{}
		for _, h := range habits {
			s, err := habitSummary(db, h)
			if err != nil {
				return err
			}
			summaries = append(summaries, s)
		}
		return c.JSON(summaries)
	}
}

// habitSummary aggregates execution counts across every day ever linked to
// the habit, not just the current challenge.
func habitSummary(q calendar.Queryer, h models.Habit) (models.HabitSummary, error) {
	var executed, total int
	err := q.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(was_executed), 0) FROM habit_days WHERE habit_id = ?",
		h.ID,
	).Scan(&total, &executed)
	if err != nil {
		return models.HabitSummary{}, err
	}
	s := models.HabitSummary{Habit: h, ExecutedCount: executed, TotalDays: total}
	if total > 0 {
		s.ExecutionPercentage = float64(executed) / float64(total) * 100
	}
	return s, nil
}

func GetHabitHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		habitID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid habit ID")
		}

		habit, err := loadHabit(db, habitID, userID)
		if err == errNotFound {
			return fiber.NewError(fiber.StatusNotFound, "Habit not found")
		}
		if err != nil {
			return err
		}

		summary, err := habitSummary(db, habit)
		if err != nil {
			return err
		}

		resp := fiber.Map{"habit": habit, "summary": summary}
		if ch, err := currentChallenge(db, habit.ID, time.Now()); err == nil {
			resp["challenge"] = challengeView(ch, time.Now())
		} else if err != errNotFound {
			return err
		}
		return c.JSON(resp)
	}
}

func UpdateHabitHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		habitID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid habit ID")
		}

		var req models.UpdateHabitRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.Name != nil && *req.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Habit name cannot be empty")
		}
		if req.Color != nil && !validColor(*req.Color) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid color index")
		}

		habit, err := loadHabit(db, habitID, userID)
		if err == errNotFound {
			return fiber.NewError(fiber.StatusNotFound, "Habit not found")
		}
		if err != nil {
			return err
		}

		if req.Name != nil {
			habit.Name = *req.Name
		}
		if req.Color != nil {
			habit.Color = *req.Color
		}
		if _, err := db.Exec(
			"UPDATE habits SET name = ?, color = ? WHERE id = ?",
			habit.Name, habit.Color, habit.ID,
		); err != nil {
			return err
		}

		return c.JSON(habit)
	}
}

func DeleteHabitHandler(db *sql.DB, sched *notify.Scheduler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		habitID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid habit ID")
		}

		notifications, err := loadNotifications(db, habitID)
		if err != nil {
			return err
		}

		result, err := db.Exec("DELETE FROM habits WHERE id = ? AND user_id = ?", habitID, userID)
		if err != nil {
			return err
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Habit not found")
		}

		// Cascades removed the rows; the center's pending entries go too.
		if err := sched.Unschedule(notifications); err != nil {
			log.Printf("Failed to unschedule reminders for habit %d: %v", habitID, err)
		}

		return c.JSON(fiber.Map{"success": true})
	}
}

func challengeView(ch models.DaysChallenge, now time.Time) models.ChallengeView {
	past, total := challenge.Progress(&ch, now)
	view := models.ChallengeView{
		Challenge:     ch,
		CurrentDay:    challenge.CurrentDay(&ch, now),
		ExecutedDays:  challenge.ExecutedDays(&ch),
		MissedDays:    challenge.MissedDays(&ch, now),
		PastDays:      challenge.PastDays(&ch, now),
		FutureDays:    challenge.FutureDays(&ch, now),
		ProgressPast:  past,
		ProgressTotal: total,
	}
	return view
}
