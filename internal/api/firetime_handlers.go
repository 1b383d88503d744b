package api

import (
	"database/sql"
	"strconv"

	"stride/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AddFireTimeHandler registers a reminder time-of-day for a habit. A habit
// cannot hold the same (hour, minute) pair twice.
func AddFireTimeHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		habitID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid habit ID")
		}

		var req models.FireTimeRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if !validFireTime(req) {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid fire time")
		}

		if _, err := loadHabit(db, habitID, userID); err != nil {
			if err == errNotFound {
				return fiber.NewError(fiber.StatusNotFound, "Habit not found")
			}
			return err
		}

		result, err := db.Exec(
			"INSERT OR IGNORE INTO fire_times (habit_id, hour, minute) VALUES (?, ?, ?)",
			habitID, req.Hour, req.Minute,
		)
		if err != nil {
			return err
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fiber.NewError(fiber.StatusConflict, "Fire time already exists")
		}

		id, _ := result.LastInsertId()
		var ft models.FireTime
		if err := db.QueryRow(
			"SELECT id, habit_id, hour, minute, created_at FROM fire_times WHERE id = ?",
			id,
		).Scan(&ft.ID, &ft.HabitID, &ft.Hour, &ft.Minute, &ft.CreatedAt); err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(ft)
	}
}

func ListFireTimesHandler(db *sql.DB) fiber.Handler {
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

		fireTimes := habit.FireTimes
		if fireTimes == nil {
			fireTimes = []models.FireTime{}
		}
		return c.JSON(fireTimes)
	}
}

func DeleteFireTimeHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("userID").(int)
		habitID, err := strconv.Atoi(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid habit ID")
		}
		fireTimeID, err := strconv.Atoi(c.Params("fireTimeId"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid fire time ID")
		}

		if _, err := loadHabit(db, habitID, userID); err != nil {
			if err == errNotFound {
				return fiber.NewError(fiber.StatusNotFound, "Habit not found")
			}
			return err
		}

		result, err := db.Exec(
			"DELETE FROM fire_times WHERE id = ? AND habit_id = ?",
			fireTimeID, habitID,
		)
		if err != nil {
			return err
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Fire time not found")
		}

		return c.JSON(fiber.Map{"success": true})
	}
}
