package api

import (
	"database/sql"
	"os"
	"strings"

	"stride/internal/notify"

	"github.com/gofiber/fiber/v2"
)

func SetupRoutes(app *fiber.App, db *sql.DB, center *notify.PushCenter) {
	sched := notify.NewScheduler(db, center)

	api := app.Group("/api")

	// Check if registration is disabled
	disableRegistration := strings.ToLower(os.Getenv("DISABLE_REGISTRATION")) == "true"

	// Configuration endpoint (public)
	api.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"disableRegistration": disableRegistration,
		})
	})

	// Auth routes
	auth := api.Group("/auth")
	if !disableRegistration {
		auth.Post("/register", RegisterHandler(db))
	}
	auth.Post("/login", LoginHandler(db))
	auth.Post("/refresh", RefreshTokenHandler(db))
	auth.Post("/logout", LogoutHandler(db))

	// VAPID public key endpoint (public - must be before protected routes for proper routing)
	api.Get("/push/vapid-public-key", VapidPublicKeyHandler())

	// Protected routes
	protected := api.Group("/", AuthMiddleware())

	// Habit routes
	habits := protected.Group("/habits")
	habits.Post("/", CreateHabitHandler(db, sched))
	habits.Get("/", ListHabitsHandler(db))
	habits.Get("/:id", GetHabitHandler(db))
	habits.Put("/:id", UpdateHabitHandler(db))
	habits.Delete("/:id", DeleteHabitHandler(db, sched))

	// Challenge routes
	habits.Post("/:id/challenges", CreateChallengeHandler(db, sched))
	habits.Get("/:id/challenge", GetCurrentChallengeHandler(db))
	habits.Put("/:id/days/current", MarkCurrentDayHandler(db, sched))
	habits.Post("/:id/challenge/close", CloseChallengeHandler(db, sched))

	// Fire time routes
	habits.Post("/:id/fire-times", AddFireTimeHandler(db))
	habits.Get("/:id/fire-times", ListFireTimesHandler(db))
	habits.Delete("/:id/fire-times/:fireTimeId", DeleteFireTimeHandler(db))

	// Push subscription routes
	push := protected.Group("/push")
	push.Post("/subscribe", SubscribePushHandler(db))
	push.Delete("/unsubscribe", UnsubscribePushHandler(db))
	push.Get("/pending", ListPendingRemindersHandler(center))

	// User profile routes
	user := protected.Group("/user")
	user.Get("/profile", GetUserProfileHandler(db))
	user.Put("/email", UpdateUserEmailHandler(db))
	user.Post("/summary-email", SendSummaryEmailHandler(db))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
