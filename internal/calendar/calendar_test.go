package calendar_test

import (
	"database/sql"
	"testing"
	"time"

	"stride/internal/calendar"
	"stride/internal/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedHabit inserts the user, habit and challenge rows the foreign keys on
// habit_days require. Returns the habit and challenge ids.
func seedHabit(t *testing.T, db *sql.DB) (int, int) {
	if _, err := db.Exec("INSERT INTO users (username, password_hash) VALUES ('tester', 'x')"); err != nil {
		t.Fatal(err)
	}
	res, err := db.Exec("INSERT INTO habits (user_id, name, color) VALUES (1, 'Read', 0)")
	if err != nil {
		t.Fatal(err)
	}
	habitID, _ := res.LastInsertId()
	res, err = db.Exec(
		"INSERT INTO days_challenges (habit_id, from_date, to_date) VALUES (?, '2024-01-01', '2024-01-03')",
		habitID,
	)
	if err != nil {
		t.Fatal(err)
	}
	challengeID, _ := res.LastInsertId()
	return int(habitID), int(challengeID)
}

func TestDayForDedupsDates(t *testing.T) {
	db := setupTestDB(t)

	morning := time.Date(2024, 1, 1, 9, 0, 0, 0, time.Local)
	night := time.Date(2024, 1, 1, 23, 0, 0, 0, time.Local)

	d1, err := calendar.DayFor(db, morning)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := calendar.DayFor(db, night)
	if err != nil {
		t.Fatal(err)
	}
	if d1.ID != d2.ID {
		t.Fatalf("Expected same calendar day, got ids %d and %d", d1.ID, d2.ID)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM calendar_days").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("Expected 1 calendar day row, got %d", count)
	}
}

func TestDayForDifferentDates(t *testing.T) {
	db := setupTestDB(t)

	d1, err := calendar.DayFor(db, time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	d2, err := calendar.DayFor(db, time.Date(2024, 1, 2, 12, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	if d1.ID == d2.ID {
		t.Fatal("Expected distinct calendar days for distinct dates")
	}
}

func TestCreateDaysPreservesInputOrder(t *testing.T) {
	db := setupTestDB(t)
	habitID, challengeID := seedHabit(t, db)

	// Deliberately out of date order.
	dates := []time.Time{
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.Local),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local),
	}

	days, err := calendar.CreateDays(db, habitID, challengeID, dates)
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 3 {
		t.Fatalf("Expected 3 days, got %d", len(days))
	}
	for i, d := range days {
		if !calendar.SameDay(d.Date, dates[i]) {
			t.Fatalf("Result order diverged from input at %d: %v vs %v", i, d.Date, dates[i])
		}
		if d.WasExecuted {
			t.Fatal("Expected new days to be unexecuted")
		}
	}
}

func TestCreateDaysRequiresDates(t *testing.T) {
	db := setupTestDB(t)
	habitID, challengeID := seedHabit(t, db)

	if _, err := calendar.CreateDays(db, habitID, challengeID, nil); err != calendar.ErrNoDates {
		t.Fatalf("Expected ErrNoDates, got %v", err)
	}
}

func TestChallengeDaysSortedByDate(t *testing.T) {
	db := setupTestDB(t)
	habitID, challengeID := seedHabit(t, db)

	dates := []time.Time{
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.Local),
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local),
	}
	if _, err := calendar.CreateDays(db, habitID, challengeID, dates); err != nil {
		t.Fatal(err)
	}

	days, err := calendar.ChallengeDays(db, challengeID)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(days); i++ {
		if days[i].Date.Before(days[i-1].Date) {
			t.Fatal("Expected days sorted ascending by date")
		}
	}
}

func TestPruneOrphanDays(t *testing.T) {
	db := setupTestDB(t)
	habitID, challengeID := seedHabit(t, db)

	day, err := calendar.CreateDay(db, habitID, challengeID, time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	// A second date nothing references after the day below is deleted.
	if _, err := calendar.DayFor(db, time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local)); err != nil {
		t.Fatal(err)
	}

	n, err := calendar.PruneOrphanDays(db)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 orphan pruned, got %d", n)
	}

	// The referenced day survived.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM calendar_days WHERE id = ?", day.CalendarDayID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatal("Expected the referenced calendar day to survive pruning")
	}

	if err := calendar.DeleteDay(db, day.ID); err != nil {
		t.Fatal(err)
	}
	if n, err = calendar.PruneOrphanDays(db); err != nil || n != 1 {
		t.Fatalf("Expected the now-orphaned day pruned, got n=%d err=%v", n, err)
	}
}
