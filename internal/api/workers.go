package api

import (
	"database/sql"
	"log"
	"time"

	"stride/internal/calendar"
	"stride/internal/notify"
)

// DispatchDueReminders delivers every queued reminder whose fire time has
// passed.
func DispatchDueReminders(center *notify.PushCenter) error {
	return center.DispatchDue(time.Now())
}

// PruneOrphanCalendarDays removes calendar days that no habit day references
// anymore. Day records are deleted when challenges close or habits are
// removed; the shared date rows are reaped here instead of inline.
func PruneOrphanCalendarDays(db *sql.DB) error {
	n, err := calendar.PruneOrphanDays(db)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("Pruned %d orphan calendar days", n)
	}
	return nil
}
