package api

import (
	"database/sql"
	"fmt"
)

// columnExists checks if a column exists on a given table (SQLite PRAGMA table_info)
func columnExists(db *sql.DB, table string, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var cid int
	var name string
	var ctype string
	var notnull int
	var dflt sql.NullString
	var pk int

	for rows.Next() {
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// MigrateAddHabitColor ensures the habits table has a color column
// (idempotent, for databases created before the palette existed).
func MigrateAddHabitColor(db *sql.DB) error {
	exists, err := columnExists(db, "habits", "color")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := db.Exec("ALTER TABLE habits ADD COLUMN color INTEGER NOT NULL DEFAULT 0"); err != nil {
			return err
		}
	}
	return nil
}

// MigrateAddNotificationExternalID ensures notifications carry the external
// scheduling key column (idempotent).
func MigrateAddNotificationExternalID(db *sql.DB) error {
	exists, err := columnExists(db, "notifications", "user_notification_id")
	if err != nil {
		return err
	}
	if !exists {
		if _, err := db.Exec("ALTER TABLE notifications ADD COLUMN user_notification_id TEXT"); err != nil {
			return err
		}
	}
	return nil
}
