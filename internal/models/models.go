package models

import "time"

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Habit is the aggregate root: fire times, challenges and notifications are
// owned by it and deleted with it.
type Habit struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	Color     int       `json:"color"`
	CreatedAt time.Time `json:"created_at"`

	FireTimes []FireTime `json:"fire_times,omitempty"`
}

// CalendarDay is a deduplicated calendar date shared across habits: at most
// one row per distinct local date. Created lazily, never mutated, removed
// only once no habit day references it anymore.
type CalendarDay struct {
	ID   int       `json:"id"`
	Date time.Time `json:"date"`
}

// HabitDay records whether a habit was executed on one calendar day.
type HabitDay struct {
	ID            int       `json:"id"`
	HabitID       int       `json:"habit_id"`
	ChallengeID   int       `json:"challenge_id"`
	CalendarDayID int       `json:"calendar_day_id"`
	Date          time.Time `json:"date"`
	WasExecuted   bool      `json:"was_executed"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DaysChallenge is a contiguous range of calendar days on which a habit is
// tracked. FromDate/ToDate always equal the min/max date of the member days.
// IsClosed never transitions back to false.
type DaysChallenge struct {
	ID        int       `json:"id"`
	HabitID   int       `json:"habit_id"`
	FromDate  time.Time `json:"from_date"`
	ToDate    time.Time `json:"to_date"`
	IsClosed  bool      `json:"is_closed"`
	CreatedAt time.Time `json:"created_at"`

	Days []HabitDay `json:"days,omitempty"`
}

type FireTime struct {
	ID        int       `json:"id"`
	HabitID   int       `json:"habit_id"`
	Hour      int       `json:"hour"`
	Minute    int       `json:"minute"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is one scheduled reminder for one day of a challenge.
// UserNotificationID is the external scheduling key, assigned at the moment
// the reminder is handed to the notification center.
type Notification struct {
	ID                 int       `json:"id"`
	HabitID            int       `json:"habit_id"`
	FireDate           time.Time `json:"fire_date"`
	DayOrder           int       `json:"day_order"`
	WasScheduled       bool      `json:"was_scheduled"`
	UserNotificationID string    `json:"user_notification_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type PushSubscription struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

type FireTimeRequest struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type CreateHabitRequest struct {
	Name      string            `json:"name"`
	Color     int               `json:"color"`
	Days      []time.Time       `json:"days"`
	FireTimes []FireTimeRequest `json:"fire_times,omitempty"`
}

type UpdateHabitRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *int    `json:"color,omitempty"`
}

type CreateChallengeRequest struct {
	Days []time.Time `json:"days"`
}

type MarkDayRequest struct {
	Executed bool `json:"executed"`
}

// ChallengeView is the derived read model of a challenge: the member days
// partitioned the way the tracker screens need them.
type ChallengeView struct {
	Challenge     DaysChallenge `json:"challenge"`
	CurrentDay    *HabitDay     `json:"current_day,omitempty"`
	ExecutedDays  []HabitDay    `json:"executed_days"`
	MissedDays    []HabitDay    `json:"missed_days"`
	PastDays      []HabitDay    `json:"past_days"`
	FutureDays    []HabitDay    `json:"future_days"`
	ProgressPast  int           `json:"progress_past"`
	ProgressTotal int           `json:"progress_total"`
}

type HabitSummary struct {
	Habit               Habit   `json:"habit"`
	ExecutedCount       int     `json:"executed_count"`
	TotalDays           int     `json:"total_days"`
	ExecutionPercentage float64 `json:"execution_percentage"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
