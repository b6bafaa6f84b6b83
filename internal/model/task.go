package model

import "time"

// Task statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task is a titled, timestamped schedule item shown on the calendar.
// StartTime and EndTime are stored in UTC; the UI treats tasks as
// point-in-time, so both are normally equal.
type Task struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Status         string    `json:"status"`
	UserID         int64     `json:"user_id"`
	Description    string    `json:"description"`
	RecurrenceID   *string   `json:"recurrence_id"`
	RecurrenceRule string    `json:"recurrence_rule"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
