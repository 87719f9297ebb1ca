package types

import "time"

// Task is a unit of logged work belonging to one user. TotalTime is
// derived at creation as the span between start and end in seconds.
type Task struct {
	ID            int       `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	StartDatetime time.Time `json:"start_datetime" db:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime" db:"end_datetime"`
	TotalTime     float64   `json:"total_time" db:"total_time"`
	Memo          string    `json:"memo" db:"memo"`

	UserID int `json:"user_id" db:"user_id"`
}
