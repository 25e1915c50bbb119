package domain

import "time"

// Session is a named batch of signals extracted in one ingestion run.
type Session struct {
	SessionID   string
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	SignalCount int
}
