package models

import "time"

// SessionInfo describes a live session.
type SessionInfo struct {
	ID        string    `json:"session_id"`
	Documents int       `json:"documents"`
	Pages     int       `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
}
