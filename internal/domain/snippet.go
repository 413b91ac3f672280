package domain

import "time"

// Snippet is a named canned reply operators can deliver into tickets.
type Snippet struct {
	Name      string
	Content   string
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BlacklistEntry marks a user whose inbound messages are ignored.
type BlacklistEntry struct {
	UserID    string
	Reason    string
	AddedBy   string
	CreatedAt time.Time
}
