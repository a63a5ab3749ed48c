package models

import "time"

// Email is a single message as the backend reports it. Identity (ID) is
// opaque and stable; only the boolean flags are mutable on the client.
//
// Location invariant: an email is in exactly one of {active, archived,
// trashed} for list-membership purposes. IsArchived and IsTrashed are never
// both meaningful at the same time.
type Email struct {
	ID             string    `json:"id"`
	AccountID      string    `json:"account_id"`
	ThreadID       string    `json:"thread_id"`
	FromAddress    string    `json:"from_address"`
	ToAddresses    []string  `json:"to_addresses"`
	CCAddresses    []string  `json:"cc_addresses"`
	Subject        string    `json:"subject"`
	Snippet        string    `json:"snippet"`
	Date           time.Time `json:"date"`
	Category       string    `json:"category,omitempty"`
	IsRead         bool      `json:"is_read"`
	IsStarred      bool      `json:"is_starred"`
	IsArchived     bool      `json:"is_archived"`
	IsTrashed      bool      `json:"is_trashed"`
	HasAttachments bool      `json:"has_attachments"`
}

// Thread groups emails sharing a thread_id. When thread view is active the
// collection store holds threads instead of flat emails; the two views are
// mutually exclusive per fetch.
type Thread struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Subject      string    `json:"subject"`
	Snippet      string    `json:"snippet"`
	MessageCount int       `json:"message_count"`
	LatestDate   time.Time `json:"latest_date"`
	Emails       []Email   `json:"emails,omitempty"`
}

// EmailPage is the backend's response shape for paginated email listings.
type EmailPage struct {
	Emails  []Email `json:"emails"`
	Total   int     `json:"total"`
	HasMore bool    `json:"has_more"`
}

// ThreadPage is the backend's response shape for paginated thread listings.
type ThreadPage struct {
	Threads []Thread `json:"threads"`
	Total   int      `json:"total"`
}

// SyncResult reports the outcome of a backend-initiated mailbox sync.
type SyncResult struct {
	SyncedCount int `json:"synced_count"`
}
