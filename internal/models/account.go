package models

import "time"

// Account is a connected mailbox account.
type Account struct {
	ID           string    `json:"id"`
	EmailAddress string    `json:"email_address"`
	Provider     string    `json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
}
