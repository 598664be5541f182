// Package models defines server-side data models persisted in the database.
package models

import "time"

// Account is an operator tenant. Its password never reaches storage; only
// the verifier derived from it does.
type Account struct {
	ID        string
	Email     string
	Verifier  []byte
	CreatedAt time.Time
}

// Group owns an ordered list of add-ons shared by its users.
type Group struct {
	ID        string
	AccountID string
	Name      string
	CreatedAt time.Time
}

// Membership places an add-on at a position inside a group.
type Membership struct {
	GroupID  string
	AddonID  string
	Position int
}
