package models

import "time"

// User is one remote-platform identity managed by an account.
//
// AuthKey and ProtectedAddons hold vault blobs; an empty AuthKey means the
// user has not connected a remote credential yet. ProtectedAddons seals a
// JSON array of manifest URLs or add-on names. GroupID is empty for users
// without a group.
type User struct {
	ID              string
	AccountID       string
	GroupID         string
	Username        string
	AuthKey         string
	ExpiresAt       *time.Time
	ExcludedAddons  []string
	ProtectedAddons string
	IsActive        bool
}

// Expired reports whether the user's access has lapsed at now.
func (u *User) Expired(now time.Time) bool {
	return u.ExpiresAt != nil && !u.ExpiresAt.After(now)
}
