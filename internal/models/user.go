// Package models defines the domain types shared across Talon.
package models

// User represents a user or bot known to the server.
type User struct {
	// ID is the server-assigned numeric user ID.
	ID int64 `json:"user_id"`

	// Email is the user's address; older servers key events by it.
	Email string `json:"email"`

	// FullName is the display name.
	FullName string `json:"full_name"`

	// IsBot indicates a bot account.
	IsBot bool `json:"is_bot"`
}

// Directory is the per-session user directory, indexed both ways so
// email-keyed payloads from older servers can be resolved to IDs.
type Directory struct {
	byID    map[int64]User
	byEmail map[string]User
}

// NewDirectory builds a directory from a user list.
func NewDirectory(users []User) *Directory {
	d := &Directory{
		byID:    make(map[int64]User, len(users)),
		byEmail: make(map[string]User, len(users)),
	}
	for _, u := range users {
		d.Add(u)
	}
	return d
}

// Add inserts or replaces a user.
func (d *Directory) Add(u User) {
	if u.ID <= 0 {
		return
	}
	d.byID[u.ID] = u
	if u.Email != "" {
		d.byEmail[u.Email] = u
	}
}

// ByID looks up a user by ID.
func (d *Directory) ByID(id int64) (User, bool) {
	u, ok := d.byID[id]
	return u, ok
}

// ByEmail looks up a user by email.
func (d *Directory) ByEmail(email string) (User, bool) {
	u, ok := d.byEmail[email]
	return u, ok
}

// Len returns the number of known users.
func (d *Directory) Len() int {
	return len(d.byID)
}
