package models

import (
	"errors"
	"strings"
	"time"
)

// Account represents a stored server login.
type Account struct {
	// ID is the unique identifier for the account.
	ID string `json:"id"`

	// ServerURL is the base URL of the server.
	ServerURL string `json:"server_url"`

	// Email is the login address on that server.
	Email string `json:"email"`

	// APIKey is the per-account API key.
	APIKey string `json:"api_key"`

	// ServerVersion is the version detected at last login.
	ServerVersion string `json:"server_version,omitempty"`

	// Capabilities is the capability list detected at last login.
	Capabilities []string `json:"capabilities,omitempty"`

	// CreatedAt is when the account was added.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the account was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks required account fields.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.ServerURL) == "" {
		return errors.New("server url is required")
	}
	if strings.TrimSpace(a.Email) == "" {
		return errors.New("email is required")
	}
	if strings.TrimSpace(a.APIKey) == "" {
		return errors.New("api key is required")
	}
	return nil
}

// HasCapability reports whether the stored capability list contains name.
func (a *Account) HasCapability(name string) bool {
	for _, c := range a.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}
