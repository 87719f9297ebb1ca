package types

import "time"

// User represents an account in the system.
// It contains identity, credential, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsAdmin indicates whether the user holds administrative rights.
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// Phone is the user's contact phone number.
	Phone string `json:"phone" db:"phone"`

	// Provider names the identity provider the account came from
	// ("local" for accounts registered directly).
	Provider string `json:"provider" db:"provider"`

	// ProviderID is the account's identifier at the external provider.
	ProviderID int `json:"provider_id" db:"provider_id"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// LastLogin is the timestamp of the most recent login.
	LastLogin *time.Time `json:"last_login" db:"last_login"`
}

// UserView is the minimal public projection of a user returned by
// the login endpoint.
type UserView struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}
