package domain

import "time"

// User represents a local panel account.
type User struct {
	ID           string `bson:"_id,omitempty" json:"id"`
	Username     string `bson:"username" json:"username"`
	Email        string `bson:"email" json:"email"`
	FirstName    string `bson:"name_first,omitempty" json:"name_first"`
	LastName     string `bson:"name_last,omitempty" json:"name_last"`
	PasswordHash string `bson:"password,omitempty" json:"-"` // Empty for external-identity-only accounts
	// ExternalID is the identity key assigned by an OAuth2 provider. Unique when set.
	ExternalID string    `bson:"external_id,omitempty" json:"-"`
	UseTOTP    bool      `bson:"use_totp" json:"use_totp"`
	TOTPSecret string    `bson:"totp_secret,omitempty" json:"-"`
	RootAdmin  bool      `bson:"root_admin" json:"root_admin"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// HasPassword reports whether the account can log in with a password at all.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// FullName joins the first and last name.
func (u *User) FullName() string {
	switch {
	case u.LastName == "":
		return u.FirstName
	case u.FirstName == "":
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}
