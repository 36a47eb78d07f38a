package models

import "time"

// User represents an exchange account as seen by the authentication core.
// Balance, KYC and order data live elsewhere; only the fields the login and
// two-factor flows touch are modeled here.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role"`

	// Two-factor credential. Secret is the base32 TOTP seed, present from
	// pending-setup onward and cleared on disable. BackupCodesRaw holds the
	// persisted backup-code field verbatim: the column's format drifted over
	// the system's history, so it is only ever interpreted through
	// backupcodes.Parse.
	TwoFactorSecret   string `db:"two_factor_secret" json:"-"`
	TwoFactorEnabled  bool   `db:"two_factor_enabled" json:"two_factor_enabled"`
	TwoFactorVerified bool   `db:"two_factor_verified" json:"two_factor_verified"`
	TwoFactorMethod   string `db:"two_factor_method" json:"two_factor_method,omitempty"`
	BackupCodesRaw    string `db:"backup_codes" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TwoFactorMethod values
const (
	TwoFactorMethodApp = "app"
)

// HasPendingSetup reports whether a secret has been generated but not yet
// confirmed with a valid code.
func (u *User) HasPendingSetup() bool {
	return u.TwoFactorSecret != "" && !u.TwoFactorEnabled
}

// TwoFactorUpdate carries the two-factor fields written back to the user
// store as one unit. A nil field pointer would complicate call sites for no
// benefit; setup, enable and disable each overwrite the full credential.
type TwoFactorUpdate struct {
	Secret         string
	Enabled        bool
	Verified       bool
	Method         string
	BackupCodesRaw string
}
