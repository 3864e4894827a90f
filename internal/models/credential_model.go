package models

import "time"

// Credential stores one platform login for a user. CredentialData is an
// AES-GCM encrypted JSON object whose keys depend on the platform
// (access_token/page_id for facebook, access_token/person_urn for linkedin,
// and so on).
type Credential struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	Platform       string    `db:"platform" json:"platform"`
	CredentialType string    `db:"credential_type" json:"credential_type"`
	CredentialData string    `db:"credential_data" json:"-"`
	AccountName    string    `db:"account_name" json:"account_name"`
	AccountID      string    `db:"account_id" json:"account_id"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	TokenExpiresAt time.Time `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
