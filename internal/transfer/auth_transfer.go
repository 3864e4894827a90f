package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type CredentialCreation struct {
	Platform       string            `json:"platform"`
	CredentialType string            `json:"credential_type"`
	AccountName    string            `json:"account_name"`
	AccountID      string            `json:"account_id"`
	Data           map[string]string `json:"data"`
}
