package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

// TokenRefreshJob renews OAuth access tokens before they expire so a
// scheduled post never fails on a stale token. Only credentials that
// carry a refresh_token can be renewed.
type TokenRefreshJob struct {
	cr        repository.CredentialRepository
	secretKey string
}

func NewTokenRefreshJob(cr repository.CredentialRepository, secretKey string) *TokenRefreshJob {
	return &TokenRefreshJob{
		cr:        cr,
		secretKey: secretKey,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now().UTC()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	creds, err := c.cr.ListExpiringBetween(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, cred := range creds {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(cred *models.Credential) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.refresh(ctx, cred); err != nil {
				slog.Info("unable to refresh token",
					"credential_id", cred.ID,
					"platform", cred.Platform,
					"error", err.Error())
			}
		}(cred)
	}

	wg.Wait()
}

func (c *TokenRefreshJob) refresh(ctx context.Context, cred *models.Credential) error {
	plaintext, err := utils.Decrypt(cred.CredentialData, []byte(c.secretKey))
	if err != nil {
		return err
	}

	var data map[string]string
	if err := json.Unmarshal([]byte(plaintext), &data); err != nil {
		return err
	}

	if data["refresh_token"] == "" {
		return errors.New("credential has no refresh token")
	}

	var endpoint oauth2.Endpoint
	switch cred.Platform {
	case models.PlatformYoutube:
		endpoint = google.Endpoint
	default:
		return errors.New("token refresh is not supported for " + cred.Platform)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     data["client_id"],
		ClientSecret: data["client_secret"],
		Endpoint:     endpoint,
	}

	token, err := oauth2Config.TokenSource(ctx, &oauth2.Token{
		RefreshToken: data["refresh_token"],
	}).Token()
	if err != nil {
		return err
	}

	data["access_token"] = token.AccessToken
	if token.RefreshToken != "" {
		data["refresh_token"] = token.RefreshToken
	}

	updated, err := json.Marshal(data)
	if err != nil {
		return err
	}

	encrypted, err := utils.Encrypt(updated, []byte(c.secretKey))
	if err != nil {
		return err
	}

	return c.cr.SetData(ctx, cred.ID, encrypted, token.Expiry.UTC())
}
