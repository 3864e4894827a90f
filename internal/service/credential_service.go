package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/adapter"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

type CredentialService interface {
	Create(ctx context.Context, userID int64, cc *transfer.CredentialCreation) (int64, error)
	List(ctx context.Context, userID int64) ([]*models.Credential, error)
	Test(ctx context.Context, userID, credentialID int64) error
	Remove(ctx context.Context, userID, credentialID int64) error
}

type credentialService struct {
	cfg      config.Config
	cr       repository.CredentialRepository
	registry *adapter.Registry
}

func NewCredentialService(cfg config.Config, cr repository.CredentialRepository, registry *adapter.Registry) CredentialService {
	return &credentialService{cfg: cfg, cr: cr, registry: registry}
}

// Create encrypts the credential payload before it is stored. Secrets
// only exist decrypted inside a publish or test call.
func (s *credentialService) Create(ctx context.Context, userID int64, cc *transfer.CredentialCreation) (int64, error) {
	if cc == nil || len(cc.Data) == 0 {
		return 0, errors.New("credential data is empty")
	}
	if !models.ValidPlatform(cc.Platform) {
		return 0, fmt.Errorf("unknown platform %s", cc.Platform)
	}

	plaintext, err := json.Marshal(cc.Data)
	if err != nil {
		return 0, err
	}

	encrypted, err := utils.Encrypt(plaintext, []byte(s.cfg.SecretKey))
	if err != nil {
		return 0, err
	}

	cred := &models.Credential{
		UserID:         userID,
		Platform:       cc.Platform,
		CredentialType: cc.CredentialType,
		CredentialData: encrypted,
		AccountName:    cc.AccountName,
		AccountID:      cc.AccountID,
		IsActive:       true,
	}

	return s.cr.Create(ctx, nil, cred)
}

func (s *credentialService) List(ctx context.Context, userID int64) ([]*models.Credential, error) {
	creds, err := s.cr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing credentials")
	}
	return creds, nil
}

// Test runs the platform's credential check with the stored secret.
func (s *credentialService) Test(ctx context.Context, userID, credentialID int64) error {
	cred, err := s.ownedCredential(ctx, userID, credentialID)
	if err != nil {
		return err
	}

	a, ok := s.registry.Lookup(cred.Platform)
	if !ok {
		return fmt.Errorf("platform %s is not supported", cred.Platform)
	}

	plaintext, err := utils.Decrypt(cred.CredentialData, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var data map[string]string
	if err := json.Unmarshal([]byte(plaintext), &data); err != nil {
		return err
	}

	return a.TestCredentials(ctx, adapter.Credentials(data))
}

func (s *credentialService) Remove(ctx context.Context, userID, credentialID int64) error {
	if _, err := s.ownedCredential(ctx, userID, credentialID); err != nil {
		return err
	}
	return s.cr.Remove(ctx, credentialID)
}

func (s *credentialService) ownedCredential(ctx context.Context, userID, credentialID int64) (*models.Credential, error) {
	if userID == 0 || credentialID == 0 {
		return nil, errors.New("credential id is not valid")
	}

	isOwner, err := s.cr.CheckByUserID(ctx, credentialID, userID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		err = errors.New("credential doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	return s.cr.GetByID(ctx, credentialID)
}
