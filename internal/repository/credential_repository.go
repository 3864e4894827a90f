package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

type CredentialRepository interface {
	Create(ctx context.Context, tx *sql.Tx, cred *models.Credential) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Credential, error)
	GetActive(ctx context.Context, userID int64, platform string) (*models.Credential, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Credential, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Credential, error)
	CheckByUserID(ctx context.Context, credentialID, userID int64) (bool, error)
	SetData(ctx context.Context, id int64, credentialData string, expiresAt time.Time) error
	Remove(ctx context.Context, id int64) error
}

type credentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

const credentialColumns = `id, user_id, platform, credential_type, credential_data, account_name, account_id, is_active, token_expires_at, created_at, updated_at`

func scanCredential(row interface{ Scan(...any) error }) (*models.Credential, error) {
	var c models.Credential
	err := row.Scan(&c.ID, &c.UserID, &c.Platform, &c.CredentialType, &c.CredentialData,
		&c.AccountName, &c.AccountID, &c.IsActive, &c.TokenExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *credentialRepository) Create(ctx context.Context, tx *sql.Tx, cred *models.Credential) (int64, error) {
	query := `
		INSERT INTO credentials (user_id, platform, credential_type, credential_data, account_name, account_id, is_active, token_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, cred.UserID, cred.Platform, cred.CredentialType,
			cred.CredentialData, cred.AccountName, cred.AccountID, cred.IsActive, cred.TokenExpiresAt).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, cred.UserID, cred.Platform, cred.CredentialType,
			cred.CredentialData, cred.AccountName, cred.AccountID, cred.IsActive, cred.TokenExpiresAt).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *credentialRepository) GetByID(ctx context.Context, id int64) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE id = $1`
	cred, err := scanCredential(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return cred, nil
}

// GetActive returns the one active credential for (user, platform), or nil
// when the user never connected that platform.
func (r *credentialRepository) GetActive(ctx context.Context, userID int64, platform string) (*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE user_id = $1 AND platform = $2 AND is_active = TRUE
		ORDER BY updated_at DESC
		LIMIT 1
	`
	cred, err := scanCredential(r.db.QueryRowContext(ctx, query, userID, platform))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return cred, nil
}

func (r *credentialRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

func (r *credentialRepository) ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.Credential, error) {
	query := `
		SELECT ` + credentialColumns + `
		FROM credentials
		WHERE is_active = TRUE
		AND ((token_expires_at BETWEEN $1 AND $2) OR token_expires_at < $1)
	`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

func (r *credentialRepository) CheckByUserID(ctx context.Context, credentialID, userID int64) (bool, error) {
	query := "SELECT 1 FROM credentials WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, credentialID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *credentialRepository) SetData(ctx context.Context, id int64, credentialData string, expiresAt time.Time) error {
	query := `
		UPDATE credentials
		SET credential_data = $1, token_expires_at = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, credentialData, expiresAt, time.Now().UTC(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *credentialRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM credentials WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
