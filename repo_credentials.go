package tokens

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var UpdatePasswordHashSQL = `UPDATE "credentials" AS "cred"
SET
	"is_email_verified" = TRUE,
	"password_hash" = ?
WHERE
	"cred"."deleted_at" IS NULL
AND (
	"cred"."id" = ?
) RETURNING *;`

var MarkEmailVerifiedSQL = `UPDATE "credentials" AS "cred"
SET
	"is_email_verified" = TRUE
WHERE
	"cred"."deleted_at" IS NULL
AND (
	"cred"."id" = ?
) RETURNING *;`

// Credentials exposes the credential store plus the login-attempt tracking
// the authenticator needs.
type Credentials interface {
	repository.Repository[*Credential]

	FindBySubjectID(ctx context.Context, id uuid.UUID) (*Credential, error)
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error

	Register(ctx context.Context, record *Credential) (*Credential, error)
	RegisterTx(ctx context.Context, tx bun.IDB, record *Credential) (*Credential, error)

	TrackAttemptedLogin(ctx context.Context, record *Credential) error
	TrackSucccessfulLogin(ctx context.Context, record *Credential) error
}

var _ CredentialStore = (Credentials)(nil)

type credentials struct {
	repository.Repository[*Credential]
	db *bun.DB
}

func NewCredentialsRepository(db *bun.DB) Credentials {
	repo := repository.NewRepository[*Credential](db, repository.ModelHandlers[*Credential]{
		NewRecord: func() *Credential { return &Credential{} },
		GetID: func(c *Credential) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Credential, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &credentials{
		Repository: repo,
		db:         db,
	}
}

func (a *credentials) FindBySubjectID(ctx context.Context, id uuid.UUID) (*Credential, error) {
	record := &Credential{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}
	return record, nil
}

func (a *credentials) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	record := &Credential{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}
	return record, nil
}

func (a *credentials) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, a.db, MarkEmailVerifiedSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *credentials) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, a.db, UpdatePasswordHashSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func (a *credentials) Register(ctx context.Context, record *Credential) (*Credential, error) {
	return a.RegisterTx(ctx, a.db, record)
}

func (a *credentials) RegisterTx(ctx context.Context, tx bun.IDB, record *Credential) (*Credential, error) {
	prepareCredentialDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *credentials) TrackSucccessfulLogin(ctx context.Context, record *Credential) error {
	// NOTE: Updating using the ORM fails to reset login_attempt_at and
	// login_attempts fields, keep this raw.
	loggedInAt := time.Now()
	_, err := a.db.NewRaw(`
		UPDATE "credentials" AS "cred"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("cred".id = ?)
			AND "cred"."deleted_at" IS NULL;
	`, loggedInAt, record.ID).Exec(ctx)

	return err
}

func (a *credentials) TrackAttemptedLogin(ctx context.Context, record *Credential) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(record.ID.String()),
	}

	update := &Credential{}
	update.ID = record.ID
	update.LoginAttempts = record.LoginAttempts + 1
	now := time.Now()
	update.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, a.db, update, criteria...)

	return err
}

func prepareCredentialDefaults(record *Credential) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = string(RoleGuest)
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
