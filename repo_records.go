package tokens

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeVerificationRecordSQL removes a record by exact token match and
// returns the deleted row. Lookup and delete are a single statement so two
// concurrent consumption attempts on the same token can never both observe a
// found record.
var ConsumeVerificationRecordSQL = `DELETE FROM "verification_records"
WHERE "token" = ?
RETURNING *;`

// VerificationRecords is the durable mapping of (subject, purpose) to a
// pending token record, queryable by subject+purpose or by exact token
// string.
type VerificationRecords interface {
	Create(ctx context.Context, record *VerificationRecord) (*VerificationRecord, error)
	FindBySubjectAndPurpose(ctx context.Context, subjectID uuid.UUID, purpose Purpose) (*VerificationRecord, error)
	FindByToken(ctx context.Context, token string) (*VerificationRecord, error)
	ConsumeByToken(ctx context.Context, token string) (*VerificationRecord, error)
	DeleteBySubjectAndPurpose(ctx context.Context, subjectID uuid.UUID, purpose Purpose) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type verificationRecords struct {
	db *bun.DB
}

var _ VerificationRecords = (*verificationRecords)(nil)

// NewVerificationRecordsRepository creates a Bun-backed record store. The
// backing table needs a unique index on token and one on
// (subject_id, purpose); the store relies on both for its contracts.
func NewVerificationRecordsRepository(db *bun.DB) VerificationRecords {
	return &verificationRecords{db: db}
}

// Create inserts a new record. A live record for the same (subject, purpose)
// pair, or a token collision, surfaces as ErrRecordConflict; racing issuers
// lose here rather than at the engine's pre-check.
func (r *verificationRecords) Create(ctx context.Context, record *VerificationRecord) (*VerificationRecord, error) {
	if record == nil {
		return nil, goerrors.New("verification record is required", goerrors.CategoryBadInput)
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecordConflict
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to insert verification record")
	}

	return record, nil
}

func (r *verificationRecords) FindBySubjectAndPurpose(ctx context.Context, subjectID uuid.UUID, purpose Purpose) (*VerificationRecord, error) {
	record := &VerificationRecord{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.subject_id = ?", subjectID).
		Where("?TableAlias.purpose = ?", purpose).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, r.mapSelectError(err, "failed to query verification record")
	}
	return record, nil
}

// FindByToken matches on the exact token string. A stale or forged token
// with the right subject must not match a different live token.
func (r *verificationRecords) FindByToken(ctx context.Context, token string) (*VerificationRecord, error) {
	record := &VerificationRecord{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, r.mapSelectError(err, "failed to query verification record by token")
	}
	return record, nil
}

// ConsumeByToken atomically removes and returns the record for the exact
// token string. Exactly one of N concurrent calls for the same token gets
// the record; the rest get ErrRecordNotFound.
func (r *verificationRecords) ConsumeByToken(ctx context.Context, token string) (*VerificationRecord, error) {
	record := &VerificationRecord{}
	if err := r.db.NewRaw(ConsumeVerificationRecordSQL, token).Scan(ctx, record); err != nil {
		return nil, r.mapSelectError(err, "failed to consume verification record")
	}
	return record, nil
}

// DeleteBySubjectAndPurpose is idempotent; deleting a pair with no record is
// not an error.
func (r *verificationRecords) DeleteBySubjectAndPurpose(ctx context.Context, subjectID uuid.UUID, purpose Purpose) error {
	_, err := r.db.NewDelete().
		Model((*VerificationRecord)(nil)).
		Where("subject_id = ?", subjectID).
		Where("purpose = ?", purpose).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete verification record")
	}
	return nil
}

// DeleteExpired sweeps every record whose expiry is at or before the given
// instant and reports how many were removed.
func (r *verificationRecords) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*VerificationRecord)(nil)).
		Where("expires_at <= ?", before).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sweep expired verification records")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count swept verification records")
	}
	return affected, nil
}

func (r *verificationRecords) mapSelectError(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
