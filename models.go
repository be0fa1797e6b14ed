package tokens

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VerificationRecord is the durable counterpart of an issued verification
// token. At most one live record may exist per (subject, purpose) pair, and
// the record holds the issued token verbatim so consumption can match on the
// exact string. Records are created at issuance and deleted at consumption
// or expiry cleanup; they are never updated in place.
type VerificationRecord struct {
	bun.BaseModel `bun:"table:verification_records,alias:vrec"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	SubjectID     uuid.UUID  `bun:"subject_id,notnull,type:uuid" json:"subject_id,omitempty"`
	Purpose       Purpose    `bun:"purpose,notnull" json:"purpose,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	WorkspaceID   *uuid.UUID `bun:"workspace_id,type:uuid" json:"workspace_id,omitempty"`
	WorkspaceRole string     `bun:"workspace_role" json:"workspace_role,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the record is past its expiry at the given
// instant. Callers read the clock once per operation and reuse the value for
// every check in that call.
func (r *VerificationRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Credential is the identity model backing the credential store
type Credential struct {
	bun.BaseModel  `bun:"table:credentials,alias:cred"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email          string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Role           string     `bun:"user_role,notnull" json:"user_role,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"password_hash,omitempty"`
	EmailVerified  bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	LoginAttempts  int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}
