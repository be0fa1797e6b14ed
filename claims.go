package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// token_use discriminator values. Verification and session tokens share a
// signing key, so the discriminator is what keeps one kind from being decoded
// as the other after the signature checks out.
const (
	tokenUseVerification = "verification"
	tokenUseSession      = "session"
)

// VerificationClaims is the decoded payload of a signed verification token.
// It is never persisted independently of its VerificationRecord.
type VerificationClaims struct {
	jwt.RegisteredClaims
	TokenUse      string  `json:"use,omitempty"`
	Purpose       Purpose `json:"purpose,omitempty"`
	WorkspaceID   string  `json:"workspace_id,omitempty"`
	WorkspaceRole string  `json:"workspace_role,omitempty"`
}

// SubjectID returns the subject claim parsed as a UUID
func (c *VerificationClaims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.Subject)
}

// Expires returns the expiration time
func (c *VerificationClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *VerificationClaims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// WorkspaceInviteClaim is the caller-facing view of a consumed workspace
// invite. The membership store owns what happens with it next.
type WorkspaceInviteClaim struct {
	SubjectID   uuid.UUID
	WorkspaceID uuid.UUID
	Role        WorkspaceRole
	ExpiresAt   time.Time
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
