package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultSessionTTL applies when the config does not set one.
var DefaultSessionTTL = 24 * time.Hour

// SessionClaims is the decoded payload of a login token. Session tokens are
// stateless bearer tokens: no verification record backs them, they remain
// valid until expiry, and they are a distinct type so they cannot be routed
// through Lifecycle.Consume by mistake.
type SessionClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"use,omitempty"`
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// UserID returns the user ID
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// UserUUID returns the user ID parsed as a UUID
func (c *SessionClaims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID())
}

// Role returns the global role
func (c *SessionClaims) Role() string {
	return c.UserRole
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// SessionOptions controls how MintSession issues login tokens.
type SessionOptions struct {
	// TTL overrides the configured session lifetime. Zero uses the default.
	TTL time.Duration
	// IssuedAt overrides the issuance time. Zero uses the codec clock.
	IssuedAt time.Time
}

// MintSession issues a reusable bearer session token for the subject.
func (c *Codec) MintSession(subjectID uuid.UUID, role string, opts SessionOptions) (string, error) {
	if subjectID == uuid.Nil {
		return "", goerrors.New("subject id is required", goerrors.CategoryBadInput)
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = c.sessionTTL
	}
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = c.now()
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subjectID.String(),
			Audience:  c.audienceCopy(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		TokenUse: tokenUseSession,
		UID:      subjectID.String(),
		UserRole: role,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign session token")
	}

	return signed, nil
}

// DecodeSession verifies a session token by signature and expiry alone.
// Verification tokens are rejected here the same way session tokens are
// rejected by Decode.
func (c *Codec) DecodeSession(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.TokenUse != tokenUseSession {
		c.logger.Debug("Codec decode rejected non-session token use=%s", claims.TokenUse)
		return nil, ErrTokenUnauthorized
	}

	return claims, nil
}
