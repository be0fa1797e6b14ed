package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// Codec signs and verifies token claims. It is stateless and purely a
// function of the token bytes and the signing secret; safe to call
// concurrently from any goroutine.
type Codec struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	sessionTTL time.Duration
	logger     Logger
	now        func() time.Time
}

// NewCodec creates a Codec from the given config. The signing key is captured
// once here; it is never re-read during the process lifetime.
func NewCodec(cfg Config, logger Logger) *Codec {
	if logger == nil {
		logger = defLogger{}
	}

	var aud jwt.ClaimStrings
	if audience := cfg.GetAudience(); len(audience) > 0 {
		aud = make(jwt.ClaimStrings, len(audience))
		copy(aud, audience)
	}

	return &Codec{
		signingKey: []byte(cfg.GetSigningKey()),
		issuer:     cfg.GetIssuer(),
		audience:   aud,
		sessionTTL: cfg.GetSessionTTL(),
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock injects a custom clock (useful for tests). The clock drives both
// default issuance times and expiry validation during decode.
func (c *Codec) WithClock(clock func() time.Time) *Codec {
	if clock != nil {
		c.now = clock
	}
	return c
}

// MintOptions controls how Mint issues verification tokens.
type MintOptions struct {
	// TTL overrides the purpose's default lifetime. Zero uses the default.
	TTL time.Duration
	// IssuedAt overrides the issuance time. Zero uses the codec clock.
	IssuedAt time.Time
	// WorkspaceID and WorkspaceRole are set for workspace invites only.
	WorkspaceID   string
	WorkspaceRole WorkspaceRole
}

// Mint serializes and signs a verification claim for (subject, purpose).
// The returned claims carry the resolved issuance and expiry instants so the
// caller can persist a record with matching bounds.
func (c *Codec) Mint(subjectID uuid.UUID, purpose Purpose, opts MintOptions) (string, *VerificationClaims, error) {
	if subjectID == uuid.Nil {
		return "", nil, goerrors.New("subject id is required", goerrors.CategoryBadInput)
	}
	if !purpose.IsValid() {
		return "", nil, goerrors.New("unknown token purpose", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": purpose.String()})
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = purpose.DefaultTTL()
	}
	if ttl < 0 {
		return "", nil, goerrors.New("token TTL must be non-negative", goerrors.CategoryBadInput)
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = c.now()
	}

	claims := &VerificationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subjectID.String(),
			Audience:  c.audienceCopy(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		TokenUse:      tokenUseVerification,
		Purpose:       purpose,
		WorkspaceID:   opts.WorkspaceID,
		WorkspaceRole: string(opts.WorkspaceRole),
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign verification token")
	}

	return signed, claims, nil
}

// Decode verifies the signature and expiry of a verification token. It does
// not consult any store: a decoded claim says nothing about whether the token
// has already been consumed.
func (c *Codec) Decode(tokenString string) (*VerificationClaims, error) {
	claims := &VerificationClaims{}
	if err := c.parse(tokenString, claims); err != nil {
		return nil, err
	}

	if claims.TokenUse != tokenUseVerification || !claims.Purpose.IsValid() {
		c.logger.Debug("Codec decode rejected non-verification token use=%s", claims.TokenUse)
		return nil, ErrTokenUnauthorized
	}

	return claims, nil
}

func (c *Codec) parse(tokenString string, claims jwt.Claims) error {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}
	if len(c.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(c.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			c.logger.Error("Codec encountered unexpected signing method alg=%v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	if !token.Valid {
		return ErrTokenMalformed
	}

	return nil
}

func (c *Codec) audienceCopy() jwt.ClaimStrings {
	if len(c.audience) == 0 {
		return nil
	}
	aud := make(jwt.ClaimStrings, len(c.audience))
	copy(aud, c.audience)
	return aud
}
