package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds token options. Implementations resolve configuration once at
// startup; the signing key is read-only process-wide state and is never read
// ad hoc at call time. Rotating the secret invalidates all outstanding
// tokens.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetVerificationTTL(purpose Purpose) time.Duration
	GetSessionTTL() time.Duration
}

// CredentialStore is the identity store the lifecycle engine consumes.
// Post-consumption side effects (marking an email verified, rotating a
// password hash) happen here.
type CredentialStore interface {
	FindBySubjectID(ctx context.Context, id uuid.UUID) (*Credential, error)
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] TOKENS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] TOKENS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] TOKENS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] TOKENS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
