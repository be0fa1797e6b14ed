package tokens

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// MaxLoginAttempts is the number of consecutive failed logins tolerated
	// before the cooldown kicks in.
	MaxLoginAttempts = 5
	// CoolDownPeriod is how long the attempt counter takes to reset.
	CoolDownPeriod = "24h"
)

// Authenticator verifies credentials and mints stateless session tokens.
// Session tokens are a different claim type than verification tokens and are
// never routed through the lifecycle engine: they carry no record, and
// logout is the caller's concern.
type Authenticator struct {
	credentials Credentials
	codec       *Codec
	activity    ActivitySink
	logger      Logger

	requireVerifiedEmail bool
}

// NewAuthenticator creates an Authenticator backed by the given credential
// repository and token codec.
func NewAuthenticator(credentials Credentials, codec *Codec) *Authenticator {
	return &Authenticator{
		credentials:          credentials,
		codec:                codec,
		activity:             noopActivitySink{},
		logger:               defLogger{},
		requireVerifiedEmail: true,
	}
}

// WithLogger overrides the logger.
func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (a *Authenticator) WithActivitySink(sink ActivitySink) *Authenticator {
	a.activity = normalizeActivitySink(sink)
	return a
}

// WithRequireVerifiedEmail toggles whether login demands a verified email.
func (a *Authenticator) WithRequireVerifiedEmail(require bool) *Authenticator {
	a.requireVerifiedEmail = require
	return a
}

// Login verifies the identifier/password pair and returns a signed session
// token. Lookup misses report ErrMismatchedHashAndPassword, the same error a
// wrong password produces, so the response does not reveal whether the
// account exists.
func (a *Authenticator) Login(ctx context.Context, identifier, password string) (string, error) {
	cred, err := a.verifyCredential(ctx, identifier, password)
	if err != nil {
		a.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	token, err := a.codec.MintSession(cred.ID, cred.Role, SessionOptions{})
	if err != nil {
		a.logger.Error("Login failed to mint session token: %v", err)
		return "", err
	}

	a.emitAuthEvent(ctx, ActivityEventLoginSuccess, ActorRef{ID: cred.ID.String(), Type: "user"}, map[string]any{
		"identifier": identifier,
	})

	return token, nil
}

// SessionFromToken decodes and verifies a session token.
func (a *Authenticator) SessionFromToken(token string) (*SessionClaims, error) {
	return a.codec.DecodeSession(token)
}

func (a *Authenticator) verifyCredential(ctx context.Context, identifier, password string) (*Credential, error) {
	cred, err := a.credentials.FindByEmail(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve credential during login")
	}

	if cred.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*cred.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			cred.LoginAttempts = 0
		}
	}

	// too many attempts in the window, cool off
	if cred.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, cred.PasswordHash); err != nil {
		if err2 := a.credentials.TrackAttemptedLogin(ctx, cred); err2 != nil {
			return nil, goerrors.Wrap(err2, goerrors.CategoryInternal, "failed to track login attempt")
		}
		return nil, ErrMismatchedHashAndPassword
	}

	if a.requireVerifiedEmail && !cred.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	if err := a.credentials.TrackSucccessfulLogin(ctx, cred); err != nil {
		a.logger.Error("failed to track successful login: %v", err)
	}

	return cred, nil
}

func (a *Authenticator) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, metadata map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		SubjectID: actor.ID,
		Metadata:  metadata,
	}

	if err := a.activity.Record(ctx, event); err != nil {
		a.logger.Warn("activity sink error: %v", err)
	}
}
