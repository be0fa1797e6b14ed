package tokens

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Purpose is the closed set of reasons a verification token is issued. It is
// a defined type, not an alias, so a claim minted for one purpose can never
// satisfy an operation expecting another without an explicit conversion.
// Login tokens are deliberately not a Purpose; see SessionClaims.
type Purpose string

const (
	// PurposeEmailVerification confirms ownership of an email address
	PurposeEmailVerification Purpose = "email_verification"
	// PurposePasswordReset authorizes a one-time password rotation
	PurposePasswordReset Purpose = "password_reset"
	// PurposeWorkspaceInvite grants membership in a workspace
	PurposeWorkspaceInvite Purpose = "workspace_invite"
)

// IsValid checks if the purpose is one of the predefined variants
func (p Purpose) IsValid() bool {
	switch p {
	case PurposeEmailVerification, PurposePasswordReset, PurposeWorkspaceInvite:
		return true
	default:
		return false
	}
}

func (p Purpose) String() string {
	return string(p)
}

// DefaultTTL is the lifetime applied to both the signed claim and the stored
// record. The two are intentionally identical per purpose so a token never
// outlives its record or vice versa.
func (p Purpose) DefaultTTL() time.Duration {
	switch p {
	case PurposeEmailVerification:
		return time.Hour
	case PurposePasswordReset:
		return 15 * time.Minute
	case PurposeWorkspaceInvite:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// ParsePurpose safely parses a string into a Purpose
func ParsePurpose(s string) (Purpose, error) {
	p := Purpose(s)
	if !p.IsValid() {
		return "", goerrors.New("unknown token purpose", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": s})
	}
	return p, nil
}

// AllPurposes returns the predefined purposes, useful for sweeps and tests
func AllPurposes() []Purpose {
	return []Purpose{
		PurposeEmailVerification,
		PurposePasswordReset,
		PurposeWorkspaceInvite,
	}
}
