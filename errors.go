package tokens

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeTokenMalformed marks tokens that cannot be parsed or whose
	// signature does not verify.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeTokenExpired marks signature-valid tokens past their expiry,
	// at claim or record level.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenUnauthorized covers purpose mismatches and records that
	// were already consumed or never issued by this engine.
	TextCodeTokenUnauthorized = "TOKEN_UNAUTHORIZED"
	// TextCodeTokenPending marks reissue attempts while a live record exists.
	TextCodeTokenPending = "TOKEN_PENDING"
	// TextCodeDeliveryFailed marks notifier failures. Issuance succeeded and
	// the record is retained.
	TextCodeDeliveryFailed = "DELIVERY_FAILED"
	// TextCodeSubjectNotFound marks subjects unknown to the credential store.
	TextCodeSubjectNotFound = "SUBJECT_NOT_FOUND"
)

// ErrTokenMalformed is returned when a token cannot be parsed or its
// signature is invalid.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenExpired is returned when a signature-valid token is past its
// expiry, either at the claim or the record level.
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenUnauthorized is returned for purpose confusion and for tokens whose
// record no longer exists: already consumed, or never issued by this engine.
// It deliberately does not distinguish the two so a forged token reads the
// same as a replayed one.
var ErrTokenUnauthorized = goerrors.New("token is not valid for this operation", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenUnauthorized)

// ErrAlreadyPending is returned when issuance finds a live record for the
// same (subject, purpose) pair.
var ErrAlreadyPending = goerrors.New("a token for this subject and purpose is still pending", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenPending).
	WithCode(goerrors.CodeConflict)

// ErrDeliveryFailed is returned when the notifier rejects delivery. The token
// and its record still exist; issuance is not rolled back.
var ErrDeliveryFailed = goerrors.New("token notification delivery failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeDeliveryFailed)

// ErrSubjectNotFound is returned when the credential store does not know the
// subject. Issuance flows that must not leak account existence never surface
// this to their callers.
var ErrSubjectNotFound = goerrors.New("subject not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeSubjectNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRecordNotFound is the store-level miss for verification records.
var ErrRecordNotFound = goerrors.New("verification record not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrRecordConflict is the store-level uniqueness violation for verification
// records; the lifecycle engine translates it to ErrAlreadyPending.
var ErrRecordConflict = goerrors.New("verification record already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict)

// ErrNoEmptyString rejects empty passwords before hashing
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is the uniform credential failure; it covers
// unknown identifiers too so login cannot be used to enumerate accounts
var ErrMismatchedHashAndPassword = errors.New("invalid credentials")

// ErrTooManyLoginAttempts is returned while the login cooldown is in effect
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit)

// ErrEmailNotVerified blocks session issuance for unverified accounts; the
// caller is expected to re-issue an email verification token.
var ErrEmailNotVerified = goerrors.New("email address has not been verified", goerrors.CategoryAuth)

// IsTokenExpiredError will check for expired tokens at either level
func IsTokenExpiredError(err error) bool {
	return hasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError will check for parse/signature failures
func IsMalformedError(err error) bool {
	return hasTextCode(err, TextCodeTokenMalformed)
}

// IsUnauthorizedError will check for purpose confusion and consumed/unknown
// record failures
func IsUnauthorizedError(err error) bool {
	return hasTextCode(err, TextCodeTokenUnauthorized)
}

// IsAlreadyPendingError will check for blocked reissue attempts
func IsAlreadyPendingError(err error) bool {
	return hasTextCode(err, TextCodeTokenPending)
}

// IsDeliveryFailedError will check for notifier faults
func IsDeliveryFailedError(err error) bool {
	return hasTextCode(err, TextCodeDeliveryFailed)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}
