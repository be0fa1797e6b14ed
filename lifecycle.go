package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// IssueReceipt describes the outcome of an issuance. For flows hardened
// against account enumeration the receipt shape is identical whether or not
// the subject exists; an empty Token means nothing was minted and the miss
// went to the logs only.
type IssueReceipt struct {
	SubjectID uuid.UUID
	Purpose   Purpose
	Token     string
	ExpiresAt time.Time
	Delivered bool
}

// IssueOptions customizes a single issuance.
type IssueOptions struct {
	// TTL overrides the purpose default for both the claim and the record.
	TTL time.Duration
	// WorkspaceID and WorkspaceRole are required for workspace invites.
	WorkspaceID   *uuid.UUID
	WorkspaceRole WorkspaceRole
}

// Lifecycle orchestrates token issuance, consumption, and expiry sweeping.
// A (subject, purpose) pair is in one of three states: no token, pending
// (a live record exists), or terminal (consumed, or expired and cleaned up).
// Both terminal states permit a fresh issuance.
//
// The engine is invoked from concurrent request-handling workers. It keeps
// no in-process record cache; single-use enforcement rests entirely on the
// store's atomic consume.
type Lifecycle struct {
	records     VerificationRecords
	credentials CredentialStore
	codec       *Codec
	notifier    Notifier
	activity    ActivitySink
	logger      Logger
	now         func() time.Time
	ttls        map[Purpose]time.Duration
}

// NewLifecycle creates a lifecycle engine with sane defaults.
func NewLifecycle(records VerificationRecords, credentials CredentialStore, codec *Codec) *Lifecycle {
	return &Lifecycle{
		records:     records,
		credentials: credentials,
		codec:       codec,
		notifier:    noopNotifier{},
		activity:    noopActivitySink{},
		logger:      defLogger{},
		now:         time.Now,
		ttls:        map[Purpose]time.Duration{},
	}
}

// WithNotifier sets the notifier used to deliver issued tokens.
func (l *Lifecycle) WithNotifier(n Notifier) *Lifecycle {
	l.notifier = normalizeNotifier(n)
	return l
}

// WithActivitySink sets the sink used to emit token lifecycle events.
func (l *Lifecycle) WithActivitySink(sink ActivitySink) *Lifecycle {
	l.activity = normalizeActivitySink(sink)
	return l
}

// WithLogger overrides the logger used by the engine.
func (l *Lifecycle) WithLogger(logger Logger) *Lifecycle {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// WithClock injects a custom clock (useful for tests). The same clock should
// be given to the Codec so claim and record expiry agree.
func (l *Lifecycle) WithClock(clock func() time.Time) *Lifecycle {
	if clock != nil {
		l.now = clock
	}
	return l
}

// WithConfig seeds the per-purpose lifetimes from the config, the same way
// NewCodec consumes GetSessionTTL. Purposes the config resolves to zero keep
// their defaults.
func (l *Lifecycle) WithConfig(cfg Config) *Lifecycle {
	if cfg == nil {
		return l
	}
	for _, purpose := range AllPurposes() {
		if ttl := cfg.GetVerificationTTL(purpose); ttl > 0 {
			l.ttls[purpose] = ttl
		}
	}
	return l
}

// WithTTL overrides the lifetime for a purpose. Claim and record always
// share the lifetime.
func (l *Lifecycle) WithTTL(purpose Purpose, ttl time.Duration) *Lifecycle {
	if purpose.IsValid() && ttl > 0 {
		l.ttls[purpose] = ttl
	}
	return l
}

func (l *Lifecycle) ttlFor(purpose Purpose) time.Duration {
	if ttl, ok := l.ttls[purpose]; ok {
		return ttl
	}
	return purpose.DefaultTTL()
}

// Issue mints a token for (subject, purpose), persists its record, and
// returns the receipt for delivery. A live record for the same pair blocks
// reissuance with ErrAlreadyPending; an expired one is removed first.
//
// The pre-check below deliberately races with concurrent issuers: both may
// pass it, but the store's uniqueness constraint makes the loser's insert
// fail, and that conflict is reported as ErrAlreadyPending too.
func (l *Lifecycle) Issue(ctx context.Context, subjectID uuid.UUID, purpose Purpose, opts IssueOptions) (*IssueReceipt, error) {
	if !purpose.IsValid() {
		return nil, goerrors.New("unknown token purpose", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": purpose.String()})
	}

	now := l.now()

	existing, err := l.records.FindBySubjectAndPurpose(ctx, subjectID, purpose)
	if err != nil && !goerrors.IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for pending verification record")
	}

	if existing != nil {
		if !existing.Expired(now) {
			return nil, ErrAlreadyPending
		}
		// Remove exactly the stale record we observed, keyed by its unique
		// token. A concurrent issuer may have already replaced it with a
		// live record; that record must survive this cleanup, and the
		// insert below then loses on the (subject, purpose) constraint.
		if _, err := l.records.ConsumeByToken(ctx, existing.Token); err != nil && !goerrors.IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove expired verification record")
		}
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = l.ttlFor(purpose)
	}

	mintOpts := MintOptions{
		TTL:           ttl,
		IssuedAt:      now,
		WorkspaceRole: opts.WorkspaceRole,
	}
	if opts.WorkspaceID != nil {
		mintOpts.WorkspaceID = opts.WorkspaceID.String()
	}

	token, claims, err := l.codec.Mint(subjectID, purpose, mintOpts)
	if err != nil {
		return nil, err
	}

	record := &VerificationRecord{
		SubjectID:     subjectID,
		Purpose:       purpose,
		Token:         token,
		WorkspaceID:   opts.WorkspaceID,
		WorkspaceRole: string(opts.WorkspaceRole),
		ExpiresAt:     claims.Expires(),
	}

	if _, err := l.records.Create(ctx, record); err != nil {
		if errors.Is(err, ErrRecordConflict) {
			return nil, ErrAlreadyPending
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verification record")
	}

	l.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventTokenIssued,
		SubjectID: subjectID.String(),
		Purpose:   purpose,
	})

	return &IssueReceipt{
		SubjectID: subjectID,
		Purpose:   purpose,
		Token:     token,
		ExpiresAt: claims.Expires(),
	}, nil
}

// Consume verifies the token's signature and purpose, atomically removes its
// record, and returns the decoded claims. Exactly one of any number of
// concurrent calls with the same token succeeds; the rest observe
// ErrTokenUnauthorized because the record is already gone.
func (l *Lifecycle) Consume(ctx context.Context, token string, expected Purpose) (*VerificationClaims, error) {
	now := l.now()

	claims, err := l.codec.Decode(token)
	if err != nil {
		if IsTokenExpiredError(err) {
			l.recordActivity(ctx, ActivityEvent{
				EventType: ActivityEventTokenExpired,
				Purpose:   expected,
			})
			return nil, ErrTokenExpired
		}
		l.logger.Debug("Consume rejected undecodable token: %v", err)
		return nil, ErrTokenUnauthorized
	}

	// Purpose confusion is rejected even though the signature is valid: a
	// token minted for one operation never satisfies another.
	if claims.Purpose != expected {
		l.logger.Warn("Consume purpose mismatch got=%s want=%s subject=%s",
			claims.Purpose, expected, claims.RegisteredClaims.Subject)
		return nil, ErrTokenUnauthorized
	}

	// The record is the source of truth for single-use semantics. A valid
	// signature with no record means the token was already consumed, or was
	// never issued by this engine.
	record, err := l.records.ConsumeByToken(ctx, token)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrTokenUnauthorized
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification record")
	}

	// Claim and record share a TTL, so this only trips when the stored
	// expiry was shortened out of band. The conditional delete above already
	// removed the stale record, which is the cleanup we want.
	if record.Expired(now) {
		l.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventTokenExpired,
			SubjectID: record.SubjectID.String(),
			Purpose:   record.Purpose,
		})
		return nil, ErrTokenExpired
	}

	l.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventTokenConsumed,
		SubjectID: record.SubjectID.String(),
		Purpose:   record.Purpose,
	})

	return claims, nil
}

// SweepExpired removes every record past its expiry and reports how many
// were deleted. Expiry cleanup also happens lazily during issue and consume;
// the sweep exists for records nobody ever touches again.
func (l *Lifecycle) SweepExpired(ctx context.Context) (int64, error) {
	return l.records.DeleteExpired(ctx, l.now())
}

// IssueEmailVerification issues an email verification token for the account
// behind the given address and hands it to the notifier. An unknown address
// produces the same receipt shape with no token so the response cannot be
// used to enumerate accounts; the miss is logged.
func (l *Lifecycle) IssueEmailVerification(ctx context.Context, email string) (*IssueReceipt, error) {
	cred, err := l.credentials.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			l.logger.Info("email verification requested for unknown address email=%s", email)
			return &IssueReceipt{Purpose: PurposeEmailVerification}, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up credential for email verification")
	}

	receipt, err := l.Issue(ctx, cred.ID, PurposeEmailVerification, IssueOptions{})
	if err != nil {
		return nil, err
	}

	return l.deliver(ctx, receipt, cred.Email,
		"Verify your email address",
		fmt.Sprintf("Follow this link to verify your email: /verify-email/%s", receipt.Token),
	)
}

// IssuePasswordReset issues a password reset token for the account behind
// the given address. Unknown addresses get the same uniform treatment as
// IssueEmailVerification.
func (l *Lifecycle) IssuePasswordReset(ctx context.Context, email string) (*IssueReceipt, error) {
	cred, err := l.credentials.FindByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			l.logger.Info("password reset requested for unknown address email=%s", email)
			return &IssueReceipt{Purpose: PurposePasswordReset}, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up credential for password reset")
	}

	receipt, err := l.Issue(ctx, cred.ID, PurposePasswordReset, IssueOptions{})
	if err != nil {
		return nil, err
	}

	return l.deliver(ctx, receipt, cred.Email,
		"Reset your password",
		fmt.Sprintf("Follow this link to reset your password: /password-reset/%s", receipt.Token),
	)
}

// IssueWorkspaceInvite issues an invitation token granting role on the given
// workspace. Invites are operator initiated, so an unknown subject is a real
// error here, not an enumeration concern.
func (l *Lifecycle) IssueWorkspaceInvite(ctx context.Context, subjectID, workspaceID uuid.UUID, role WorkspaceRole) (*IssueReceipt, error) {
	if workspaceID == uuid.Nil {
		return nil, goerrors.New("workspace id is required", goerrors.CategoryBadInput)
	}
	if !role.IsValid() {
		return nil, goerrors.New("unknown workspace role", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"role": role.String()})
	}

	cred, err := l.credentials.FindBySubjectID(ctx, subjectID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up credential for workspace invite")
	}

	receipt, err := l.Issue(ctx, cred.ID, PurposeWorkspaceInvite, IssueOptions{
		WorkspaceID:   &workspaceID,
		WorkspaceRole: role,
	})
	if err != nil {
		return nil, err
	}

	return l.deliver(ctx, receipt, cred.Email,
		"You have been invited to a workspace",
		fmt.Sprintf("Follow this link to join: /invites/%s", receipt.Token),
	)
}

// ConsumeEmailVerification consumes an email verification token and marks
// the credential's email as verified.
func (l *Lifecycle) ConsumeEmailVerification(ctx context.Context, token string) (*VerificationClaims, error) {
	claims, err := l.Consume(ctx, token, PurposeEmailVerification)
	if err != nil {
		return nil, err
	}

	subjectID, err := claims.SubjectID()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "consumed claim carries an invalid subject id")
	}

	if err := l.credentials.MarkEmailVerified(ctx, subjectID); err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email as verified")
	}

	l.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventEmailVerified,
		SubjectID: subjectID.String(),
		Purpose:   PurposeEmailVerification,
	})

	return claims, nil
}

// ConsumePasswordReset consumes a password reset token and rotates the
// credential's password hash. The new password is hashed before the token is
// consumed so invalid input does not burn a single-use token.
func (l *Lifecycle) ConsumePasswordReset(ctx context.Context, token, newPassword string) (*VerificationClaims, error) {
	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	claims, err := l.Consume(ctx, token, PurposePasswordReset)
	if err != nil {
		return nil, err
	}

	subjectID, err := claims.SubjectID()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "consumed claim carries an invalid subject id")
	}

	if err := l.credentials.UpdatePasswordHash(ctx, subjectID, passwordHash); err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrSubjectNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password hash")
	}

	l.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		SubjectID: subjectID.String(),
		Purpose:   PurposePasswordReset,
	})

	return claims, nil
}

// ConsumeWorkspaceInvite consumes an invitation token and returns the
// decoded invite. Adding the membership is the caller's side of the
// boundary.
func (l *Lifecycle) ConsumeWorkspaceInvite(ctx context.Context, token string) (*WorkspaceInviteClaim, error) {
	claims, err := l.Consume(ctx, token, PurposeWorkspaceInvite)
	if err != nil {
		return nil, err
	}

	subjectID, err := claims.SubjectID()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "consumed claim carries an invalid subject id")
	}

	workspaceID, err := uuid.Parse(claims.WorkspaceID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "consumed claim carries an invalid workspace id")
	}

	role, ok := ParseRole(claims.WorkspaceRole)
	if !ok {
		return nil, goerrors.New("consumed claim carries an unknown workspace role", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"role": claims.WorkspaceRole})
	}

	return &WorkspaceInviteClaim{
		SubjectID:   subjectID,
		WorkspaceID: workspaceID,
		Role:        role,
		ExpiresAt:   claims.Expires(),
	}, nil
}

func (l *Lifecycle) deliver(ctx context.Context, receipt *IssueReceipt, address, subject, body string) (*IssueReceipt, error) {
	err := l.notifier.Deliver(ctx, Notification{
		Address:   address,
		Subject:   subject,
		Body:      body,
		Token:     receipt.Token,
		Purpose:   receipt.Purpose,
		ExpiresAt: receipt.ExpiresAt,
	})
	if err != nil {
		l.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventTokenDeliveryFailure,
			SubjectID: receipt.SubjectID.String(),
			Purpose:   receipt.Purpose,
			Metadata:  map[string]any{"error": err.Error()},
		})
		// The record stays; the caller can retry issuance after it expires
		// or surface the fault. Issuance itself already succeeded.
		return receipt, ErrDeliveryFailed
	}

	receipt.Delivered = true
	return receipt, nil
}

func (l *Lifecycle) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.Actor == (ActorRef{}) {
		event.Actor = ActorRef{Type: "system"}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = l.now()
	}

	if err := normalizeActivitySink(l.activity).Record(ctx, event); err != nil {
		l.logger.Warn("activity sink error: %v", err)
	}
}
