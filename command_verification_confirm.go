package tokens

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type ConfirmEmailVerificationMessage struct {
	Token      string `json:"token" doc:"Signed email verification token."`
	OnResponse func(resp *ConfirmEmailVerificationResponse)
}

func (e ConfirmEmailVerificationMessage) Type() string { return "credential.verification_confirm" }

type ConfirmEmailVerificationResponse struct {
	Claims  *VerificationClaims
	Success bool
}

// ConfirmEmailVerificationHandler consumes a verification token and flips
// the credential's verified flag.
type ConfirmEmailVerificationHandler struct {
	lifecycle *Lifecycle
}

// NewConfirmEmailVerificationHandler creates a handler with sane defaults.
func NewConfirmEmailVerificationHandler(lifecycle *Lifecycle) *ConfirmEmailVerificationHandler {
	return &ConfirmEmailVerificationHandler{lifecycle: lifecycle}
}

func (h *ConfirmEmailVerificationHandler) Execute(ctx context.Context, event ConfirmEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailVerificationHandler) execute(ctx context.Context, event ConfirmEmailVerificationMessage) error {
	resp := &ConfirmEmailVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := h.lifecycle.ConsumeEmailVerification(ctx, event.Token)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm email verification")
	}

	resp.Claims = claims
	resp.Success = true
	event.OnResponse(resp)

	return nil
}
