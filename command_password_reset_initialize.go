package tokens

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email address."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (e InitializePasswordResetMessage) Type() string { return "credential.password_reset" }

type InitializePasswordResetResponse struct {
	Receipt *IssueReceipt
	Success bool
}

// InitializePasswordResetHandler issues a password reset token for the
// account behind the given address. An unknown address still yields a
// successful response; a live pending reset surfaces ErrAlreadyPending so
// the caller can tell the user to check their inbox.
type InitializePasswordResetHandler struct {
	lifecycle *Lifecycle
}

// NewInitializePasswordResetHandler creates a handler with sane defaults.
func NewInitializePasswordResetHandler(lifecycle *Lifecycle) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{lifecycle: lifecycle}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	receipt, err := h.lifecycle.IssuePasswordReset(ctx, event.Email)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	resp.Receipt = receipt
	resp.Success = true
	event.OnResponse(resp)

	return nil
}
