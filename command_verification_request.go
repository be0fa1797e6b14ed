package tokens

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RequestEmailVerificationMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email address."`
	OnResponse func(resp *RequestEmailVerificationResponse)
}

func (e RequestEmailVerificationMessage) Type() string { return "credential.verification_request" }

type RequestEmailVerificationResponse struct {
	Receipt *IssueReceipt
	Success bool
}

// RequestEmailVerificationHandler issues a fresh email verification token.
// The response is identical whether or not the address maps to an account.
type RequestEmailVerificationHandler struct {
	lifecycle *Lifecycle
}

// NewRequestEmailVerificationHandler creates a handler with sane defaults.
func NewRequestEmailVerificationHandler(lifecycle *Lifecycle) *RequestEmailVerificationHandler {
	return &RequestEmailVerificationHandler{lifecycle: lifecycle}
}

func (h *RequestEmailVerificationHandler) Execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during verification request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestEmailVerificationHandler) execute(ctx context.Context, event RequestEmailVerificationMessage) error {
	resp := &RequestEmailVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	receipt, err := h.lifecycle.IssueEmailVerification(ctx, event.Email)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to request email verification")
	}

	resp.Receipt = receipt
	resp.Success = true
	event.OnResponse(resp)

	return nil
}
