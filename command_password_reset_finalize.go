package tokens

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token" doc:"Signed password reset token."`
	Password string `json:"password" example:"some_secret_word" doc:"New password."`
}

func (e FinalizePasswordResetMessage) Type() string { return "credential.password_reset_finalize" }

// FinalizePasswordResetHandler consumes a reset token and rotates the
// credential's password. The token is single use: a second attempt with the
// same token fails because its record is already gone.
type FinalizePasswordResetHandler struct {
	lifecycle *Lifecycle
	logger    Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(lifecycle *Lifecycle) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		lifecycle: lifecycle,
		logger:    defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	claims, err := h.lifecycle.ConsumePasswordReset(ctx, event.Token, event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.logger.Info("password reset finalized subject=%s", claims.RegisteredClaims.Subject)

	return nil
}
