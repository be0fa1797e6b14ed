package tokens

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterMessage struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Password   string `json:"password"`
	UseHashid  bool
	OnResponse func(resp *RegisterResponse)
}

func (e RegisterMessage) Type() string { return "credential.register" }

type RegisterResponse struct {
	Credential *Credential
	Receipt    *IssueReceipt
	Success    bool
}

// RegisterHandler creates a credential and kicks off email verification.
type RegisterHandler struct {
	repo      RepositoryManager
	lifecycle *Lifecycle
	logger    Logger
}

// NewRegisterHandler creates a handler with sane defaults.
func NewRegisterHandler(repo RepositoryManager, lifecycle *Lifecycle) *RegisterHandler {
	return &RegisterHandler{
		repo:      repo,
		lifecycle: lifecycle,
		logger:    defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterHandler) WithLogger(logger Logger) *RegisterHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterHandler) Execute(ctx context.Context, event RegisterMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterHandler) execute(ctx context.Context, event RegisterMessage) error {
	cred := &Credential{}
	resp := &RegisterResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		cred.PasswordHash = hash
		cred.Email = event.Email
		cred.Role = event.Role
		cred.Username = usernameFor(event.Username, event.Email)
		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				cred.ID = id
			}
		}

		if cred, err = h.repo.Credentials().RegisterTx(ctx, tx, cred); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create credential")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "registration transaction failed")
	}

	resp.Credential = cred

	// Issuance happens after the transaction commits so a notifier fault
	// never rolls back the new credential.
	receipt, err := h.lifecycle.IssueEmailVerification(ctx, cred.Email)
	if err != nil {
		if !IsDeliveryFailedError(err) {
			return err
		}
		h.logger.Warn("registration succeeded but verification delivery failed email=%s", cred.Email)
	}

	resp.Receipt = receipt
	resp.Success = true
	event.OnResponse(resp)

	return nil
}

func usernameFor(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
