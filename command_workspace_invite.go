package tokens

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type IssueWorkspaceInviteMessage struct {
	SubjectID   uuid.UUID `json:"subject_id" doc:"Account being invited."`
	WorkspaceID uuid.UUID `json:"workspace_id" doc:"Workspace the invite grants access to."`
	Role        string    `json:"role" example:"member" doc:"Role granted on acceptance."`
	OnResponse  func(resp *IssueWorkspaceInviteResponse)
}

func (e IssueWorkspaceInviteMessage) Type() string { return "workspace.invite" }

type IssueWorkspaceInviteResponse struct {
	Receipt *IssueReceipt
	Success bool
}

// IssueWorkspaceInviteHandler issues a workspace invitation token. Invites
// are operator initiated so an unknown subject is reported, not masked.
type IssueWorkspaceInviteHandler struct {
	lifecycle *Lifecycle
}

// NewIssueWorkspaceInviteHandler creates a handler with sane defaults.
func NewIssueWorkspaceInviteHandler(lifecycle *Lifecycle) *IssueWorkspaceInviteHandler {
	return &IssueWorkspaceInviteHandler{lifecycle: lifecycle}
}

func (h *IssueWorkspaceInviteHandler) Execute(ctx context.Context, event IssueWorkspaceInviteMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during workspace invite issuance",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *IssueWorkspaceInviteHandler) execute(ctx context.Context, event IssueWorkspaceInviteMessage) error {
	resp := &IssueWorkspaceInviteResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	role, ok := ParseRole(event.Role)
	if !ok {
		return goerrors.New("unknown workspace role", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"role": event.Role})
	}

	receipt, err := h.lifecycle.IssueWorkspaceInvite(ctx, event.SubjectID, event.WorkspaceID, role)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue workspace invite")
	}

	resp.Receipt = receipt
	resp.Success = true
	event.OnResponse(resp)

	return nil
}

type AcceptWorkspaceInviteMessage struct {
	Token      string `json:"token" doc:"Signed workspace invite token."`
	OnResponse func(resp *AcceptWorkspaceInviteResponse)
}

func (e AcceptWorkspaceInviteMessage) Type() string { return "workspace.invite_accept" }

type AcceptWorkspaceInviteResponse struct {
	Invite  *WorkspaceInviteClaim
	Success bool
}

// AcceptWorkspaceInviteHandler consumes an invite token and reports the
// decoded grant. Creating the membership belongs to the workspace service.
type AcceptWorkspaceInviteHandler struct {
	lifecycle *Lifecycle
}

// NewAcceptWorkspaceInviteHandler creates a handler with sane defaults.
func NewAcceptWorkspaceInviteHandler(lifecycle *Lifecycle) *AcceptWorkspaceInviteHandler {
	return &AcceptWorkspaceInviteHandler{lifecycle: lifecycle}
}

func (h *AcceptWorkspaceInviteHandler) Execute(ctx context.Context, event AcceptWorkspaceInviteMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during workspace invite acceptance",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AcceptWorkspaceInviteHandler) execute(ctx context.Context, event AcceptWorkspaceInviteMessage) error {
	resp := &AcceptWorkspaceInviteResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	invite, err := h.lifecycle.ConsumeWorkspaceInvite(ctx, event.Token)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to accept workspace invite")
	}

	resp.Invite = invite
	resp.Success = true
	event.OnResponse(resp)

	return nil
}
