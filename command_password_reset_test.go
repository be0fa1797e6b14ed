package tokens_test

import (
	"context"
	"testing"

	tokens "github.com/goliatone/go-tokens"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetCommandsEndToEnd(t *testing.T) {
	ctx := context.Background()
	records := newMemRecords()
	store := &MockCredentialStore{}
	codec := tokens.NewCodec(newTestConfig(), testLogger{})
	lifecycle := tokens.NewLifecycle(records, store, codec).WithLogger(testLogger{})

	initialize := tokens.NewInitializePasswordResetHandler(lifecycle)
	finalize := tokens.NewFinalizePasswordResetHandler(lifecycle).WithLogger(testLogger{})

	cred := &tokens.Credential{ID: uuid.New(), Email: "pepe.rone@example.com"}
	store.On("FindByEmail", mock.Anything, cred.Email).Return(cred, nil).Once()
	store.On("UpdatePasswordHash", mock.Anything, cred.ID, mock.Anything).Return(nil).Once()

	var initResp *tokens.InitializePasswordResetResponse
	err := initialize.Execute(ctx, tokens.InitializePasswordResetMessage{
		Email: cred.Email,
		OnResponse: func(r *tokens.InitializePasswordResetResponse) {
			initResp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, initResp)
	require.NotNil(t, initResp.Receipt)
	require.NotEmpty(t, initResp.Receipt.Token)

	err = finalize.Execute(ctx, tokens.FinalizePasswordResetMessage{
		Token:    initResp.Receipt.Token,
		Password: "brand-new-password",
	})
	require.NoError(t, err)

	// the token is single use
	err = finalize.Execute(ctx, tokens.FinalizePasswordResetMessage{
		Token:    initResp.Receipt.Token,
		Password: "another-password",
	})
	require.Error(t, err)
	assert.True(t, tokens.IsUnauthorizedError(err))

	store.AssertExpectations(t)
}

func TestInitializePasswordResetUnknownEmail(t *testing.T) {
	ctx := context.Background()
	store := &MockCredentialStore{}
	codec := tokens.NewCodec(newTestConfig(), testLogger{})
	lifecycle := tokens.NewLifecycle(newMemRecords(), store, codec).WithLogger(testLogger{})

	handler := tokens.NewInitializePasswordResetHandler(lifecycle)

	store.On("FindByEmail", mock.Anything, "ghost@example.com").
		Return(nil, errNotFoundForTest).Once()

	var resp *tokens.InitializePasswordResetResponse
	err := handler.Execute(ctx, tokens.InitializePasswordResetMessage{
		Email: "ghost@example.com",
		OnResponse: func(r *tokens.InitializePasswordResetResponse) {
			resp = r
		},
	})
	require.NoError(t, err, "unknown addresses get the same successful response")
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Receipt.Token)
}

func TestInitializePasswordResetWhilePending(t *testing.T) {
	ctx := context.Background()
	store := &MockCredentialStore{}
	codec := tokens.NewCodec(newTestConfig(), testLogger{})
	lifecycle := tokens.NewLifecycle(newMemRecords(), store, codec).WithLogger(testLogger{})

	handler := tokens.NewInitializePasswordResetHandler(lifecycle)

	cred := &tokens.Credential{ID: uuid.New(), Email: "pepe.rone@example.com"}
	store.On("FindByEmail", mock.Anything, cred.Email).Return(cred, nil).Twice()

	err := handler.Execute(ctx, tokens.InitializePasswordResetMessage{
		Email:      cred.Email,
		OnResponse: func(*tokens.InitializePasswordResetResponse) {},
	})
	require.NoError(t, err)

	err = handler.Execute(ctx, tokens.InitializePasswordResetMessage{
		Email: cred.Email,
		OnResponse: func(*tokens.InitializePasswordResetResponse) {
			t.Fatal("OnResponse should not run while a reset is pending")
		},
	})
	require.Error(t, err)
	assert.True(t, tokens.IsAlreadyPendingError(err))
}

func TestEmailVerificationCommandsEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := &MockCredentialStore{}
	codec := tokens.NewCodec(newTestConfig(), testLogger{})
	lifecycle := tokens.NewLifecycle(newMemRecords(), store, codec).WithLogger(testLogger{})

	request := tokens.NewRequestEmailVerificationHandler(lifecycle)
	confirm := tokens.NewConfirmEmailVerificationHandler(lifecycle)

	cred := &tokens.Credential{ID: uuid.New(), Email: "pepe.rone@example.com"}
	store.On("FindByEmail", mock.Anything, cred.Email).Return(cred, nil).Once()
	store.On("MarkEmailVerified", mock.Anything, cred.ID).Return(nil).Once()

	var requested *tokens.RequestEmailVerificationResponse
	err := request.Execute(ctx, tokens.RequestEmailVerificationMessage{
		Email: cred.Email,
		OnResponse: func(r *tokens.RequestEmailVerificationResponse) {
			requested = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, requested)

	var confirmed *tokens.ConfirmEmailVerificationResponse
	err = confirm.Execute(ctx, tokens.ConfirmEmailVerificationMessage{
		Token: requested.Receipt.Token,
		OnResponse: func(r *tokens.ConfirmEmailVerificationResponse) {
			confirmed = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, confirmed)
	assert.True(t, confirmed.Success)

	store.AssertExpectations(t)
}
