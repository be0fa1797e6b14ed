package tokens_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	tokens "github.com/goliatone/go-tokens"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockVerificationRecords implements tokens.VerificationRecords
type MockVerificationRecords struct {
	mock.Mock
}

func (m *MockVerificationRecords) Create(ctx context.Context, record *tokens.VerificationRecord) (*tokens.VerificationRecord, error) {
	args := m.Called(ctx, record)
	rec, _ := args.Get(0).(*tokens.VerificationRecord)
	return rec, args.Error(1)
}

func (m *MockVerificationRecords) FindBySubjectAndPurpose(ctx context.Context, subjectID uuid.UUID, purpose tokens.Purpose) (*tokens.VerificationRecord, error) {
	args := m.Called(ctx, subjectID, purpose)
	rec, _ := args.Get(0).(*tokens.VerificationRecord)
	return rec, args.Error(1)
}

func (m *MockVerificationRecords) FindByToken(ctx context.Context, token string) (*tokens.VerificationRecord, error) {
	args := m.Called(ctx, token)
	rec, _ := args.Get(0).(*tokens.VerificationRecord)
	return rec, args.Error(1)
}

func (m *MockVerificationRecords) ConsumeByToken(ctx context.Context, token string) (*tokens.VerificationRecord, error) {
	args := m.Called(ctx, token)
	rec, _ := args.Get(0).(*tokens.VerificationRecord)
	return rec, args.Error(1)
}

func (m *MockVerificationRecords) DeleteBySubjectAndPurpose(ctx context.Context, subjectID uuid.UUID, purpose tokens.Purpose) error {
	args := m.Called(ctx, subjectID, purpose)
	return args.Error(0)
}

func (m *MockVerificationRecords) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return int64(args.Int(0)), args.Error(1)
}

// MockCredentialStore implements tokens.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) FindBySubjectID(ctx context.Context, id uuid.UUID) (*tokens.Credential, error) {
	args := m.Called(ctx, id)
	cred, _ := args.Get(0).(*tokens.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentialStore) FindByEmail(ctx context.Context, email string) (*tokens.Credential, error) {
	args := m.Called(ctx, email)
	cred, _ := args.Get(0).(*tokens.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentialStore) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCredentialStore) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

// MockCredentials implements tokens.Credentials for the methods the tests
// exercise; the embedded interface covers the generic repository surface.
type MockCredentials struct {
	mock.Mock
	tokens.Credentials
}

func (m *MockCredentials) FindBySubjectID(ctx context.Context, id uuid.UUID) (*tokens.Credential, error) {
	args := m.Called(ctx, id)
	cred, _ := args.Get(0).(*tokens.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) FindByEmail(ctx context.Context, email string) (*tokens.Credential, error) {
	args := m.Called(ctx, email)
	cred, _ := args.Get(0).(*tokens.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCredentials) UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockCredentials) Register(ctx context.Context, record *tokens.Credential) (*tokens.Credential, error) {
	args := m.Called(ctx, record)
	cred, _ := args.Get(0).(*tokens.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) RegisterTx(ctx context.Context, tx bun.IDB, record *tokens.Credential) (*tokens.Credential, error) {
	args := m.Called(ctx, tx, record)
	cred, _ := args.Get(0).(*tokens.Credential)
	return cred, args.Error(1)
}

func (m *MockCredentials) TrackAttemptedLogin(ctx context.Context, record *tokens.Credential) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockCredentials) TrackSucccessfulLogin(ctx context.Context, record *tokens.Credential) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockRepositoryManager implements tokens.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	return args.Error(0)
}

func (m *MockRepositoryManager) Credentials() tokens.Credentials {
	args := m.Called()
	return args.Get(0).(tokens.Credentials)
}

func (m *MockRepositoryManager) VerificationRecords() tokens.VerificationRecords {
	args := m.Called()
	return args.Get(0).(tokens.VerificationRecords)
}

// MockActivitySink implements tokens.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event tokens.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockNotifier implements tokens.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Deliver(ctx context.Context, n tokens.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// memRecords is a mutex guarded in-memory VerificationRecords used by
// concurrency tests, where testify expectations get in the way.
type memRecords struct {
	mu      sync.Mutex
	byToken map[string]*tokens.VerificationRecord
}

func newMemRecords() *memRecords {
	return &memRecords{byToken: map[string]*tokens.VerificationRecord{}}
}

func (r *memRecords) Create(ctx context.Context, record *tokens.VerificationRecord) (*tokens.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[record.Token]; ok {
		return nil, tokens.ErrRecordConflict
	}
	for _, existing := range r.byToken {
		if existing.SubjectID == record.SubjectID && existing.Purpose == record.Purpose {
			return nil, tokens.ErrRecordConflict
		}
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	r.byToken[record.Token] = record
	return record, nil
}

func (r *memRecords) FindBySubjectAndPurpose(ctx context.Context, subjectID uuid.UUID, purpose tokens.Purpose) (*tokens.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, record := range r.byToken {
		if record.SubjectID == subjectID && record.Purpose == purpose {
			return record, nil
		}
	}
	return nil, tokens.ErrRecordNotFound
}

func (r *memRecords) FindByToken(ctx context.Context, token string) (*tokens.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if record, ok := r.byToken[token]; ok {
		return record, nil
	}
	return nil, tokens.ErrRecordNotFound
}

func (r *memRecords) ConsumeByToken(ctx context.Context, token string) (*tokens.VerificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byToken[token]
	if !ok {
		return nil, tokens.ErrRecordNotFound
	}
	delete(r.byToken, token)
	return record, nil
}

func (r *memRecords) DeleteBySubjectAndPurpose(ctx context.Context, subjectID uuid.UUID, purpose tokens.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, record := range r.byToken {
		if record.SubjectID == subjectID && record.Purpose == purpose {
			delete(r.byToken, token)
		}
	}
	return nil
}

func (r *memRecords) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for token, record := range r.byToken {
		if !record.ExpiresAt.After(before) {
			delete(r.byToken, token)
			removed++
		}
	}
	return removed, nil
}

func (r *memRecords) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byToken)
}

var errNotFoundForTest = goerrors.New("credential not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// testConfig implements tokens.Config
type testConfig struct {
	signingKey string
	issuer     string
	audience   []string
	sessionTTL time.Duration
	ttls       map[tokens.Purpose]time.Duration
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey: "test-signing-key-for-tokens",
		issuer:     "test-issuer",
		audience:   []string{"test-audience"},
		sessionTTL: time.Hour,
	}
}

func (c testConfig) GetSigningKey() string { return c.signingKey }
func (c testConfig) GetIssuer() string     { return c.issuer }
func (c testConfig) GetAudience() []string { return c.audience }

func (c testConfig) GetVerificationTTL(purpose tokens.Purpose) time.Duration {
	if ttl, ok := c.ttls[purpose]; ok {
		return ttl
	}
	return purpose.DefaultTTL()
}

func (c testConfig) GetSessionTTL() time.Duration { return c.sessionTTL }
