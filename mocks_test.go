package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/foothub/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// MockIdentity implements auth.Identity for testing
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Username() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Email() string {
	args := m.Called()
	return args.String(0)
}

func newMockIdentity(id, username, email string) *MockIdentity {
	identity := &MockIdentity{}
	identity.On("ID").Return(id)
	identity.On("Username").Return(username)
	identity.On("Email").Return(email)
	return identity
}

// MockUsers implements auth.Users for testing
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id string) (*auth.User, error) {
	args := m.Called(ctx, id)
	var user *auth.User
	if v := args.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, args.Error(1)
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	var user *auth.User
	if v := args.Get(0); v != nil {
		user = v.(*auth.User)
	}
	return user, args.Error(1)
}

func (m *MockUsers) Register(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	var created *auth.User
	if v := args.Get(0); v != nil {
		created = v.(*auth.User)
	}
	return created, args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, tx, user)
	var created *auth.User
	if v := args.Get(0); v != nil {
		created = v.(*auth.User)
	}
	return created, args.Error(1)
}

func (m *MockUsers) ConfirmEmail(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUsers) ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockUsers) Delete(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockRepositoryManager implements auth.RepositoryManager for testing
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
	if err := args.Error(0); err != nil {
		return err
	}
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Users() auth.Users {
	args := m.Called()
	return args.Get(0).(auth.Users)
}

// MockTaskDispatcher implements auth.TaskDispatcher for testing
type MockTaskDispatcher struct {
	mock.Mock
}

func (m *MockTaskDispatcher) Enqueue(ctx context.Context, task string, payload any) error {
	args := m.Called(ctx, task, payload)
	return args.Error(0)
}

// MockMailer implements auth.Mailer for testing
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// testConfig implements auth.Config with fixed values.
type testConfig struct {
	tokenExpiration      int
	confirmationTokenTTL time.Duration
	broadcastTokenTTL    time.Duration
	verifyExpiration     bool
	frontendURL          string
	subscribers          []string
}

func defaultTestConfig() testConfig {
	return testConfig{
		tokenExpiration:      24,
		confirmationTokenTTL: 24 * time.Hour,
		broadcastTokenTTL:    5 * time.Minute,
		verifyExpiration:     true,
		frontendURL:          "https://foothub.example",
	}
}

func (c testConfig) GetSigningKeyPEM() string               { return "" }
func (c testConfig) GetVerificationKeyPEM() string          { return "" }
func (c testConfig) GetTokenExpiration() int                { return c.tokenExpiration }
func (c testConfig) GetConfirmationTokenTTL() time.Duration { return c.confirmationTokenTTL }
func (c testConfig) GetBroadcastTokenTTL() time.Duration    { return c.broadcastTokenTTL }
func (c testConfig) GetVerifyExpiration() bool              { return c.verifyExpiration }
func (c testConfig) GetFrontendURL() string                 { return c.frontendURL }
func (c testConfig) GetSubscribers() []string               { return c.subscribers }

var _ auth.Config = testConfig{}

// A single RSA key shared across the package keeps the suite fast; tests
// that need a foreign key generate their own.
var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testKeyPair(t *testing.T) *auth.KeyPair {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return auth.NewKeyPair(testKey, &testKey.PublicKey)
}

func foreignKeyPair(t *testing.T) *auth.KeyPair {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return auth.NewKeyPair(key, &key.PublicKey)
}
