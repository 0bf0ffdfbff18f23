package authclient_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/goliatone/go-authclient"
)

// MockBackend implements authclient.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Login(ctx context.Context, email, password string) (*authclient.LoginResponse, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authclient.LoginResponse), args.Error(1)
}

func (m *MockBackend) FederatedExchange(ctx context.Context, idToken string, userType authclient.Role) (*authclient.ExchangeResponse, error) {
	args := m.Called(ctx, idToken, userType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authclient.ExchangeResponse), args.Error(1)
}

func (m *MockBackend) Me(ctx context.Context) (*authclient.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authclient.User), args.Error(1)
}

func (m *MockBackend) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBackend) CreateUser(ctx context.Context, profile authclient.SignupMessage) (*authclient.User, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authclient.User), args.Error(1)
}

// EvictableBackend adds the eviction subscription surface on top of the
// backend mock, letting tests fire a transport-level eviction mid-operation.
type EvictableBackend struct {
	MockBackend
	evictFns []func(ctx context.Context)
}

func (m *EvictableBackend) OnEviction(fn func(ctx context.Context)) {
	m.evictFns = append(m.evictFns, fn)
}

func (m *EvictableBackend) FireEviction(ctx context.Context) {
	for _, fn := range m.evictFns {
		fn(ctx)
	}
}

// MockFederatedSignIn implements authclient.FederatedSignIn
type MockFederatedSignIn struct {
	mock.Mock
}

func (m *MockFederatedSignIn) SignIn(ctx context.Context) (*authclient.Assertion, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authclient.Assertion), args.Error(1)
}

func (m *MockFederatedSignIn) ConsumeRedirectResult(ctx context.Context) (*authclient.PendingSignIn, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authclient.PendingSignIn), args.Error(1)
}

func (m *MockFederatedSignIn) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// RecordingSink collects every emitted activity event for assertions.
type RecordingSink struct {
	Events []authclient.ActivityEvent
}

func (s *RecordingSink) Record(_ context.Context, event authclient.ActivityEvent) error {
	s.Events = append(s.Events, event)
	return nil
}

func (s *RecordingSink) Types() []authclient.ActivityEventType {
	types := make([]authclient.ActivityEventType, 0, len(s.Events))
	for _, e := range s.Events {
		types = append(types, e.EventType)
	}
	return types
}

// FailingStore wraps a CredentialStore and fails the selected operations.
type FailingStore struct {
	authclient.CredentialStore
	GetErr   error
	SetErr   error
	ClearErr error
}

func (s *FailingStore) Get(ctx context.Context) (*authclient.Credential, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	return s.CredentialStore.Get(ctx)
}

func (s *FailingStore) Set(ctx context.Context, cred *authclient.Credential) error {
	if s.SetErr != nil {
		return s.SetErr
	}
	return s.CredentialStore.Set(ctx, cred)
}

func (s *FailingStore) Clear(ctx context.Context) error {
	if s.ClearErr != nil {
		return s.ClearErr
	}
	return s.CredentialStore.Clear(ctx)
}
