package authclient

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Backend is the subset of the REST surface the coordinator consumes.
type Backend interface {
	Login(ctx context.Context, email, password string) (*LoginResponse, error)
	FederatedExchange(ctx context.Context, idToken string, userType Role) (*ExchangeResponse, error)
	Me(ctx context.Context) (*User, error)
	Logout(ctx context.Context) error
	CreateUser(ctx context.Context, profile SignupMessage) (*User, error)
}

// CredentialStore holds the persisted session token and cached profile.
// A missing record reads as (nil, nil) and means "unauthenticated".
type CredentialStore interface {
	Get(ctx context.Context) (*Credential, error)
	Set(ctx context.Context, cred *Credential) error
	Clear(ctx context.Context) error
}

// Navigator moves the active view to the sign-in surface after a forced
// eviction. UI shells provide their own implementation.
type Navigator interface {
	ToSignIn()
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func()

func (f NavigatorFunc) ToSignIn() {
	if f != nil {
		f()
	}
}

type noopNavigator struct{}

func (noopNavigator) ToSignIn() {}

// EvictionNotifier is implemented by REST clients that can announce a
// 401-triggered eviction. The coordinator subscribes to converge its
// in-memory session with the already-cleared store.
type EvictionNotifier interface {
	OnEviction(fn func(ctx context.Context))
}

// FederatedSignIn is the capability the coordinator consumes from the
// federated identity adapter. SignIn resolving (nil, nil) means the flow fell
// back to a redirect and the assertion will arrive on the next load through
// ConsumeRedirectResult.
type FederatedSignIn interface {
	SignIn(ctx context.Context) (*Assertion, error)
	ConsumeRedirectResult(ctx context.Context) (*PendingSignIn, error)
	SignOut(ctx context.Context) error
}

// Coordinator is the public surface of the session state machine.
type Coordinator interface {
	Initialize(ctx context.Context) error
	Login(ctx context.Context, email, password string) (*Session, error)
	AuthenticateFederated(ctx context.Context, assertion *Assertion, requested Role) (*Session, error)
	Signup(ctx context.Context, msg SignupMessage) (*User, error)
	Logout(ctx context.Context) error
	Current() Session
	State() State
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHCLIENT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHCLIENT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
