package authclient

import (
	"fmt"
)

// State is the coordinator's position in the session state machine.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
)

// User is the cached profile snapshot of the authenticated account.
type User struct {
	ID      string `json:"id,omitempty"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Role    Role   `json:"role,omitempty"`
}

// Clone returns an independent copy so callers cannot mutate coordinator
// state through a published session.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// EnsureRole defaults a missing or unrecognized role to RoleUser.
func (u *User) EnsureRole() {
	if u == nil {
		return
	}
	u.Role = NormalizeRole(string(u.Role))
}

// FederatedIdentity references the active third-party identity. Its lifecycle
// is independent from the backend token: it may exist alone during the window
// between provider sign-in and backend exchange, and a password session has
// none at all.
type FederatedIdentity struct {
	Provider      string `json:"provider,omitempty"`
	SubjectID     string `json:"subject_id,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
}

// Assertion is a provider-signed identity token plus the profile fields
// extracted from its claims. The IDToken is the artifact exchanged with the
// backend, not a provider session handle.
type Assertion struct {
	IDToken       string
	Provider      string
	SubjectID     string
	Email         string
	Name          string
	EmailVerified bool
}

// Identity projects the assertion into the session's federated reference.
func (a *Assertion) Identity() *FederatedIdentity {
	if a == nil {
		return nil
	}
	return &FederatedIdentity{
		Provider:      a.Provider,
		SubjectID:     a.SubjectID,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
	}
}

// PendingSignIn is a redirect-flow completion recovered on a later load,
// carrying the role that was requested when the flow started.
type PendingSignIn struct {
	Assertion     *Assertion
	RequestedRole Role
}

// Session is the authoritative client-side authentication state.
type Session struct {
	Token     string             `json:"token,omitempty"`
	User      *User              `json:"user,omitempty"`
	Federated *FederatedIdentity `json:"federated,omitempty"`
}

// IsAuthenticated holds exactly when both the token and the profile are
// present. The coordinator never publishes a state where one is set and the
// other is not.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// Role returns the effective role, defaulting to RoleUser while a profile is
// present and empty otherwise.
func (s Session) Role() Role {
	if s.User == nil {
		return ""
	}
	return NormalizeRole(string(s.User.Role))
}

func (s Session) clone() Session {
	cp := s
	cp.User = s.User.Clone()
	if s.Federated != nil {
		fed := *s.Federated
		cp.Federated = &fed
	}
	return cp
}

func (s Session) String() string {
	email := "<nil>"
	if s.User != nil {
		email = s.User.Email
	}
	fed := "none"
	if s.Federated != nil {
		fed = s.Federated.Provider
	}
	return fmt.Sprintf("authenticated=%t user=%s role=%s federated=%s",
		s.IsAuthenticated(), email, s.Role(), fed)
}

// Credential is the durable projection of Session.Token and Session.User,
// written on every successful authentication and cleared on logout or forced
// eviction.
type Credential struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Clone returns an independent copy of the credential.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	return &Credential{Token: c.Token, User: c.User.Clone()}
}
