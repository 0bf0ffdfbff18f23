package authclient

import (
	"context"
)

// ExchangeAttempt records one backend exchange try and its outcome.
type ExchangeAttempt struct {
	Tagged Role
	Token  string
	User   *User
	Err    error
}

// ElevationOutcome is the tagged result of the two-attempt exchange policy.
// The attempt order and count are part of the contract: user first, then at
// most one admin retry when elevation was requested.
type ElevationOutcome struct {
	Attempts []ExchangeAttempt
	Granted  Role
	Token    string
	User     *User
	Err      error
}

// Succeeded reports whether any attempt was accepted by the backend.
func (o ElevationOutcome) Succeeded() bool {
	return o.Err == nil && o.Token != ""
}

// resolveWithElevation runs the role-elevation retry policy. The backend is
// the authority on entitlement; the client discovers it by trial, never more
// than two attempts. When both attempts fail the admin attempt's error is
// reported, since it is the one that answered the caller's actual request.
func resolveWithElevation(ctx context.Context, backend Backend, assertion *Assertion, requested Role) ElevationOutcome {
	out := ElevationOutcome{}

	first := attemptExchange(ctx, backend, assertion, RoleUser)
	out.Attempts = append(out.Attempts, first)
	if first.Err == nil {
		out.Granted = grantedRole(first.User, RoleUser)
		out.Token = first.Token
		out.User = first.User
		return out
	}

	if requested != RoleAdmin {
		out.Err = first.Err
		return out
	}

	second := attemptExchange(ctx, backend, assertion, RoleAdmin)
	out.Attempts = append(out.Attempts, second)
	if second.Err == nil {
		out.Granted = grantedRole(second.User, RoleAdmin)
		out.Token = second.Token
		out.User = second.User
		return out
	}

	out.Err = second.Err
	return out
}

func attemptExchange(ctx context.Context, backend Backend, assertion *Assertion, tagged Role) ExchangeAttempt {
	attempt := ExchangeAttempt{Tagged: tagged}

	res, err := backend.FederatedExchange(ctx, assertion.IDToken, tagged)
	if err != nil {
		attempt.Err = err
		return attempt
	}

	attempt.Token = res.AccessToken
	attempt.User = res.User
	if attempt.User != nil {
		attempt.User.EnsureRole()
	}
	return attempt
}

// grantedRole prefers the backend-reported role and falls back to the tag of
// the attempt that succeeded.
func grantedRole(user *User, tagged Role) Role {
	if user != nil && user.Role.IsValid() {
		return user.Role
	}
	return NormalizeRole(string(tagged))
}
