package authclient

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "auth_invalid_credentials"
	TextCodeExchangeRejected   = "auth_exchange_rejected"
	TextCodeElevationDenied    = "auth_elevation_denied"
	TextCodeOperationInFlight  = "auth_operation_in_flight"
	TextCodeSessionRevoked     = "auth_session_revoked"
	TextCodeProfileUnavailable = "auth_profile_unavailable"
	TextCodeCredentialStore    = "auth_credential_store"
	TextCodeMissingAssertion   = "auth_missing_assertion"
	TextCodeInvalidSignup      = "auth_invalid_signup"
)

// ErrInvalidCredentials is returned when the backend rejects an email and
// password pair.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrExchangeRejected is returned when the backend refuses a federated
// assertion exchange.
var ErrExchangeRejected = errors.New("federated exchange rejected", errors.CategoryAuth).
	WithTextCode(TextCodeExchangeRejected).
	WithCode(errors.CodeUnauthorized)

// ErrElevationDenied is returned when both the user and the admin exchange
// attempts fail for an assertion that requested elevated access.
var ErrElevationDenied = errors.New("admin access denied for identity", errors.CategoryAuth).
	WithTextCode(TextCodeElevationDenied).
	WithCode(errors.CodeForbidden)

// ErrOperationInFlight is returned when a second authentication transition is
// attempted while one is pending. The coordinator serializes transitions.
var ErrOperationInFlight = errors.New("authentication already in progress", errors.CategoryConflict).
	WithTextCode(TextCodeOperationInFlight).
	WithCode(errors.CodeConflict)

// ErrSessionRevoked is returned when a forced eviction lands while an
// authentication transition is pending; the eviction wins.
var ErrSessionRevoked = errors.New("session revoked by server", errors.CategoryAuth).
	WithTextCode(TextCodeSessionRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrProfileUnavailable is returned when the profile refresh after a token
// grant fails and the operation resolves to Unauthenticated.
var ErrProfileUnavailable = errors.New("unable to load user profile", errors.CategoryAuth).
	WithTextCode(TextCodeProfileUnavailable).
	WithCode(errors.CodeUnauthorized)

// ErrCredentialStore is returned when the credential store rejects a write.
var ErrCredentialStore = errors.New("credential store failure", errors.CategoryInternal).
	WithTextCode(TextCodeCredentialStore).
	WithCode(errors.CodeInternal)

// ErrMissingAssertion is returned when AuthenticateFederated is called
// without a resolved assertion.
var ErrMissingAssertion = errors.New("federated assertion is required", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingAssertion).
	WithCode(errors.CodeBadRequest)

// ErrInvalidSignup is returned when the signup payload fails validation
// before it is sent to the backend.
var ErrInvalidSignup = errors.New("invalid signup payload", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidSignup).
	WithCode(errors.CodeBadRequest)
