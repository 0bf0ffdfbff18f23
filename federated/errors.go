package federated

import (
	stderrors "errors"
	"fmt"

	"github.com/goliatone/go-errors"
)

// ErrorKind is the closed set of failures the adapter reports. Raw provider
// error vocabulary never escapes this package.
type ErrorKind string

const (
	KindCancelled    ErrorKind = "cancelled"
	KindPopupBlocked ErrorKind = "popup_blocked"
	KindNetwork      ErrorKind = "network"
	KindRateLimited  ErrorKind = "rate_limited"
	KindUnknown      ErrorKind = "unknown"
)

const (
	TextCodeSignInCancelled = "federated_sign_in_cancelled"
	TextCodeNetworkFailure  = "federated_network_failure"
	TextCodeRateLimited     = "federated_rate_limited"
	TextCodeSignInFailed    = "federated_sign_in_failed"
	TextCodeBadAssertion    = "federated_bad_assertion"
)

// ErrSignInCancelled is returned when the user dismissed the provider's
// interactive surface.
var ErrSignInCancelled = errors.New("sign-in was cancelled", errors.CategoryAuth).
	WithTextCode(TextCodeSignInCancelled).
	WithCode(errors.CodeUnauthorized)

// ErrNetworkFailure is returned when the provider could not be reached;
// the caller should retry after checking connectivity.
var ErrNetworkFailure = errors.New("network error during sign-in, check your connection and try again", errors.CategoryOperation).
	WithTextCode(TextCodeNetworkFailure).
	WithCode(errors.CodeInternal)

// ErrRateLimited is returned when the provider throttled the attempt; the
// caller should wait before retrying.
var ErrRateLimited = errors.New("too many sign-in attempts, wait a moment and try again", errors.CategoryOperation).
	WithTextCode(TextCodeRateLimited).
	WithCode(errors.CodeConflict)

// ErrSignInFailed covers any provider failure outside the recognized kinds.
var ErrSignInFailed = errors.New("authentication failed, please try again", errors.CategoryAuth).
	WithTextCode(TextCodeSignInFailed).
	WithCode(errors.CodeUnauthorized)

// ErrBadAssertion is returned when the provider token fails signature or
// claim verification.
var ErrBadAssertion = errors.New("invalid identity assertion", errors.CategoryAuth).
	WithTextCode(TextCodeBadAssertion).
	WithCode(errors.CodeUnauthorized)

// ProviderError captures a normalized provider response. Providers construct
// it instead of leaking transport-level errors.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Code     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Provider != "" {
		scope = e.Provider
	}

	if e.Code != "" {
		return fmt.Sprintf("%s sign-in failed: %s", scope, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s sign-in failed: %v", scope, e.Err)
	}
	return fmt.Sprintf("%s sign-in failed (%s)", scope, e.Kind)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewProviderError builds a normalized provider failure.
func NewProviderError(provider string, kind ErrorKind, code string, err error) *ProviderError {
	if kind == "" {
		kind = KindUnknown
	}
	return &ProviderError{Provider: provider, Kind: kind, Code: code, Err: err}
}

// KindOf extracts the normalized kind from an error chain, KindUnknown when
// none is present.
func KindOf(err error) ErrorKind {
	var perr *ProviderError
	if stderrors.As(err, &perr) && perr != nil {
		if perr.Kind == "" {
			return KindUnknown
		}
		return perr.Kind
	}
	return KindUnknown
}

// mapKind converts a normalized kind into the rich error surfaced to the
// coordinator and the UI.
func mapKind(kind ErrorKind, source error) error {
	var base *errors.Error
	switch kind {
	case KindCancelled:
		base = ErrSignInCancelled
	case KindNetwork:
		base = ErrNetworkFailure
	case KindRateLimited:
		base = ErrRateLimited
	default:
		base = ErrSignInFailed
	}

	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if source != nil {
		clone.Source = source
	}

	var perr *ProviderError
	if stderrors.As(source, &perr) && perr != nil {
		meta := map[string]any{"kind": string(kind)}
		if perr.Provider != "" {
			meta["provider"] = perr.Provider
		}
		if perr.Code != "" {
			meta["code"] = perr.Code
		}
		clone.WithMetadata(meta)
	}

	return clone
}
