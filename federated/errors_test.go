package federated_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-authclient/federated"
)

func TestProviderError(t *testing.T) {
	t.Run("code drives the message", func(t *testing.T) {
		err := federated.NewProviderError("google", federated.KindCancelled, "popup_closed_by_user", nil)
		assert.Contains(t, err.Error(), "google")
		assert.Contains(t, err.Error(), "popup_closed_by_user")
	})

	t.Run("wrapped cause is reachable", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := federated.NewProviderError("google", federated.KindNetwork, "", cause)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("empty kind normalizes to unknown", func(t *testing.T) {
		err := federated.NewProviderError("google", "", "mystery", nil)
		assert.Equal(t, federated.KindUnknown, err.Kind)
	})
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected federated.ErrorKind
	}{
		{
			name:     "direct provider error",
			err:      federated.NewProviderError("google", federated.KindPopupBlocked, "", nil),
			expected: federated.KindPopupBlocked,
		},
		{
			name:     "wrapped provider error",
			err:      fmt.Errorf("sign-in: %w", federated.NewProviderError("google", federated.KindRateLimited, "", nil)),
			expected: federated.KindRateLimited,
		},
		{
			name:     "foreign error",
			err:      errors.New("something else"),
			expected: federated.KindUnknown,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: federated.KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, federated.KindOf(tt.err))
		})
	}
}

func TestStructuredErrorProperties(t *testing.T) {
	t.Run("ErrSignInCancelled", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, federated.ErrSignInCancelled.Category)
		assert.Equal(t, federated.TextCodeSignInCancelled, federated.ErrSignInCancelled.TextCode)
	})

	t.Run("ErrNetworkFailure", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryOperation, federated.ErrNetworkFailure.Category)
		assert.Equal(t, federated.TextCodeNetworkFailure, federated.ErrNetworkFailure.TextCode)
	})

	t.Run("ErrRateLimited", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryOperation, federated.ErrRateLimited.Category)
		assert.Equal(t, federated.TextCodeRateLimited, federated.ErrRateLimited.TextCode)
	})

	t.Run("ErrSignInFailed", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, federated.ErrSignInFailed.Category)
		assert.Equal(t, federated.TextCodeSignInFailed, federated.ErrSignInFailed.TextCode)
	})

	t.Run("ErrBadAssertion", func(t *testing.T) {
		assert.Equal(t, goerrors.CategoryAuth, federated.ErrBadAssertion.Category)
		assert.Equal(t, federated.TextCodeBadAssertion, federated.ErrBadAssertion.TextCode)
	})
}
