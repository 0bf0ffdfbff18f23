package authclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-authclient"
)

func TestNewAssemblesTheStack(t *testing.T) {
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
		case "/auth/me":
			json.NewEncoder(w).Encode(map[string]string{"id": "usr-1", "email": "test@example.com"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	t.Run("in-memory store by default", func(t *testing.T) {
		coordinator, client, err := authclient.New(ctx, authclient.SimpleConfig{
			BaseURL: srv.URL,
		})

		require.NoError(t, err)
		require.NotNil(t, coordinator)
		require.NotNil(t, client)

		session, err := coordinator.Login(ctx, "test@example.com", "password123")
		require.NoError(t, err)
		assert.True(t, session.IsAuthenticated())
	})

	t.Run("database path selects the durable store", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "authclient.db")

		coordinator, _, err := authclient.New(ctx, authclient.SimpleConfig{
			BaseURL:      srv.URL,
			DatabasePath: path,
		})
		require.NoError(t, err)

		_, err = coordinator.Login(ctx, "test@example.com", "password123")
		require.NoError(t, err)

		// A second stack over the same file restores the session.
		restored, _, err := authclient.New(ctx, authclient.SimpleConfig{
			BaseURL:      srv.URL,
			DatabasePath: path,
		})
		require.NoError(t, err)

		require.NoError(t, restored.Initialize(ctx))
		assert.Equal(t, authclient.StateAuthenticated, restored.State())
	})
}
