package authclient

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
)

// Config holds client options
type Config interface {
	GetBaseURL() string
	// GetRequestTimeout is the per-request timeout in seconds; 0 uses the
	// default.
	GetRequestTimeout() int
	// GetDatabasePath points at the SQLite file backing the durable
	// credential store; empty keeps credentials in memory.
	GetDatabasePath() string
}

// SimpleConfig is a plain-struct Config for hosts that do not carry their own
// configuration layer.
type SimpleConfig struct {
	BaseURL        string
	RequestTimeout int
	DatabasePath   string
}

var _ Config = SimpleConfig{}

func (c SimpleConfig) GetBaseURL() string     { return c.BaseURL }
func (c SimpleConfig) GetRequestTimeout() int { return c.RequestTimeout }
func (c SimpleConfig) GetDatabasePath() string {
	return c.DatabasePath
}

// New assembles the full client stack from a Config: the credential store
// (durable when a database path is configured), the REST session client, and
// a coordinator subscribed to the client's forced evictions.
func New(ctx context.Context, cfg Config, opts ...CoordinatorOption) (*SessionCoordinator, *Client, error) {
	var store CredentialStore = NewMemoryCredentialStore()

	if path := cfg.GetDatabasePath(); path != "" {
		db, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to open credential database")
		}

		durable, err := NewBunCredentialStore(db)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to build credential store")
		}

		if err := durable.Init(ctx); err != nil {
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to initialize credential store")
		}

		store = durable
	}

	timeout := 30 * time.Second
	if secs := cfg.GetRequestTimeout(); secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	client := NewClient(cfg.GetBaseURL(), store,
		WithHTTPClient(&http.Client{Timeout: timeout}))

	coordinator := NewSessionCoordinator(client, store, opts...)

	return coordinator, client, nil
}
