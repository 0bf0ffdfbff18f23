package federated

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-authclient"
)

// PendingRedirect records that a redirect-fallback flow was started, so the
// next load knows to complete it and with which requested role.
type PendingRedirect struct {
	Provider      string
	RequestedRole authclient.Role
	StartedAt     time.Time
}

// PendingStore persists the pending-redirect marker across loads. Take is
// consuming: the record is removed so a redirect result resolves exactly
// once.
type PendingStore interface {
	Save(ctx context.Context, rec PendingRedirect) error
	Take(ctx context.Context) (*PendingRedirect, error)
}

// MemoryPendingStore keeps the marker in process memory. Suitable for tests
// and hosts where a "load" does not cross process boundaries.
type MemoryPendingStore struct {
	mu  sync.Mutex
	rec *PendingRedirect
}

var _ PendingStore = (*MemoryPendingStore)(nil)

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{}
}

func (s *MemoryPendingStore) Save(_ context.Context, rec PendingRedirect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := rec
	s.rec = &cp
	return nil
}

func (s *MemoryPendingStore) Take(_ context.Context) (*PendingRedirect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.rec
	s.rec = nil
	return rec, nil
}

// PendingRedirectModel is the Bun model for the durable pending marker.
type PendingRedirectModel struct {
	bun.BaseModel `bun:"table:federated_pending,alias:fp"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	Provider      string    `bun:"provider,notnull"`
	RequestedRole string    `bun:"requested_role,notnull"`
	StartedAt     time.Time `bun:"started_at,notnull"`
}

// BunPendingStore persists the marker in the same database as the credential
// store, so a redirect completion survives a process restart.
type BunPendingStore struct {
	db *bun.DB
}

var _ PendingStore = (*BunPendingStore)(nil)

func NewBunPendingStore(db *bun.DB) *BunPendingStore {
	return &BunPendingStore{db: db}
}

// Init creates the pending table when it does not exist.
func (s *BunPendingStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*PendingRedirectModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *BunPendingStore) Save(ctx context.Context, rec PendingRedirect) error {
	model := &PendingRedirectModel{
		ID:            uuid.New(),
		Provider:      rec.Provider,
		RequestedRole: string(rec.RequestedRole),
		StartedAt:     rec.StartedAt,
	}

	// Only one flow can be pending at a time; replace any stale marker.
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*PendingRedirectModel)(nil)).
			Where("1 = 1").
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(model).Exec(ctx)
		return err
	})
}

func (s *BunPendingStore) Take(ctx context.Context) (*PendingRedirect, error) {
	model := &PendingRedirectModel{}
	err := s.db.NewSelect().
		Model(model).
		Order("started_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := s.db.NewDelete().
		Model((*PendingRedirectModel)(nil)).
		Where("id = ?", model.ID).
		Exec(ctx); err != nil {
		return nil, err
	}

	return &PendingRedirect{
		Provider:      model.Provider,
		RequestedRole: authclient.Role(model.RequestedRole),
		StartedAt:     model.StartedAt,
	}, nil
}
