package authclient

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// CredentialModel is the Bun model for the persisted credential record. The
// store holds at most one row: the current session.
type CredentialModel struct {
	bun.BaseModel `bun:"table:auth_credentials,alias:cred"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	Token     string    `bun:"token,notnull"`
	Profile   *User     `bun:"profile,type:jsonb"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// credentialRecordKey seeds the deterministic id of the single credential
// row, so writes are natural upserts.
const credentialRecordKey = "authclient.credential"

// BunCredentialStore is the durable CredentialStore, persisted in SQLite so
// a session survives process restarts.
type BunCredentialStore struct {
	db       *bun.DB
	recordID uuid.UUID
}

var _ CredentialStore = (*BunCredentialStore)(nil)

// OpenSQLite opens a Bun handle over the SQLite file at path, creating it
// when missing.
func OpenSQLite(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// NewBunCredentialStore creates a durable credential store on db. Call Init
// once before first use to create the backing table.
func NewBunCredentialStore(db *bun.DB) (*BunCredentialStore, error) {
	id, err := hashid.NewUUID(credentialRecordKey)
	if err != nil {
		return nil, err
	}
	return &BunCredentialStore{db: db, recordID: id}, nil
}

// Init creates the credential table when it does not exist.
func (s *BunCredentialStore) Init(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*CredentialModel)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func (s *BunCredentialStore) Get(ctx context.Context) (*Credential, error) {
	model := &CredentialModel{}
	err := s.db.NewSelect().
		Model(model).
		Where("id = ?", s.recordID).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &Credential{Token: model.Token, User: model.Profile.Clone()}, nil
}

func (s *BunCredentialStore) Set(ctx context.Context, cred *Credential) error {
	if cred == nil {
		return s.Clear(ctx)
	}

	now := time.Now()
	model := &CredentialModel{
		ID:        s.recordID,
		Token:     cred.Token,
		Profile:   cred.User.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (id) DO UPDATE").
		Set("token = EXCLUDED.token").
		Set("profile = EXCLUDED.profile").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	return err
}

func (s *BunCredentialStore) Clear(ctx context.Context) error {
	_, err := s.db.NewDelete().
		Model((*CredentialModel)(nil)).
		Where("id = ?", s.recordID).
		Exec(ctx)
	return err
}
