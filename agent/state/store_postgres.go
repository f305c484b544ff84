package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// userContextRow is the bun mapping for one persisted context. Facts and the
// pending action are stored as JSON blobs; version backs the conditional
// write.
type userContextRow struct {
	bun.BaseModel `bun:"table:user_contexts"`

	UserID       string     `bun:"user_id,pk"`
	ActiveStrand string     `bun:"active_strand,notnull"`
	Facts        []byte     `bun:"facts,type:jsonb"`
	Pending      []byte     `bun:"pending_action,type:jsonb,nullzero"`
	Version      int64      `bun:"version,notnull"`
	LastUpdated  time.Time  `bun:"last_updated,notnull"`
	ExpiresAt    *time.Time `bun:"expires_at,nullzero"`
}

// PostgresStore persists UserContext records through bun. Save is a
// conditional UPDATE on the version column; a lost race surfaces as
// ErrVersionConflict.
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load(ctx context.Context, userID string) (*UserContext, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}

	row := new(userContextRow)
	err := s.db.NewSelect().Model(row).Where("user_id = ?", userID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContextNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	uc, err := row.toContext()
	if err != nil {
		return nil, err
	}
	if err := uc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid context loaded from store: %w", err)
	}
	return uc, nil
}

func (s *PostgresStore) Save(ctx context.Context, uc *UserContext) error {
	if uc == nil {
		return ErrNilContext
	}
	if strings.TrimSpace(uc.UserID) == "" {
		return ErrEmptyUserID
	}
	uc.EnsureFacts()

	loadedVersion := uc.Version
	row, err := toRow(uc)
	if err != nil {
		return err
	}
	row.Version = loadedVersion + 1
	row.LastUpdated = time.Now().UTC()

	if loadedVersion == 0 {
		_, err := s.db.NewInsert().Model(row).Exec(ctx)
		if err != nil {
			if isDuplicateKey(err) {
				return ErrVersionConflict
			}
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	} else {
		res, err := s.db.NewUpdate().
			Model(row).
			WherePK().
			Where("version = ?", loadedVersion).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if affected == 0 {
			return ErrVersionConflict
		}
	}

	uc.Version = row.Version
	uc.LastUpdated = row.LastUpdated
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	_, err := s.db.NewDelete().
		Model((*userContextRow)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func toRow(uc *UserContext) (*userContextRow, error) {
	facts, err := json.Marshal(uc.Facts)
	if err != nil {
		return nil, fmt.Errorf("marshal facts: %w", err)
	}

	var pending []byte
	if uc.PendingAction != nil {
		pending, err = json.Marshal(uc.PendingAction)
		if err != nil {
			return nil, fmt.Errorf("marshal pending action: %w", err)
		}
	}

	return &userContextRow{
		UserID:       uc.UserID,
		ActiveStrand: uc.ActiveStrand,
		Facts:        facts,
		Pending:      pending,
		Version:      uc.Version,
		LastUpdated:  uc.LastUpdated,
		ExpiresAt:    uc.ExpiresAt,
	}, nil
}

func (r *userContextRow) toContext() (*UserContext, error) {
	uc := &UserContext{
		UserID:       r.UserID,
		ActiveStrand: r.ActiveStrand,
		Version:      r.Version,
		LastUpdated:  r.LastUpdated,
		ExpiresAt:    r.ExpiresAt,
	}

	if len(r.Facts) > 0 {
		if err := json.Unmarshal(r.Facts, &uc.Facts); err != nil {
			return nil, fmt.Errorf("unmarshal facts: %w", err)
		}
	}
	uc.EnsureFacts()

	if len(r.Pending) > 0 {
		uc.PendingAction = new(PendingAction)
		if err := json.Unmarshal(r.Pending, uc.PendingAction); err != nil {
			return nil, fmt.Errorf("unmarshal pending action: %w", err)
		}
	}
	return uc, nil
}

func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
