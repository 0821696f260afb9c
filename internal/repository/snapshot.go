package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/menu/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNoSnapshot = errors.New("no snapshot stored")

// DB is the subset of *pgxpool.Pool the repository needs
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snapshot *domain.MenuSnapshot) error
	LatestSnapshot(ctx context.Context, resource string) (*domain.MenuSnapshot, error)
}

type snapshotRepository struct {
	db DB
}

func NewSnapshotRepository(db DB) SnapshotRepository {
	return &snapshotRepository{
		db: db,
	}
}

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS menu_snapshots (
	id       uuid PRIMARY KEY,
	resource text NOT NULL,
	taken_at timestamptz NOT NULL,
	records  integer NOT NULL,
	data     jsonb NOT NULL
)`

// Migrate creates the snapshot table when it is missing
func Migrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("failed to create menu_snapshots: %w", err)
	}
	return nil
}

func (r *snapshotRepository) SaveSnapshot(ctx context.Context, snapshot *domain.MenuSnapshot) error {
	data, err := json.Marshal(snapshot.Layout)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot layout: %w", err)
	}

	query := `
	INSERT INTO menu_snapshots (id, resource, taken_at, records, data)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id)
	DO UPDATE SET resource = $2, taken_at = $3, records = $4, data = $5`
	_, err = r.db.Exec(ctx, query, snapshot.ID, snapshot.Resource, snapshot.TakenAt, snapshot.Records, data)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

func (r *snapshotRepository) LatestSnapshot(ctx context.Context, resource string) (*domain.MenuSnapshot, error) {
	query := `
	SELECT id::text, resource, taken_at, records, data
	FROM menu_snapshots
	WHERE resource = $1
	ORDER BY taken_at DESC
	LIMIT 1`

	var (
		snapshot domain.MenuSnapshot
		data     []byte
	)
	err := r.db.QueryRow(ctx, query, resource).
		Scan(&snapshot.ID, &snapshot.Resource, &snapshot.TakenAt, &snapshot.Records, &data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to load latest snapshot for %s: %w", resource, err)
	}

	if err := json.Unmarshal(data, &snapshot.Layout); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot layout: %w", err)
	}

	return &snapshot, nil
}

type noopRepository struct{}

// NewNoopRepository is used when no database is configured
func NewNoopRepository() SnapshotRepository {
	return noopRepository{}
}

func (noopRepository) SaveSnapshot(context.Context, *domain.MenuSnapshot) error {
	return nil
}

func (noopRepository) LatestSnapshot(context.Context, string) (*domain.MenuSnapshot, error) {
	return nil, ErrNoSnapshot
}

// NewSnapshot stamps a layout with a fresh id and the current time
func NewSnapshot(resource string, records int, layout []domain.ParentColumns) *domain.MenuSnapshot {
	return &domain.MenuSnapshot{
		ID:       uuid.NewString(),
		Resource: resource,
		TakenAt:  time.Now().UTC(),
		Records:  records,
		Layout:   layout,
	}
}
