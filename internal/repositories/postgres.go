package repositories

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/shared"
)

//go:embed sql/postgres_schema.sql
var postgresSchema string

// identityRow is the sqlx mapping of one identities row.
type identityRow struct {
	ID             string         `db:"id"`
	RequesterID    string         `db:"requester_id"`
	AccessToken    string         `db:"access_token"`
	RefreshToken   sql.NullString `db:"refresh_token"`
	ExpirationDate time.Time      `db:"expiration_date"`
	ETag           sql.NullString `db:"etag"`
	LastAdded      sql.NullTime   `db:"last_added"`
}

func (r identityRow) identity() *models.Identity {
	identity := &models.Identity{
		ID:             r.ID,
		RequesterID:    r.RequesterID,
		AccessToken:    r.AccessToken,
		RefreshToken:   r.RefreshToken.String,
		ExpirationDate: r.ExpirationDate.UTC(),
		ETag:           r.ETag.String,
	}
	if r.LastAdded.Valid {
		t := r.LastAdded.Time.UTC()
		identity.LastAdded = &t
	}
	return identity
}

// PostgresRepository implements [models.IdentityRepository] on PostgreSQL through sqlx.
type PostgresRepository struct {
	db *sqlx.DB
}

// OpenPostgres connects to dsn with the lib/pq driver.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the identities table when it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Identity, error) {
	var row identityRow
	query := `
		SELECT ` + identityColumns + `
		FROM identities
		WHERE id = $1`

	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrIdentityNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}
	return row.identity(), nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Identity, error) {
	var rows []identityRow
	query := `SELECT ` + identityColumns + ` FROM identities ORDER BY id ASC`

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}

	identities := make([]*models.Identity, 0, len(rows))
	for _, row := range rows {
		identities = append(identities, row.identity())
	}
	return identities, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, identity *models.Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	query := `
		INSERT INTO identities (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			requester_id = EXCLUDED.requester_id,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expiration_date = EXCLUDED.expiration_date,
			etag = EXCLUDED.etag,
			last_added = EXCLUDED.last_added,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		identity.ID,
		identity.RequesterID,
		identity.AccessToken,
		nullString(identity.RefreshToken),
		identity.ExpirationDate.UTC(),
		nullString(identity.ETag),
		nullTime(identity.LastAdded),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert identity: %v", shared.ErrPersistence, err)
	}
	return nil
}

func (r *PostgresRepository) SaveTokens(ctx context.Context, id, access, refresh string, expires time.Time) error {
	query := `
		UPDATE identities
		SET access_token = $2, refresh_token = $3, expiration_date = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, access, nullString(refresh), expires.UTC())
	if err != nil {
		return fmt.Errorf("%w: failed to save tokens: %v", shared.ErrPersistence, err)
	}
	return requireRow(result, id)
}

func (r *PostgresRepository) SaveProgress(ctx context.Context, id, etag string, lastAdded *time.Time) error {
	query := `
		UPDATE identities
		SET etag = $2, last_added = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, nullString(etag), nullTime(lastAdded))
	if err != nil {
		return fmt.Errorf("%w: failed to save progress: %v", shared.ErrPersistence, err)
	}
	return requireRow(result, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete identity: %v", shared.ErrPersistence, err)
	}
	return requireRow(result, id)
}
