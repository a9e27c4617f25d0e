package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/trackwatch/internal/models"
	"github.com/desertthunder/trackwatch/internal/shared"
)

const identityColumns = `id, requester_id, access_token, refresh_token, expiration_date, etag, last_added`

// SQLiteRepository implements [models.IdentityRepository] on the migrated identities table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new [SQLiteRepository] with the given database connection
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get retrieves an identity by id
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = ?`

	identity, err := scanIdentity(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrIdentityNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}
	return identity, nil
}

// List retrieves every identity ordered by id
func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	identities := []*models.Identity{}
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identities: %w", err)
	}
	return identities, nil
}

// Upsert inserts the identity or replaces every field of an existing row
func (r *SQLiteRepository) Upsert(ctx context.Context, identity *models.Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO identities (` + identityColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			requester_id = excluded.requester_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expiration_date = excluded.expiration_date,
			etag = excluded.etag,
			last_added = excluded.last_added,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		identity.ID,
		identity.RequesterID,
		identity.AccessToken,
		nullString(identity.RefreshToken),
		identity.ExpirationDate.UTC(),
		nullString(identity.ETag),
		nullTime(identity.LastAdded),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert identity: %v", shared.ErrPersistence, err)
	}
	return nil
}

// SaveTokens replaces the credential fields of an existing identity in one statement
func (r *SQLiteRepository) SaveTokens(ctx context.Context, id, access, refresh string, expires time.Time) error {
	query := `
		UPDATE identities
		SET access_token = ?, refresh_token = ?, expiration_date = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, access, nullString(refresh), expires.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("%w: failed to save tokens: %v", shared.ErrPersistence, err)
	}
	return requireRow(result, id)
}

// SaveProgress replaces the etag and watermark of an existing identity in one statement
func (r *SQLiteRepository) SaveProgress(ctx context.Context, id, etag string, lastAdded *time.Time) error {
	query := `
		UPDATE identities
		SET etag = ?, last_added = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, nullString(etag), nullTime(lastAdded), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("%w: failed to save progress: %v", shared.ErrPersistence, err)
	}
	return requireRow(result, id)
}

// Delete removes an identity by id
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete identity: %v", shared.ErrPersistence, err)
	}
	return requireRow(result, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		identity  models.Identity
		refresh   sql.NullString
		etag      sql.NullString
		expires   time.Time
		lastAdded sql.NullTime
	)

	if err := row.Scan(&identity.ID, &identity.RequesterID, &identity.AccessToken, &refresh, &expires, &etag, &lastAdded); err != nil {
		return nil, err
	}

	identity.RefreshToken = refresh.String
	identity.ETag = etag.String
	identity.ExpirationDate = expires.UTC()
	if lastAdded.Valid {
		t := lastAdded.Time.UTC()
		identity.LastAdded = &t
	}
	return &identity, nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrIdentityNotFound, id)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
