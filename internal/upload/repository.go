package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abduss/uploads/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	repoTimeout  = 5 * time.Second
	defaultLimit = 20
	maxLimit     = 100
)

// Postgres error codes the store reports as a conflict rather than a failure.
const (
	pgUniqueViolation  = "23505"
	pgCheckViolation   = "23514"
	pgStringTruncation = "22001"
)

const uploadColumns = `id, key, url, label, owner_id, created_at, updated_at`

// Repository provides access to upload records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new upload repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateUpload inserts a record. Store-level failures are logged and collapsed into the status.
func (r *Repository) CreateUpload(ctx context.Context, key, url string, input Input, ownerID uuid.UUID) (SaveStatus, Upload) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO uploads (key, url, label, owner_id)
VALUES ($1, $2, $3, $4)
RETURNING ` + uploadColumns + `;`

	stored, err := scanUpload(r.pool.QueryRow(ctx, query, key, url, input.Label, ownerID))
	if err != nil {
		return statusFor(ctx, "create upload", err), Upload{}
	}
	return SaveSuccess, stored
}

// GetUploads lists the owner's uploads, newest first.
func (r *Repository) GetUploads(ctx context.Context, filter Filter, ownerID uuid.UUID) (RecordsList[Upload], error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	limit, offset := pageBounds(filter)

	where := `WHERE owner_id = $1 AND ($2::text = '' OR label ILIKE '%' || $2::text || '%')`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM uploads `+where+`;`, ownerID, filter.Label).Scan(&total); err != nil {
		return RecordsList[Upload]{}, fmt.Errorf("count uploads: %w", err)
	}

	query := `
SELECT ` + uploadColumns + `
FROM uploads
` + where + `
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4;`

	rows, err := r.pool.Query(ctx, query, ownerID, filter.Label, limit, offset)
	if err != nil {
		return RecordsList[Upload]{}, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	list := RecordsList[Upload]{Records: []Upload{}, TotalCount: total}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return RecordsList[Upload]{}, fmt.Errorf("scan upload: %w", err)
		}
		list.Records = append(list.Records, u)
	}
	if err := rows.Err(); err != nil {
		return RecordsList[Upload]{}, fmt.Errorf("iterate uploads: %w", err)
	}
	return list, nil
}

// FindOne fetches the record with id owned by ownerID.
func (r *Repository) FindOne(ctx context.Context, id, ownerID uuid.UUID) (Upload, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE id = $1 AND owner_id = $2;`

	u, err := scanUpload(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Upload{}, ErrUploadNotFound
		}
		return Upload{}, fmt.Errorf("find upload: %w", err)
	}
	return u, nil
}

// SaveUpload persists the mutable fields of u. The stored updated_at is copied back into u.
func (r *Repository) SaveUpload(ctx context.Context, u *Upload) SaveStatus {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
UPDATE uploads
SET label = $1, updated_at = NOW()
WHERE id = $2 AND owner_id = $3
RETURNING updated_at;`

	if err := r.pool.QueryRow(ctx, query, u.Label, u.ID, u.OwnerID).Scan(&u.UpdatedAt); err != nil {
		return statusFor(ctx, "save upload", err)
	}
	return SaveSuccess
}

// Remove deletes the given records.
func (r *Repository) Remove(ctx context.Context, uploads ...Upload) error {
	if len(uploads) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	ids := make([]uuid.UUID, 0, len(uploads))
	for _, u := range uploads {
		ids = append(ids, u.ID)
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM uploads WHERE id = ANY($1);`, ids); err != nil {
		return fmt.Errorf("remove uploads: %w", err)
	}
	return nil
}

// pageBounds applies the listing defaults: limit 20, at most 100, offset never negative.
func pageBounds(filter Filter) (limit, offset int) {
	limit = filter.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = filter.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row rowScanner) (Upload, error) {
	var u Upload
	err := row.Scan(&u.ID, &u.Key, &u.URL, &u.Label, &u.OwnerID, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func statusFor(ctx context.Context, op string, err error) SaveStatus {
	status := classify(err)
	logger.FromContext(ctx).Warn("upload record write failed",
		zap.String("op", op),
		zap.Stringer("status", status),
		zap.Error(err),
	)
	return status
}

func classify(err error) SaveStatus {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgCheckViolation, pgStringTruncation:
			return SaveConflict
		}
	}
	return SaveError
}
