package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/lazy"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const imageSchemaSQL = `
CREATE TABLE IF NOT EXISTS images (
	id TEXT PRIMARY KEY,
	owner TEXT NOT NULL,
	document JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS images_owner_updated_idx ON images (owner, updated_at DESC);
`

// PostgresImageStore keeps each image record as a JSONB document next to
// the columns it is queried by.
type PostgresImageStore struct {
	conn *lazy.Handle[*sql.DB]
	now  func() time.Time
}

// OpenPostgres returns an open function for a lazy handle. It pings the
// server and makes sure the images table exists.
func OpenPostgres(dsn string) lazy.OpenFunc[*sql.DB] {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres connection: %w", err)
		}

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}

		if _, err := db.ExecContext(ctx, imageSchemaSQL); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure images schema: %w", err)
		}
		return db, nil
	}
}

func NewPostgresImageStore(conn *lazy.Handle[*sql.DB]) *PostgresImageStore {
	return &PostgresImageStore{
		conn: conn,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresImageStore) Create(ctx context.Context, owner string, img domain.ImageRecord) (domain.ImageRecord, error) {
	img, err := prepareCreate(owner, img, s.now())
	if err != nil {
		return domain.ImageRecord{}, err
	}
	img.ID = uuid.NewString()

	db, err := s.conn.Get(ctx)
	if err != nil {
		return domain.ImageRecord{}, persistenceError("connect", err)
	}

	document, err := json.Marshal(img)
	if err != nil {
		return domain.ImageRecord{}, fmt.Errorf("marshal image document: %w", err)
	}

	_, err = db.ExecContext(
		ctx,
		`INSERT INTO images (id, owner, document, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		img.ID,
		img.Owner,
		document,
		img.CreatedAt,
		img.UpdatedAt,
	)
	if err != nil {
		return domain.ImageRecord{}, persistenceError("insert image", err)
	}

	return img, nil
}

func (s *PostgresImageStore) Update(ctx context.Context, owner, id string, img domain.ImageRecord) (domain.ImageRecord, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return domain.ImageRecord{}, err
	}
	img, err = prepareUpdate(owner, existing, img, s.now())
	if err != nil {
		return domain.ImageRecord{}, err
	}

	db, err := s.conn.Get(ctx)
	if err != nil {
		return domain.ImageRecord{}, persistenceError("connect", err)
	}

	document, err := json.Marshal(img)
	if err != nil {
		return domain.ImageRecord{}, fmt.Errorf("marshal image document: %w", err)
	}

	res, err := db.ExecContext(
		ctx,
		`UPDATE images
		 SET document = $1, updated_at = $2
		 WHERE id = $3 AND owner = $4`,
		document,
		img.UpdatedAt,
		img.ID,
		img.Owner,
	)
	if err != nil {
		return domain.ImageRecord{}, persistenceError("update image", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ImageRecord{}, notFound(id)
	}

	return img, nil
}

func (s *PostgresImageStore) Get(ctx context.Context, id string) (domain.ImageRecord, error) {
	db, err := s.conn.Get(ctx)
	if err != nil {
		return domain.ImageRecord{}, persistenceError("connect", err)
	}

	row := db.QueryRowContext(
		ctx,
		`SELECT id, owner, document, created_at, updated_at
		 FROM images
		 WHERE id = $1`,
		id,
	)
	img, err := scanImage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ImageRecord{}, notFound(id)
		}
		return domain.ImageRecord{}, persistenceError("query image", err)
	}
	return img, nil
}

func (s *PostgresImageStore) ListByOwner(ctx context.Context, owner string, limit int) ([]domain.ImageRecord, error) {
	db, err := s.conn.Get(ctx)
	if err != nil {
		return nil, persistenceError("connect", err)
	}

	rows, err := db.QueryContext(
		ctx,
		`SELECT id, owner, document, created_at, updated_at
		 FROM images
		 WHERE owner = $1
		 ORDER BY updated_at DESC
		 LIMIT $2`,
		owner,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, persistenceError("list images", err)
	}
	defer rows.Close()

	out := make([]domain.ImageRecord, 0)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, persistenceError("scan image", err)
		}
		out = append(out, img)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("list images", err)
	}
	return out, nil
}

func (s *PostgresImageStore) Delete(ctx context.Context, owner, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := checkOwner(owner, existing); err != nil {
		return err
	}

	db, err := s.conn.Get(ctx)
	if err != nil {
		return persistenceError("connect", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM images WHERE id = $1 AND owner = $2`, id, owner); err != nil {
		return persistenceError("delete image", err)
	}
	return nil
}

func (s *PostgresImageStore) SetExport(ctx context.Context, id, status, key string) error {
	db, err := s.conn.Get(ctx)
	if err != nil {
		return persistenceError("connect", err)
	}

	patch, err := json.Marshal(map[string]string{"export_status": status, "export_key": key})
	if err != nil {
		return fmt.Errorf("marshal export patch: %w", err)
	}
	if key == "" {
		patch, _ = json.Marshal(map[string]string{"export_status": status})
	}

	res, err := db.ExecContext(
		ctx,
		`UPDATE images
		 SET document = document || $1::jsonb, updated_at = $2
		 WHERE id = $3`,
		patch,
		s.now(),
		id,
	)
	if err != nil {
		return persistenceError("update export status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (domain.ImageRecord, error) {
	var (
		img      domain.ImageRecord
		id       string
		owner    string
		document []byte
		created  time.Time
		updated  time.Time
	)
	if err := row.Scan(&id, &owner, &document, &created, &updated); err != nil {
		return domain.ImageRecord{}, err
	}
	if err := json.Unmarshal(document, &img); err != nil {
		return domain.ImageRecord{}, fmt.Errorf("unmarshal image document: %w", err)
	}

	img.ID = id
	img.Owner = owner
	img.CreatedAt = created
	img.UpdatedAt = updated
	return img, nil
}
