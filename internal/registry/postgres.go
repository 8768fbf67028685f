package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/buildquote/leadmatch/internal/db"
	"github.com/buildquote/leadmatch/internal/geo"
	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/pkg/geocode"
)

// PostgresRegistry implements Registry using pgxpool.
type PostgresRegistry struct {
	pool     db.Pool
	resolver geocode.Resolver
	closeFn  func()
}

// NewPostgres creates a PostgresRegistry with a connection pool.
func NewPostgres(ctx context.Context, connString string, resolver geocode.Resolver) (*PostgresRegistry, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "registry: postgres parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "registry: postgres connect")
	}
	return &PostgresRegistry{pool: pool, resolver: resolver, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests (pgxmock) and by
// callers sharing one pool across registry and store.
func NewPostgresWithPool(pool db.Pool, resolver geocode.Resolver) *PostgresRegistry {
	return &PostgresRegistry{pool: pool, resolver: resolver}
}

const pgMigration = `
CREATE TABLE IF NOT EXISTS professionals (
	id                   TEXT PRIMARY KEY,
	email                TEXT NOT NULL,
	display_name         TEXT NOT NULL,
	business_name        TEXT,
	role                 TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'active',
	zip                  TEXT NOT NULL,
	latitude             DOUBLE PRECISION NOT NULL,
	longitude            DOUBLE PRECISION NOT NULL,
	geohash              TEXT NOT NULL,
	service_radius_miles DOUBLE PRECISION NOT NULL,
	categories           JSONB NOT NULL,
	rating               DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count         INTEGER NOT NULL DEFAULT 0,
	verified             BOOLEAN NOT NULL DEFAULT FALSE,
	created_at           TIMESTAMPTZ NOT NULL,
	last_active          TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_professionals_role_geohash ON professionals(role, geohash);
CREATE INDEX IF NOT EXISTS idx_professionals_email ON professionals(email);
`

func (r *PostgresRegistry) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, pgMigration)
	return eris.Wrap(err, "registry: postgres migrate")
}

func (r *PostgresRegistry) Close() error {
	if r.closeFn != nil {
		r.closeFn()
	}
	return nil
}

func (r *PostgresRegistry) Register(ctx context.Context, p *model.Profile) (string, error) {
	if err := prepareRegistration(ctx, r.resolver, p, uuid.New().String(), time.Now().UTC()); err != nil {
		return "", err
	}

	catsJSON, err := json.Marshal(p.Categories())
	if err != nil {
		return "", eris.Wrap(err, "registry: marshal categories")
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO professionals (id, email, display_name, business_name, role, status, zip,
			latitude, longitude, geohash, service_radius_miles, categories,
			rating, review_count, verified, created_at, last_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		p.ID, p.Email, p.DisplayName, p.BusinessName, string(p.Role), string(p.Status), p.ZIP,
		p.Location.Latitude, p.Location.Longitude, p.Geohash, p.ServiceRadiusMiles, string(catsJSON),
		p.Rating, p.ReviewCount, p.Verified, p.CreatedAt, p.LastActive,
	)
	if err != nil {
		return "", eris.Wrap(err, "registry: postgres insert professional")
	}
	return p.ID, nil
}

func (r *PostgresRegistry) Update(ctx context.Context, id string, patch ProfileUpdate) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := applyUpdate(ctx, r.resolver, p, patch, time.Now().UTC()); err != nil {
		return err
	}

	catsJSON, err := json.Marshal(p.Categories())
	if err != nil {
		return eris.Wrap(err, "registry: marshal categories")
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE professionals SET
			email = $1, display_name = $2, business_name = $3, status = $4, zip = $5,
			latitude = $6, longitude = $7, geohash = $8, service_radius_miles = $9,
			categories = $10, rating = $11, review_count = $12, verified = $13, last_active = $14
		 WHERE id = $15`,
		p.Email, p.DisplayName, p.BusinessName, string(p.Status), p.ZIP,
		p.Location.Latitude, p.Location.Longitude, p.Geohash, p.ServiceRadiusMiles,
		string(catsJSON), p.Rating, p.ReviewCount, p.Verified, p.LastActive,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "registry: postgres update professional %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRegistry) Get(ctx context.Context, id string) (*model.Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, display_name, business_name, role, status, zip,
			latitude, longitude, geohash, service_radius_miles, categories,
			rating, review_count, verified, created_at, last_active
		 FROM professionals WHERE id = $1`, id,
	)
	p, err := scanPgProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *PostgresRegistry) FindCandidates(ctx context.Context, role model.Role, bounds []geo.Bounds, category string) ([]model.Profile, error) {
	if len(bounds) == 0 {
		return nil, nil
	}

	var clauses []string
	args := []any{string(role)}
	for i, b := range bounds {
		clauses = append(clauses, "geohash BETWEEN $"+strconv.Itoa(2*i+2)+" AND $"+strconv.Itoa(2*i+3))
		args = append(args, b.Low, b.High)
	}

	query := `SELECT id, email, display_name, business_name, role, status, zip,
			latitude, longitude, geohash, service_radius_miles, categories,
			rating, review_count, verified, created_at, last_active
		FROM professionals
		WHERE role = $1 AND status = 'active' AND (` + strings.Join(clauses, " OR ") + `)
		ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "registry: postgres find candidates")
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanPgProfile(rows)
		if err != nil {
			return nil, err
		}
		if !MatchesCategory(p.Categories(), category) {
			continue
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "registry: postgres find candidates iterate")
}

func scanPgProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	var role, status, catsJSON string
	var businessName sql.NullString

	err := row.Scan(
		&p.ID, &p.Email, &p.DisplayName, &businessName, &role, &status, &p.ZIP,
		&p.Location.Latitude, &p.Location.Longitude, &p.Geohash, &p.ServiceRadiusMiles, &catsJSON,
		&p.Rating, &p.ReviewCount, &p.Verified, &p.CreatedAt, &p.LastActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "registry: scan professional")
	}

	p.Role = model.Role(role)
	p.Status = model.ProfileStatus(status)
	p.BusinessName = businessName.String

	var cats []string
	if err := json.Unmarshal([]byte(catsJSON), &cats); err != nil {
		return nil, eris.Wrap(err, "registry: unmarshal categories")
	}
	p.SetCategories(cats)
	return &p, nil
}
