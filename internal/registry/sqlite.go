package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/buildquote/leadmatch/internal/geo"
	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/pkg/geocode"
)

// SQLiteRegistry implements Registry using modernc.org/sqlite.
type SQLiteRegistry struct {
	db       *sql.DB
	resolver geocode.Resolver
}

// NewSQLite opens a SQLite registry at the given path and configures WAL mode.
func NewSQLite(dsn string, resolver geocode.Resolver) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "registry: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "registry: sqlite exec %s", pragma)
		}
	}
	return &SQLiteRegistry{db: db, resolver: resolver}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS professionals (
	id                   TEXT PRIMARY KEY,
	email                TEXT NOT NULL,
	display_name         TEXT NOT NULL,
	business_name        TEXT,
	role                 TEXT NOT NULL,
	status               TEXT NOT NULL DEFAULT 'active',
	zip                  TEXT NOT NULL,
	latitude             REAL NOT NULL,
	longitude            REAL NOT NULL,
	geohash              TEXT NOT NULL,
	service_radius_miles REAL NOT NULL,
	categories           TEXT NOT NULL,
	rating               REAL NOT NULL DEFAULT 0,
	review_count         INTEGER NOT NULL DEFAULT 0,
	verified             INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL,
	last_active          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_professionals_role_geohash ON professionals(role, geohash);
CREATE INDEX IF NOT EXISTS idx_professionals_email ON professionals(email);
`

func (r *SQLiteRegistry) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "registry: sqlite migrate")
}

func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

const profileColumns = `id, email, display_name, business_name, role, status, zip,
	latitude, longitude, geohash, service_radius_miles, categories,
	rating, review_count, verified, created_at, last_active`

func (r *SQLiteRegistry) Register(ctx context.Context, p *model.Profile) (string, error) {
	if err := prepareRegistration(ctx, r.resolver, p, uuid.New().String(), time.Now().UTC()); err != nil {
		return "", err
	}

	catsJSON, err := json.Marshal(p.Categories())
	if err != nil {
		return "", eris.Wrap(err, "registry: marshal categories")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO professionals (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.DisplayName, p.BusinessName, string(p.Role), string(p.Status), p.ZIP,
		p.Location.Latitude, p.Location.Longitude, p.Geohash, p.ServiceRadiusMiles, string(catsJSON),
		p.Rating, p.ReviewCount, p.Verified, p.CreatedAt, p.LastActive,
	)
	if err != nil {
		return "", eris.Wrap(err, "registry: sqlite insert professional")
	}
	return p.ID, nil
}

func (r *SQLiteRegistry) Update(ctx context.Context, id string, patch ProfileUpdate) error {
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

	res, err := r.db.ExecContext(ctx,
		`UPDATE professionals SET
			email = ?, display_name = ?, business_name = ?, status = ?, zip = ?,
			latitude = ?, longitude = ?, geohash = ?, service_radius_miles = ?,
			categories = ?, rating = ?, review_count = ?, verified = ?, last_active = ?
		 WHERE id = ?`,
		p.Email, p.DisplayName, p.BusinessName, string(p.Status), p.ZIP,
		p.Location.Latitude, p.Location.Longitude, p.Geohash, p.ServiceRadiusMiles,
		string(catsJSON), p.Rating, p.ReviewCount, p.Verified, p.LastActive,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "registry: sqlite update professional %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "registry: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRegistry) Get(ctx context.Context, id string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM professionals WHERE id = ?`, id,
	)
	return scanProfile(row)
}

// FindCandidates implements Reader. The geohash ranges bound the scan via
// the role+geohash index; category fuzziness is applied in Go because
// substring matching in both directions does not express well in SQL.
func (r *SQLiteRegistry) FindCandidates(ctx context.Context, role model.Role, bounds []geo.Bounds, category string) ([]model.Profile, error) {
	if len(bounds) == 0 {
		return nil, nil
	}

	var clauses []string
	args := []any{string(role)}
	for _, b := range bounds {
		clauses = append(clauses, `geohash BETWEEN ? AND ?`)
		args = append(args, b.Low, b.High)
	}

	query := `SELECT ` + profileColumns + ` FROM professionals
		WHERE role = ? AND status = 'active' AND (` + strings.Join(clauses, " OR ") + `)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "registry: sqlite find candidates")
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		if !MatchesCategory(p.Categories(), category) {
			continue
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "registry: sqlite find candidates iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProfile(row scannable) (*model.Profile, error) {
	var p model.Profile
	var role, status, catsJSON string
	var businessName sql.NullString

	err := row.Scan(
		&p.ID, &p.Email, &p.DisplayName, &businessName, &role, &status, &p.ZIP,
		&p.Location.Latitude, &p.Location.Longitude, &p.Geohash, &p.ServiceRadiusMiles, &catsJSON,
		&p.Rating, &p.ReviewCount, &p.Verified, &p.CreatedAt, &p.LastActive,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
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
