package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/buildquote/leadmatch/internal/db"
	"github.com/buildquote/leadmatch/internal/model"
)

// PostgresStore implements LeadStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "store: postgres parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: postgres connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests (pgxmock) and by
// callers sharing one pool across registry and store.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const pgMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	email           TEXT NOT NULL,
	phone           TEXT,
	zip             TEXT NOT NULL,
	categories      JSONB NOT NULL,
	project_type    TEXT,
	project_details TEXT,
	budget_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	timeline        TEXT,
	looking_for_pro BOOLEAN NOT NULL DEFAULT FALSE,
	intent_score    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS match_results (
	lead_id      TEXT PRIMARY KEY REFERENCES leads(id),
	result       JSONB NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	last_updated TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS professional_leads (
	professional_id TEXT NOT NULL,
	lead_id         TEXT NOT NULL,
	lead_name       TEXT NOT NULL,
	lead_zip        TEXT NOT NULL,
	categories      JSONB NOT NULL,
	distance_miles  DOUBLE PRECISION NOT NULL,
	intent_score    INTEGER NOT NULL,
	matched_at      TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (professional_id, lead_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email);
CREATE INDEX IF NOT EXISTS idx_professional_leads_pro ON professional_leads(professional_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgMigration)
	return eris.Wrap(err, "store: postgres migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveMatch(ctx context.Context, lead *model.LeadRequest, result *model.MatchResult) error {
	catsJSON, err := json.Marshal(lead.Categories)
	if err != nil {
		return eris.Wrap(err, "store: marshal categories")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "store: marshal match result")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: postgres begin")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO leads (id, name, email, phone, zip, categories, project_type, project_details,
			budget_usd, timeline, looking_for_pro, intent_score, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (id) DO UPDATE SET intent_score = EXCLUDED.intent_score, status = EXCLUDED.status`,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.ZIP, string(catsJSON),
		lead.ProjectType, lead.ProjectDetails, lead.BudgetUSD, lead.Timeline,
		lead.IsLookingForPro, lead.IntentScore, string(lead.Status), lead.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "store: postgres upsert lead")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO match_results (lead_id, result, status, created_at, last_updated)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (lead_id) DO UPDATE SET
			result = EXCLUDED.result, status = EXCLUDED.status, last_updated = EXCLUDED.last_updated`,
		lead.ID, string(resultJSON), string(result.Status), result.CreatedAt, result.LastUpdated,
	)
	if err != nil {
		return eris.Wrap(err, "store: postgres upsert match result")
	}

	// Rebuild the lead's slice of the index so professionals dropped by a
	// re-match do not keep a stale entry.
	_, err = tx.Exec(ctx, `DELETE FROM professional_leads WHERE lead_id = $1`, lead.ID)
	if err != nil {
		return eris.Wrap(err, "store: postgres clear index entries")
	}

	for _, entry := range indexEntries(lead, result) {
		entryCats, err := json.Marshal(entry.Categories)
		if err != nil {
			return eris.Wrap(err, "store: marshal index categories")
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO professional_leads (professional_id, lead_id, lead_name, lead_zip,
				categories, distance_miles, intent_score, matched_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ProfessionalID, entry.LeadID, entry.LeadName, entry.LeadZIP,
			string(entryCats), entry.DistanceMiles, entry.IntentScore, entry.MatchedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "store: postgres index entry for %s", entry.ProfessionalID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "store: postgres commit")
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.LeadRequest, *model.MatchResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, email, phone, zip, categories, project_type, project_details,
			budget_usd, timeline, looking_for_pro, intent_score, status, created_at
		 FROM leads WHERE id = $1`, id,
	)
	lead, err := scanPgLead(row)
	if err != nil {
		return nil, nil, err
	}

	var resultJSON string
	err = s.pool.QueryRow(ctx,
		`SELECT result FROM match_results WHERE lead_id = $1`, id,
	).Scan(&resultJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: postgres get match result")
	}

	var result model.MatchResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, nil, eris.Wrap(err, "store: unmarshal match result")
	}
	return lead, &result, nil
}

func (s *PostgresStore) LeadsForProfessional(ctx context.Context, professionalID string) ([]model.ProfessionalLead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT professional_id, lead_id, lead_name, lead_zip, categories,
			distance_miles, intent_score, matched_at
		 FROM professional_leads WHERE professional_id = $1
		 ORDER BY matched_at DESC, lead_id`, professionalID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: postgres leads for professional")
	}
	defer rows.Close()

	var out []model.ProfessionalLead
	for rows.Next() {
		var e model.ProfessionalLead
		var catsJSON string
		if err := rows.Scan(&e.ProfessionalID, &e.LeadID, &e.LeadName, &e.LeadZIP,
			&catsJSON, &e.DistanceMiles, &e.IntentScore, &e.MatchedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan index entry")
		}
		if err := json.Unmarshal([]byte(catsJSON), &e.Categories); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal index categories")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "store: postgres leads for professional iterate")
}

func (s *PostgresStore) LeadsByCustomer(ctx context.Context, email string) ([]model.LeadRequest, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, phone, zip, categories, project_type, project_details,
			budget_usd, timeline, looking_for_pro, intent_score, status, created_at
		 FROM leads WHERE email = $1 ORDER BY created_at DESC, id`, email,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: postgres leads by customer")
	}
	defer rows.Close()

	var out []model.LeadRequest
	for rows.Next() {
		lead, err := scanPgLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *lead)
	}
	return out, eris.Wrap(rows.Err(), "store: postgres leads by customer iterate")
}

func scanPgLead(row pgx.Row) (*model.LeadRequest, error) {
	var lead model.LeadRequest
	var phone, projectType, projectDetails, timeline sql.NullString
	var status, catsJSON string

	err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &phone, &lead.ZIP, &catsJSON,
		&projectType, &projectDetails, &lead.BudgetUSD, &timeline,
		&lead.IsLookingForPro, &lead.IntentScore, &status, &lead.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan lead")
	}

	lead.Phone = phone.String
	lead.ProjectType = projectType.String
	lead.ProjectDetails = projectDetails.String
	lead.Timeline = timeline.String
	lead.Status = model.LeadStatus(status)
	if err := json.Unmarshal([]byte(catsJSON), &lead.Categories); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal lead categories")
	}
	return &lead, nil
}
