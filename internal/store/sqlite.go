package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/buildquote/leadmatch/internal/model"
)

// SQLiteStore implements LeadStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite lead store at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	email           TEXT NOT NULL,
	phone           TEXT,
	zip             TEXT NOT NULL,
	categories      TEXT NOT NULL,
	project_type    TEXT,
	project_details TEXT,
	budget_usd      REAL NOT NULL DEFAULT 0,
	timeline        TEXT,
	looking_for_pro INTEGER NOT NULL DEFAULT 0,
	intent_score    INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS match_results (
	lead_id      TEXT PRIMARY KEY REFERENCES leads(id),
	result       TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   DATETIME NOT NULL,
	last_updated DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS professional_leads (
	professional_id TEXT NOT NULL,
	lead_id         TEXT NOT NULL,
	lead_name       TEXT NOT NULL,
	lead_zip        TEXT NOT NULL,
	categories      TEXT NOT NULL,
	distance_miles  REAL NOT NULL,
	intent_score    INTEGER NOT NULL,
	matched_at      DATETIME NOT NULL,
	PRIMARY KEY (professional_id, lead_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_email ON leads(email);
CREATE INDEX IF NOT EXISTS idx_professional_leads_pro ON professional_leads(professional_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "store: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveMatch(ctx context.Context, lead *model.LeadRequest, result *model.MatchResult) error {
	catsJSON, err := json.Marshal(lead.Categories)
	if err != nil {
		return eris.Wrap(err, "store: marshal categories")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "store: marshal match result")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: sqlite begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO leads (id, name, email, phone, zip, categories, project_type, project_details,
			budget_usd, timeline, looking_for_pro, intent_score, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET intent_score = excluded.intent_score, status = excluded.status`,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.ZIP, string(catsJSON),
		lead.ProjectType, lead.ProjectDetails, lead.BudgetUSD, lead.Timeline,
		lead.IsLookingForPro, lead.IntentScore, string(lead.Status), lead.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "store: sqlite upsert lead")
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO match_results (lead_id, result, status, created_at, last_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (lead_id) DO UPDATE SET
			result = excluded.result, status = excluded.status, last_updated = excluded.last_updated`,
		lead.ID, string(resultJSON), string(result.Status), result.CreatedAt, result.LastUpdated,
	)
	if err != nil {
		return eris.Wrap(err, "store: sqlite upsert match result")
	}

	// Rebuild the lead's slice of the index so professionals dropped by a
	// re-match do not keep a stale entry.
	_, err = tx.ExecContext(ctx, `DELETE FROM professional_leads WHERE lead_id = ?`, lead.ID)
	if err != nil {
		return eris.Wrap(err, "store: sqlite clear index entries")
	}

	for _, entry := range indexEntries(lead, result) {
		entryCats, err := json.Marshal(entry.Categories)
		if err != nil {
			return eris.Wrap(err, "store: marshal index categories")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO professional_leads (professional_id, lead_id, lead_name, lead_zip,
				categories, distance_miles, intent_score, matched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ProfessionalID, entry.LeadID, entry.LeadName, entry.LeadZIP,
			string(entryCats), entry.DistanceMiles, entry.IntentScore, entry.MatchedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "store: sqlite index entry for %s", entry.ProfessionalID)
		}
	}

	return eris.Wrap(tx.Commit(), "store: sqlite commit")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.LeadRequest, *model.MatchResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, zip, categories, project_type, project_details,
			budget_usd, timeline, looking_for_pro, intent_score, status, created_at
		 FROM leads WHERE id = ?`, id,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, nil, err
	}

	var resultJSON string
	err = s.db.QueryRowContext(ctx,
		`SELECT result FROM match_results WHERE lead_id = ?`, id,
	).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return lead, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: sqlite get match result")
	}

	var result model.MatchResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return nil, nil, eris.Wrap(err, "store: unmarshal match result")
	}
	return lead, &result, nil
}

func (s *SQLiteStore) LeadsForProfessional(ctx context.Context, professionalID string) ([]model.ProfessionalLead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT professional_id, lead_id, lead_name, lead_zip, categories,
			distance_miles, intent_score, matched_at
		 FROM professional_leads WHERE professional_id = ?
		 ORDER BY matched_at DESC, lead_id`, professionalID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite leads for professional")
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
	return out, eris.Wrap(rows.Err(), "store: sqlite leads for professional iterate")
}

func (s *SQLiteStore) LeadsByCustomer(ctx context.Context, email string) ([]model.LeadRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, phone, zip, categories, project_type, project_details,
			budget_usd, timeline, looking_for_pro, intent_score, status, created_at
		 FROM leads WHERE email = ? ORDER BY created_at DESC, id`, email,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: sqlite leads by customer")
	}
	defer rows.Close()

	var out []model.LeadRequest
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *lead)
	}
	return out, eris.Wrap(rows.Err(), "store: sqlite leads by customer iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.LeadRequest, error) {
	var lead model.LeadRequest
	var phone, projectType, projectDetails, timeline sql.NullString
	var status, catsJSON string

	err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &phone, &lead.ZIP, &catsJSON,
		&projectType, &projectDetails, &lead.BudgetUSD, &timeline,
		&lead.IsLookingForPro, &lead.IntentScore, &status, &lead.CreatedAt,
	)
	if err == sql.ErrNoRows {
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
