package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/coverdesk/compare-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for local
// and single-operator use; the schema mirrors the Postgres one with TEXT
// columns for JSON.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_cache (
	fingerprint   TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	request_id    TEXT,
	filename      TEXT NOT NULL,
	carrier_name  TEXT,
	document_type TEXT NOT NULL,
	payload       TEXT NOT NULL,
	usage         TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_extraction_cache_request_id ON extraction_cache(request_id);
CREATE INDEX IF NOT EXISTS idx_extraction_cache_document_id ON extraction_cache(document_id);

CREATE TABLE IF NOT EXISTS request_extractions (
	request_id   TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	filename     TEXT NOT NULL,
	carrier_name TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (request_id, document_id)
);

CREATE INDEX IF NOT EXISTS idx_request_extractions_fingerprint ON request_extractions(fingerprint);

CREATE TABLE IF NOT EXISTS comparison_reports (
	request_id   TEXT PRIMARY KEY,
	mode         TEXT NOT NULL,
	report       TEXT NOT NULL,
	generated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetExtraction(ctx context.Context, fingerprint string) (*model.ExtractionResult, error) {
	var (
		r           model.ExtractionResult
		payloadJSON string
		usageJSON   sql.NullString
		requestID   sql.NullString
		carrier     sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, request_id, filename, carrier_name, document_type, payload, usage, created_at
		 FROM extraction_cache WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&r.DocumentID, &requestID, &r.Filename, &carrier, &r.Type, &payloadJSON, &usageJSON, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get extraction")
	}
	r.RequestID = requestID.String
	r.CarrierName = carrier.String
	if err := json.Unmarshal([]byte(payloadJSON), &r.Payload); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal payload")
	}
	if usageJSON.Valid && usageJSON.String != "" {
		if err := json.Unmarshal([]byte(usageJSON.String), &r.Usage); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal usage")
		}
	}
	r.Fingerprint = fingerprint
	r.Status = model.ExtractionStatusSuccess
	return &r, nil
}

func (s *SQLiteStore) PutExtraction(ctx context.Context, result *model.ExtractionResult) error {
	payloadJSON, err := json.Marshal(result.Payload)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal payload")
	}
	usageJSON, err := json.Marshal(result.Usage)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal usage")
	}
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_cache (fingerprint, document_id, request_id, filename, carrier_name, document_type, payload, usage, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		result.Fingerprint, result.DocumentID, result.RequestID, result.Filename,
		result.CarrierName, string(result.Type), string(payloadJSON), string(usageJSON), createdAt,
	)
	return eris.Wrap(err, "sqlite: put extraction")
}

// LinkExtraction associates a served extraction with its request. Runs on
// cache hits as well as fresh calls; without the link the request's
// extractions cannot be listed for replace or re-ranking.
func (s *SQLiteStore) LinkExtraction(ctx context.Context, result *model.ExtractionResult) error {
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO request_extractions (request_id, document_id, fingerprint, filename, carrier_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (request_id, document_id) DO UPDATE SET fingerprint = excluded.fingerprint, filename = excluded.filename, carrier_name = excluded.carrier_name`,
		result.RequestID, result.DocumentID, result.Fingerprint,
		result.Filename, result.CarrierName, createdAt,
	)
	return eris.Wrap(err, "sqlite: link extraction")
}

func (s *SQLiteStore) ListExtractions(ctx context.Context, requestID string) ([]model.ExtractionResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.fingerprint, l.document_id, l.filename, l.carrier_name, c.document_type, c.payload, c.usage, l.created_at
		 FROM request_extractions l
		 JOIN extraction_cache c ON c.fingerprint = l.fingerprint
		 WHERE l.request_id = ? ORDER BY l.created_at`,
		requestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list extractions")
	}
	defer rows.Close()

	var results []model.ExtractionResult
	for rows.Next() {
		var (
			r           model.ExtractionResult
			payloadJSON string
			usageJSON   sql.NullString
			carrier     sql.NullString
		)
		if err := rows.Scan(&r.Fingerprint, &r.DocumentID, &r.Filename, &carrier, &r.Type, &payloadJSON, &usageJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan extraction")
		}
		r.CarrierName = carrier.String
		if err := json.Unmarshal([]byte(payloadJSON), &r.Payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal payload")
		}
		if usageJSON.Valid && usageJSON.String != "" {
			if err := json.Unmarshal([]byte(usageJSON.String), &r.Usage); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal usage")
			}
		}
		r.RequestID = requestID
		r.Status = model.ExtractionStatusSuccess
		r.Cached = true
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list extractions iterate")
}

func (s *SQLiteStore) SaveReport(ctx context.Context, report *model.ComparisonReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report")
	}
	generatedAt := report.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comparison_reports (request_id, mode, report, generated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (request_id) DO UPDATE SET mode = excluded.mode, report = excluded.report, generated_at = excluded.generated_at`,
		report.RequestID, string(report.Mode), string(reportJSON), generatedAt,
	)
	return eris.Wrap(err, "sqlite: save report")
}

func (s *SQLiteStore) GetReport(ctx context.Context, requestID string) (*model.ComparisonReport, error) {
	var (
		mode        string
		reportJSON  string
		generatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT mode, report, generated_at FROM comparison_reports WHERE request_id = ?`,
		requestID,
	).Scan(&mode, &reportJSON, &generatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get report")
	}

	var report model.ComparisonReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report")
	}
	report.RequestID = requestID
	report.Mode = model.ComparisonMode(mode)
	report.GeneratedAt = generatedAt
	return &report, nil
}
