package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/coverdesk/compare-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path cache operations.
var preparedStatements = map[string]string{
	"get_extraction":   `SELECT document_id, request_id, filename, carrier_name, document_type, payload, usage, created_at FROM extraction_cache WHERE fingerprint = $1`,
	"put_extraction":   `INSERT INTO extraction_cache (fingerprint, document_id, request_id, filename, carrier_name, document_type, payload, usage, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT (fingerprint) DO NOTHING`,
	"link_extraction":  `INSERT INTO request_extractions (request_id, document_id, fingerprint, filename, carrier_name, created_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (request_id, document_id) DO UPDATE SET fingerprint = $3, filename = $4, carrier_name = $5`,
	"list_extractions": `SELECT l.fingerprint, l.document_id, l.filename, l.carrier_name, c.document_type, c.payload, c.usage, l.created_at FROM request_extractions l JOIN extraction_cache c ON c.fingerprint = l.fingerprint WHERE l.request_id = $1 ORDER BY l.created_at`,
	"get_report":       `SELECT mode, report, generated_at FROM comparison_reports WHERE request_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extraction_cache (
	fingerprint   TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	request_id    TEXT,
	filename      TEXT NOT NULL,
	carrier_name  TEXT,
	document_type TEXT NOT NULL,
	payload       JSONB NOT NULL,
	usage         JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extraction_cache_request_id ON extraction_cache(request_id);
CREATE INDEX IF NOT EXISTS idx_extraction_cache_document_id ON extraction_cache(document_id);

CREATE TABLE IF NOT EXISTS request_extractions (
	request_id   TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	fingerprint  TEXT NOT NULL,
	filename     TEXT NOT NULL,
	carrier_name TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (request_id, document_id)
);

CREATE INDEX IF NOT EXISTS idx_request_extractions_fingerprint ON request_extractions(fingerprint);

CREATE TABLE IF NOT EXISTS comparison_reports (
	request_id   TEXT PRIMARY KEY,
	mode         TEXT NOT NULL,
	report       JSONB NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetExtraction(ctx context.Context, fingerprint string) (*model.ExtractionResult, error) {
	var (
		r           model.ExtractionResult
		payloadJSON []byte
		usageJSON   []byte
		requestID   *string
		carrier     *string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT document_id, request_id, filename, carrier_name, document_type, payload, usage, created_at
		 FROM extraction_cache WHERE fingerprint = $1`,
		fingerprint,
	).Scan(&r.DocumentID, &requestID, &r.Filename, &carrier, &r.Type, &payloadJSON, &usageJSON, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get extraction")
	}
	if requestID != nil {
		r.RequestID = *requestID
	}
	if carrier != nil {
		r.CarrierName = *carrier
	}
	if err := json.Unmarshal(payloadJSON, &r.Payload); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal payload")
	}
	if len(usageJSON) > 0 {
		if err := json.Unmarshal(usageJSON, &r.Usage); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal usage")
		}
	}
	r.Fingerprint = fingerprint
	r.Status = model.ExtractionStatusSuccess
	return &r, nil
}

func (s *PostgresStore) PutExtraction(ctx context.Context, result *model.ExtractionResult) error {
	payloadJSON, err := json.Marshal(result.Payload)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal payload")
	}
	usageJSON, err := json.Marshal(result.Usage)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal usage")
	}
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// First write wins: equal fingerprints carry identical payloads.
	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_cache (fingerprint, document_id, request_id, filename, carrier_name, document_type, payload, usage, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		result.Fingerprint, result.DocumentID, result.RequestID, result.Filename,
		result.CarrierName, string(result.Type), payloadJSON, usageJSON, createdAt,
	)
	return eris.Wrap(err, "postgres: put extraction")
}

// LinkExtraction associates a served extraction with its request. Runs on
// cache hits as well as fresh calls; without the link the request's
// extractions cannot be listed for replace or re-ranking.
func (s *PostgresStore) LinkExtraction(ctx context.Context, result *model.ExtractionResult) error {
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO request_extractions (request_id, document_id, fingerprint, filename, carrier_name, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (request_id, document_id) DO UPDATE SET fingerprint = $3, filename = $4, carrier_name = $5`,
		result.RequestID, result.DocumentID, result.Fingerprint,
		result.Filename, result.CarrierName, createdAt,
	)
	return eris.Wrap(err, "postgres: link extraction")
}

func (s *PostgresStore) ListExtractions(ctx context.Context, requestID string) ([]model.ExtractionResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.fingerprint, l.document_id, l.filename, l.carrier_name, c.document_type, c.payload, c.usage, l.created_at
		 FROM request_extractions l
		 JOIN extraction_cache c ON c.fingerprint = l.fingerprint
		 WHERE l.request_id = $1 ORDER BY l.created_at`,
		requestID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list extractions")
	}
	defer rows.Close()

	var results []model.ExtractionResult
	for rows.Next() {
		var (
			r           model.ExtractionResult
			payloadJSON []byte
			usageJSON   []byte
			carrier     *string
		)
		if err := rows.Scan(&r.Fingerprint, &r.DocumentID, &r.Filename, &carrier, &r.Type, &payloadJSON, &usageJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan extraction")
		}
		if carrier != nil {
			r.CarrierName = *carrier
		}
		if err := json.Unmarshal(payloadJSON, &r.Payload); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal payload")
		}
		if len(usageJSON) > 0 {
			if err := json.Unmarshal(usageJSON, &r.Usage); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal usage")
			}
		}
		r.RequestID = requestID
		r.Status = model.ExtractionStatusSuccess
		r.Cached = true
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "postgres: list extractions iterate")
}

func (s *PostgresStore) SaveReport(ctx context.Context, report *model.ComparisonReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report")
	}
	generatedAt := report.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO comparison_reports (request_id, mode, report, generated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (request_id) DO UPDATE SET mode = $2, report = $3, generated_at = $4`,
		report.RequestID, string(report.Mode), reportJSON, generatedAt,
	)
	return eris.Wrap(err, "postgres: save report")
}

func (s *PostgresStore) GetReport(ctx context.Context, requestID string) (*model.ComparisonReport, error) {
	var (
		mode        string
		reportJSON  []byte
		generatedAt time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT mode, report, generated_at FROM comparison_reports WHERE request_id = $1`,
		requestID,
	).Scan(&mode, &reportJSON, &generatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get report")
	}

	var report model.ComparisonReport
	if err := json.Unmarshal(reportJSON, &report); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report")
	}
	report.RequestID = requestID
	report.Mode = model.ComparisonMode(mode)
	report.GeneratedAt = generatedAt
	return &report, nil
}
