package telemetry

import (
	"context"
	"database/sql"

	"github.com/catboybest/beatmap-mirror-gateway/pkg/mirror"
	"github.com/catboybest/beatmap-mirror-gateway/pkg/util"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"
	"google.golang.org/grpc/codes"
)

// PostgresStore is the production Store backing beatmap_mirror_requests
// (spec.md §6's schema), ported from the raw SQL in
// original_source/app/repositories/beatmap_mirror_requests.py onto
// database/sql + lib/pq.
type PostgresStore struct {
	db     *sql.DB
	config Config
}

// NewPostgresStore wraps an already-opened connection pool. Schema
// migration is a deployment concern and out of scope here; see
// createTableDDL for the table this store expects. Zero fields of cfg
// fall back to DefaultConfig's values.
func NewPostgresStore(db *sql.DB, cfg Config) *PostgresStore {
	return &PostgresStore{db: db, config: cfg.WithDefaults()}
}

// createTableDDL is the schema this store expects: spec.md §6's table
// plus the additive correlation_id column (see Record). It is kept as
// an unexported constant rather than executed automatically, so that
// schema ownership stays with the operator's migration tooling.
const createTableDDL = `
CREATE TABLE IF NOT EXISTS beatmap_mirror_requests (
    id                   bigserial PRIMARY KEY,
    request_url          text,
    api_key_id           text,
    correlation_id       text,
    mirror_name          text NOT NULL,
    resource             text NOT NULL,
    success              boolean NOT NULL,
    started_at           timestamptz NOT NULL,
    ended_at             timestamptz NOT NULL,
    response_status_code integer,
    response_size        integer NOT NULL DEFAULT 0,
    response_error       text
);
CREATE INDEX IF NOT EXISTS beatmap_mirror_requests_mirror_resource_started_at_idx
    ON beatmap_mirror_requests (mirror_name, resource, started_at);
`

func (s *PostgresStore) Create(ctx context.Context, record Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO beatmap_mirror_requests (
			request_url, api_key_id, correlation_id, mirror_name, resource, success,
			started_at, ended_at, response_status_code, response_size, response_error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.RequestURL,
		nullableString(record.APIKeyID),
		nullableString(record.CorrelationID),
		record.MirrorName,
		string(record.Resource),
		record.Success,
		record.StartedAt,
		record.EndedAt,
		record.ResponseStatusCode,
		record.ResponseSize,
		nullableString(record.ResponseError),
	)
	if err != nil {
		return util.StatusWrapWithCode(err, codes.Unavailable, "failed to insert beatmap_mirror_requests row")
	}
	return nil
}

// MirrorWeight re-expresses the two queries of
// original_source/app/repositories/beatmap_mirror_requests.py as a
// single round trip per statistic, using percentile_cont in place of
// the source's PERCENT_RANK window function - Postgres computes the
// same continuous percentile directly.
func (s *PostgresStore) MirrorWeight(ctx context.Context, mirrorName string, resource mirror.Resource) (int, error) {
	var p75Millis sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT percentile_cont(0.75) WITHIN GROUP (ORDER BY EXTRACT(EPOCH FROM (ended_at - started_at)) * 1000)
		FROM beatmap_mirror_requests
		WHERE started_at > NOW() - ($1 || ' hours')::interval
		AND mirror_name = $2
		AND resource = $3
		AND success = true`,
		s.config.WindowHours, mirrorName, string(resource),
	).Scan(&p75Millis)
	if err != nil {
		return 0, util.StatusWrapWithCode(err, codes.Unavailable, "failed to query p75 latency")
	}
	if !p75Millis.Valid {
		return s.config.InitialWeight, nil
	}

	var failureRate sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT AVG(CASE WHEN success THEN 0 ELSE 1 END)
		FROM beatmap_mirror_requests
		WHERE started_at > NOW() - ($1 || ' hours')::interval
		AND mirror_name = $2
		AND resource = $3`,
		s.config.WindowHours, mirrorName, string(resource),
	).Scan(&failureRate)
	if err != nil {
		return 0, util.StatusWrapWithCode(err, codes.Unavailable, "failed to query failure rate")
	}
	if !failureRate.Valid {
		return s.config.InitialWeight, nil
	}

	return deriveWeight(p75Millis.Float64, failureRate.Float64), nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
