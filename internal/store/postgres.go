package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/screener-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool, for deployments that share
// the cache across hosts.
type PostgresStore struct {
	pool    Pool
	now     func() time.Time
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, now: time.Now, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	entity    TEXT NOT NULL,
	key       TEXT NOT NULL,
	payload   TEXT NOT NULL,
	stored_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (entity, key)
);

CREATE TABLE IF NOT EXISTS screener_rows (
	screener   TEXT NOT NULL,
	ticker     TEXT NOT NULL,
	as_of      TEXT NOT NULL,
	company    TEXT,
	sector     TEXT,
	industry   TEXT,
	country    TEXT,
	pe         TEXT,
	market_cap TEXT,
	PRIMARY KEY (screener, ticker)
);

CREATE TABLE IF NOT EXISTS scan_runs (
	id          TEXT PRIMARY KEY,
	scanned     INTEGER NOT NULL,
	succeeded   INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_screener_rows_as_of ON screener_rows(as_of);
`

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

func (s *PostgresStore) Get(ctx context.Context, entity EntityType, key string) ([]byte, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload, stored_at FROM cache_entries WHERE entity = $1 AND key = $2`,
		string(entity), key,
	)

	var payload string
	var storedAt time.Time
	err := row.Scan(&payload, &storedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cache entry")
	}

	if s.now().Sub(storedAt) >= entity.TTL() {
		return nil, nil
	}
	return []byte(payload), nil
}

func (s *PostgresStore) GetStale(ctx context.Context, entity EntityType, key string) ([]byte, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT payload FROM cache_entries WHERE entity = $1 AND key = $2`,
		string(entity), key,
	)

	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get stale cache entry")
	}
	return []byte(payload), nil
}

func (s *PostgresStore) Put(ctx context.Context, entity EntityType, key string, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cache_entries (entity, key, payload, stored_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (entity, key) DO UPDATE SET payload = EXCLUDED.payload, stored_at = EXCLUDED.stored_at`,
		string(entity), key, string(payload), s.now().UTC(),
	)
	return eris.Wrap(err, "postgres: put cache entry")
}

func (s *PostgresStore) ReplaceScreenerRows(ctx context.Context, screener string, rows []model.ScreenerRow) error {
	if len(rows) == 0 {
		return nil
	}
	asOf := s.now().UTC().Format("2006-01-02")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace screener rows")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM screener_rows WHERE screener = $1`, screener,
	); err != nil {
		return eris.Wrap(err, "postgres: delete screener rows")
	}

	for _, r := range rows {
		if r.Ticker == "" {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO screener_rows (screener, ticker, as_of, company, sector, industry, country, pe, market_cap)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			screener, r.Ticker, asOf, r.Company, r.Sector, r.Industry, r.Country, r.PE, r.MarketCap,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert screener row %s", r.Ticker)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit screener rows")
}

func (s *PostgresStore) ScreenerRowsForDate(ctx context.Context, screener, onDate string) ([]model.ScreenerRow, error) {
	query := `SELECT screener, ticker, as_of, company, sector, industry, country, pe, market_cap
	          FROM screener_rows WHERE as_of = $1`
	args := []any{onDate}
	if screener != "" && screener != "all" {
		query += ` AND screener = $2`
		args = append(args, screener)
	}
	query += ` ORDER BY ticker`

	dbRows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query screener rows")
	}
	defer dbRows.Close()

	var rows []model.ScreenerRow
	seen := make(map[string]bool)
	for dbRows.Next() {
		var r model.ScreenerRow
		var company, sector, industry, country, pe, marketCap *string
		if err := dbRows.Scan(&r.Screener, &r.Ticker, &r.AsOf,
			&company, &sector, &industry, &country, &pe, &marketCap); err != nil {
			return nil, eris.Wrap(err, "postgres: scan screener row")
		}
		if seen[r.Ticker] {
			continue
		}
		seen[r.Ticker] = true
		r.Company = deref(company)
		r.Sector = deref(sector)
		r.Industry = deref(industry)
		r.Country = deref(country)
		r.PE = deref(pe)
		r.MarketCap = deref(marketCap)
		rows = append(rows, r)
	}
	return rows, eris.Wrap(dbRows.Err(), "postgres: iterate screener rows")
}

func (s *PostgresStore) SaveScanSummary(ctx context.Context, summary model.ScanSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scan_runs (id, scanned, succeeded, skipped, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET scanned = EXCLUDED.scanned, succeeded = EXCLUDED.succeeded,
		   skipped = EXCLUDED.skipped, finished_at = EXCLUDED.finished_at`,
		summary.ID, summary.Scanned, summary.Succeeded, summary.Skipped,
		summary.StartedAt.UTC(), summary.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: save scan summary")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
