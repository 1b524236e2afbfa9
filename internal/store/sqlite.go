package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/screener-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// SetNow replaces the store's clock. Tests use it to age entries past
// their TTL without sleeping.
func (s *SQLiteStore) SetNow(now func() time.Time) {
	s.now = now
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
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	entity    TEXT NOT NULL,
	key       TEXT NOT NULL,
	payload   TEXT NOT NULL,
	stored_at TEXT NOT NULL,
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
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_screener_rows_as_of ON screener_rows(as_of);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, entity EntityType, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM cache_entries WHERE entity = ? AND key = ?`,
		string(entity), key,
	)

	var payload, storedAt string
	err := row.Scan(&payload, &storedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cache entry")
	}

	ts, err := time.Parse(time.RFC3339Nano, storedAt)
	if err != nil {
		// Unparseable timestamp reads as a miss; the next put repairs it.
		return nil, nil
	}
	if s.now().Sub(ts) >= entity.TTL() {
		return nil, nil
	}
	return []byte(payload), nil
}

func (s *SQLiteStore) GetStale(ctx context.Context, entity EntityType, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM cache_entries WHERE entity = ? AND key = ?`,
		string(entity), key,
	)

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get stale cache entry")
	}
	return []byte(payload), nil
}

func (s *SQLiteStore) Put(ctx context.Context, entity EntityType, key string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (entity, key, payload, stored_at) VALUES (?, ?, ?, ?)`,
		string(entity), key, string(payload), s.now().UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrap(err, "sqlite: put cache entry")
}

func (s *SQLiteStore) ReplaceScreenerRows(ctx context.Context, screener string, rows []model.ScreenerRow) error {
	if len(rows) == 0 {
		return nil
	}
	asOf := s.now().UTC().Format("2006-01-02")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace screener rows")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM screener_rows WHERE screener = ?`, screener,
	); err != nil {
		return eris.Wrap(err, "sqlite: delete screener rows")
	}

	for _, r := range rows {
		if r.Ticker == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO screener_rows (screener, ticker, as_of, company, sector, industry, country, pe, market_cap)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			screener, r.Ticker, asOf, r.Company, r.Sector, r.Industry, r.Country, r.PE, r.MarketCap,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert screener row %s", r.Ticker)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit screener rows")
}

func (s *SQLiteStore) ScreenerRowsForDate(ctx context.Context, screener, onDate string) ([]model.ScreenerRow, error) {
	query := `SELECT screener, ticker, as_of, company, sector, industry, country, pe, market_cap
	          FROM screener_rows WHERE as_of = ?`
	args := []any{onDate}
	if screener != "" && screener != "all" {
		query += ` AND screener = ?`
		args = append(args, screener)
	}
	query += ` ORDER BY ticker`

	dbRows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query screener rows")
	}
	defer dbRows.Close()

	var rows []model.ScreenerRow
	seen := make(map[string]bool)
	for dbRows.Next() {
		var r model.ScreenerRow
		var company, sector, industry, country, pe, marketCap sql.NullString
		if err := dbRows.Scan(&r.Screener, &r.Ticker, &r.AsOf,
			&company, &sector, &industry, &country, &pe, &marketCap); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan screener row")
		}
		if seen[r.Ticker] {
			continue
		}
		seen[r.Ticker] = true
		r.Company = company.String
		r.Sector = sector.String
		r.Industry = industry.String
		r.Country = country.String
		r.PE = pe.String
		r.MarketCap = marketCap.String
		rows = append(rows, r)
	}
	return rows, eris.Wrap(dbRows.Err(), "sqlite: iterate screener rows")
}

func (s *SQLiteStore) SaveScanSummary(ctx context.Context, summary model.ScanSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scan_runs (id, scanned, succeeded, skipped, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		summary.ID, summary.Scanned, summary.Succeeded, summary.Skipped,
		summary.StartedAt.UTC().Format(time.RFC3339Nano),
		summary.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	return eris.Wrap(err, "sqlite: save scan summary")
}
