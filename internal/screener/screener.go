// Package screener ingests third-party screener CSV exports and serves the
// stored rows back to batch analysis.
package screener

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/screener-cli/internal/model"
	"github.com/sells-group/screener-cli/internal/store"
)

// Service manages screener metadata rows.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService builds a screener service over the durable store.
func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// Sync decodes a screener CSV export and replaces the named screener's rows
// wholesale. Rows without a ticker are dropped; partially populated rows are
// kept as-is, missing fields stay empty and render downstream as "N/A".
func (s *Service) Sync(ctx context.Context, name string, r io.Reader) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, eris.New("screener: empty screener name")
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return 0, eris.Wrap(err, "screener: read export")
	}

	var rows []model.ScreenerRow
	if err := csvutil.Unmarshal(raw, &rows); err != nil {
		return 0, eris.Wrapf(err, "screener: parse export for %s", name)
	}

	asOf := s.now().UTC().Format("2006-01-02")
	kept := rows[:0]
	for _, row := range rows {
		row.Ticker = strings.ToUpper(strings.TrimSpace(row.Ticker))
		if row.Ticker == "" {
			continue
		}
		row.Screener = name
		row.AsOf = asOf
		kept = append(kept, row)
	}

	if err := s.store.ReplaceScreenerRows(ctx, name, kept); err != nil {
		return 0, eris.Wrapf(err, "screener: replace rows for %s", name)
	}
	zap.L().Info("screener: sync complete",
		zap.String("screener", name),
		zap.Int("rows", len(kept)),
		zap.String("as_of", asOf),
	)
	return len(kept), nil
}

// Rows returns the stored rows for a screener on a date. An empty date
// means today; the name "all" matches every screener.
func (s *Service) Rows(ctx context.Context, name, onDate string) ([]model.ScreenerRow, error) {
	if onDate == "" {
		onDate = s.now().UTC().Format("2006-01-02")
	}
	rows, err := s.store.ScreenerRowsForDate(ctx, name, onDate)
	if err != nil {
		return nil, eris.Wrapf(err, "screener: rows for %s on %s", name, onDate)
	}
	return rows, nil
}
