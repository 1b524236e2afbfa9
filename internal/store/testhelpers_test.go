package store

import (
	"time"

	"github.com/sells-group/screener-cli/internal/model"
)

func summaryFixture() model.ScanSummary {
	return model.ScanSummary{
		ID:         "run-1",
		Scanned:    503,
		Succeeded:  443,
		Skipped:    60,
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	}
}
