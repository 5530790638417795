package report

import (
	"context"

	"andvaranaut/internal/storage"
)

// StatsExporter is the outbound port for the monthly report. Implementations
// append one row per month of aggregates.
type StatsExporter interface {
	ExportMonthlyStats(ctx context.Context, username string, stats []storage.MonthlyStat) error
}
