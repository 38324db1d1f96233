package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of rows sent per COPY when the caller passes 0.
const DefaultBatchSize = 50000

// CopyBatches sends rows in chunks of batchSize (0 means DefaultBatchSize).
// It returns the rows copied before any failure.
func CopyBatches(ctx context.Context, q Querier, ident pgx.Identifier, columns []string, rows [][]any, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	log := zap.L().With(
		zap.String("component", "db.copy"),
		zap.String("table", ident.Sanitize()),
		zap.Int("total_rows", len(rows)),
	)

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		n, err := q.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows[i:end]))
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s (batch %d-%d)", ident.Sanitize(), i, end)
		}
		total += n
		log.Debug("batch loaded", zap.Int("batch_start", i), zap.Int("batch_end", end), zap.Int64("batch_rows", n))
	}
	return total, nil
}
