package forecast

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edforecast/edforecast/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type caseHistoryPG struct{ pool *pgxpool.Pool }

// NewCaseHistoryPG reads and writes the flu_case_daily table.
func NewCaseHistoryPG(pool *pgxpool.Pool) CaseHistoryStore { return &caseHistoryPG{pool: pool} }

func (r *caseHistoryPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *caseHistoryPG) ListDaily(ctx context.Context) ([]Point, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT day, cases FROM flu_case_daily ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("query flu_case_daily: %w", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var p Point
		var cases int64
		if err := rows.Scan(&p.Date, &cases); err != nil {
			return nil, fmt.Errorf("scan flu_case_daily: %w", err)
		}
		p.Cases = float64(cases)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrNoHistory
	}
	return points, nil
}

func (r *caseHistoryPG) UpsertDaily(ctx context.Context, points []Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO flu_case_daily (day, cases)
			VALUES ($1, $2)
			ON CONFLICT (day) DO UPDATE SET
				cases = EXCLUDED.cases,
				updated_at = NOW()`,
			p.Date, int64(math.Round(p.Cases)))
	}

	br := r.conn(ctx).SendBatch(ctx, batch)
	defer br.Close()
	for i := range points {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("upsert %s: %w", points[i].Date.Format(dateLayout), err)
		}
	}
	return len(points), nil
}
