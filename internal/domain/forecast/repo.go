package forecast

import (
	"context"
)

// CaseHistory reads the observed daily case series, oldest first.
type CaseHistory interface {
	ListDaily(ctx context.Context) ([]Point, error)
}

// CaseHistoryWriter stores observed daily counts, replacing existing days.
type CaseHistoryWriter interface {
	UpsertDaily(ctx context.Context, points []Point) (int, error)
}

type CaseHistoryStore interface {
	CaseHistory
	CaseHistoryWriter
}
