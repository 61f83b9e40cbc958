package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polysight/marketgate/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. Each row
// holds one normalized market as of its last poll; outcomes and tags are
// stored as JSONB.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const upsertSnapshotQuery = `
	INSERT INTO market_snapshots (
		id, slug, question, description, category,
		outcomes, volume, volume_24h, liquidity, end_date,
		resolved, creator, created_at, price_change_24h, sentiment_score,
		tags, source, original_id, condition_id, status, fetched_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		slug             = EXCLUDED.slug,
		question         = EXCLUDED.question,
		description      = EXCLUDED.description,
		category         = EXCLUDED.category,
		outcomes         = EXCLUDED.outcomes,
		volume           = EXCLUDED.volume,
		volume_24h       = EXCLUDED.volume_24h,
		liquidity        = EXCLUDED.liquidity,
		end_date         = EXCLUDED.end_date,
		resolved         = EXCLUDED.resolved,
		creator          = EXCLUDED.creator,
		created_at       = EXCLUDED.created_at,
		price_change_24h = EXCLUDED.price_change_24h,
		sentiment_score  = EXCLUDED.sentiment_score,
		tags             = EXCLUDED.tags,
		source           = EXCLUDED.source,
		original_id      = EXCLUDED.original_id,
		condition_id     = EXCLUDED.condition_id,
		status           = EXCLUDED.status,
		fetched_at       = NOW()`

// snapshotArgs flattens a market into the upsert parameter list.
func snapshotArgs(m *domain.Market) ([]any, error) {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("encode outcomes: %w", err)
	}
	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return []any{
		m.ID, m.Slug, m.Question, m.Description, string(m.Category),
		outcomes, m.Volume, m.Volume24h, m.Liquidity, m.EndDate,
		m.Resolved, m.Creator, m.CreatedAt, m.PriceChange24h, m.SentimentScore,
		tags, m.External.Source, m.External.OriginalID, m.External.ConditionID, m.External.Status,
	}, nil
}

// UpsertBatch inserts or updates multiple snapshots in one batch round trip.
func (s *SnapshotStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range markets {
		args, err := snapshotArgs(&markets[i])
		if err != nil {
			return fmt.Errorf("postgres: upsert snapshot %s: %w", markets[i].ID, err)
		}
		batch.Queue(upsertSnapshotQuery, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert snapshot batch item %d: %w", i, err)
		}
	}
	return nil
}

// Count returns the number of stored snapshots.
func (s *SnapshotStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM market_snapshots`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count snapshots: %w", err)
	}
	return n, nil
}
