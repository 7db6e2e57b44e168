package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// SpreadStore persists pairwise spread observations in the spreads table.
type SpreadStore struct {
	client *Client
}

var _ domain.SpreadStore = (*SpreadStore)(nil)

// NewSpreadStore creates a SpreadStore backed by the given client.
func NewSpreadStore(client *Client) *SpreadStore {
	return &SpreadStore{client: client}
}

const insertSpreadSQL = `
	INSERT INTO spreads (
		observed_at, venue_a, venue_b,
		last_spread, last_spread_rel,
		ask_bid_spread_ab, ask_bid_spread_ab_rel,
		ask_bid_spread_ba, ask_bid_spread_ba_rel,
		last_a, bid_a, ask_a, last_b, bid_b, ask_b
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

// Append inserts the observations in a single batch.
func (s *SpreadStore) Append(ctx context.Context, obs []domain.SpreadObservation) error {
	if len(obs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range obs {
		batch.Queue(insertSpreadSQL,
			o.ObservedAt, o.VenueA, o.VenueB,
			o.LastSpread.String(), o.LastSpreadRel.String(),
			o.AskBidSpreadAB.String(), o.AskBidSpreadABRel.String(),
			o.AskBidSpreadBA.String(), o.AskBidSpreadBARel.String(),
			o.LastA.String(), o.BidA.String(), o.AskA.String(),
			o.LastB.String(), o.BidB.String(), o.AskB.String(),
		)
	}

	results := s.client.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := range obs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: insert spread %d/%d: %w", i+1, len(obs), err)
		}
	}
	return nil
}

const listBeforeSQL = `
	SELECT
		id, observed_at, venue_a, venue_b,
		last_spread::text, last_spread_rel::text,
		ask_bid_spread_ab::text, ask_bid_spread_ab_rel::text,
		ask_bid_spread_ba::text, ask_bid_spread_ba_rel::text,
		last_a::text, bid_a::text, ask_a::text,
		last_b::text, bid_b::text, ask_b::text
	FROM spreads
	WHERE observed_at < $1
	ORDER BY observed_at ASC, id ASC
	LIMIT $2`

// ListBefore returns up to limit observations older than cutoff, oldest first.
func (s *SpreadStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.SpreadObservation, error) {
	rows, err := s.client.pool.Query(ctx, listBeforeSQL, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list spreads: %w", err)
	}
	defer rows.Close()

	var out []domain.SpreadObservation
	for rows.Next() {
		var (
			o domain.SpreadObservation
			d [12]string
		)
		err := rows.Scan(
			&o.ID, &o.ObservedAt, &o.VenueA, &o.VenueB,
			&d[0], &d[1], &d[2], &d[3], &d[4], &d[5],
			&d[6], &d[7], &d[8], &d[9], &d[10], &d[11],
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan spread row: %w", err)
		}

		targets := []*decimal.Decimal{
			&o.LastSpread, &o.LastSpreadRel,
			&o.AskBidSpreadAB, &o.AskBidSpreadABRel,
			&o.AskBidSpreadBA, &o.AskBidSpreadBARel,
			&o.LastA, &o.BidA, &o.AskA, &o.LastB, &o.BidB, &o.AskB,
		}
		for i, t := range targets {
			v, err := decimal.NewFromString(d[i])
			if err != nil {
				return nil, fmt.Errorf("postgres: parse spread column: %w", err)
			}
			*t = v
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate spread rows: %w", err)
	}
	return out, nil
}

// DeleteThrough removes observations with ID <= id.
func (s *SpreadStore) DeleteThrough(ctx context.Context, id int64) (int64, error) {
	tag, err := s.client.pool.Exec(ctx, "DELETE FROM spreads WHERE id <= $1", id)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete spreads: %w", err)
	}
	return tag.RowsAffected(), nil
}
