package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/arbcore/arbot/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each venue's
// latest quote is stored at key "quote:{venue}" with fields "last", "bid",
// "ask", and "ts" (Unix nanosecond timestamp).
type QuoteCache struct {
	rdb *redis.Client
}

var _ domain.QuoteCache = (*QuoteCache)(nil)

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(venue string) string {
	return "quote:" + venue
}

// SetQuote stores the latest quote for a venue.
func (qc *QuoteCache) SetQuote(ctx context.Context, venue string, q domain.VenueQuote) error {
	fields := map[string]interface{}{
		"last": q.Last.String(),
		"bid":  q.Bid.String(),
		"ask":  q.Ask.String(),
		"ts":   strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
	}
	if err := qc.rdb.HSet(ctx, quoteKey(venue), fields).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", venue, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for a venue. It returns
// domain.ErrNotFound when no quote has been published.
func (qc *QuoteCache) GetQuote(ctx context.Context, venue string) (domain.VenueQuote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(venue)).Result()
	if err != nil {
		return domain.VenueQuote{}, fmt.Errorf("redis: get quote %s: %w", venue, err)
	}
	if len(vals) == 0 {
		return domain.VenueQuote{}, domain.ErrNotFound
	}

	var q domain.VenueQuote
	for field, dst := range map[string]*decimal.Decimal{
		"last": &q.Last,
		"bid":  &q.Bid,
		"ask":  &q.Ask,
	} {
		raw, ok := vals[field]
		if !ok {
			return domain.VenueQuote{}, domain.ErrNotFound
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.VenueQuote{}, fmt.Errorf("redis: parse quote %s field %s: %w", venue, field, err)
		}
		*dst = v
	}

	tsStr, ok := vals["ts"]
	if !ok {
		return domain.VenueQuote{}, domain.ErrNotFound
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return domain.VenueQuote{}, fmt.Errorf("redis: parse quote %s timestamp: %w", venue, err)
	}
	q.ObservedAt = time.Unix(0, tsNano)

	return q, nil
}
