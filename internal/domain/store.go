package domain

import (
	"context"
	"io"
	"time"
)

// SpreadStore is the append-only log of pairwise spread observations written
// by the monitoring mode. Implemented by the postgres store.
type SpreadStore interface {
	// Append inserts the given observations. The log is append-only; rows
	// are never updated.
	Append(ctx context.Context, obs []SpreadObservation) error
	// ListBefore returns up to limit observations older than cutoff, oldest
	// first, with IDs populated. Used by the archiver.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]SpreadObservation, error)
	// DeleteThrough removes observations with ID <= id and returns the
	// number of rows deleted. Timestamps are not unique across rows, so the
	// archiver bounds deletion by the last ID it has archived.
	DeleteThrough(ctx context.Context, id int64) (int64, error)
}

// QuoteCache holds the most recent quote per venue. Implemented by the redis
// cache; read by operators and dashboards, never by the decision loop.
type QuoteCache interface {
	SetQuote(ctx context.Context, venue string, q VenueQuote) error
	// GetQuote returns ErrNotFound when no quote has been published for venue.
	GetQuote(ctx context.Context, venue string) (VenueQuote, error)
}

// BlobWriter uploads an object to blob storage. Implemented by the S3 client.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
