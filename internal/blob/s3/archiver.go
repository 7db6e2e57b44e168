package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arbcore/arbot/internal/domain"
)

// archiveBatchSize bounds how many spread rows are serialized per object.
const archiveBatchSize = 10_000

// multipartThreshold is the serialized size above which the multipart
// uploader is used instead of a single PutObject.
const multipartThreshold = 8 * 1024 * 1024

// Uploader is the subset of Writer the archiver uses.
type Uploader interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, contentType string, partSize int64) error
}

var _ Uploader = (*Writer)(nil)

// Archiver periodically moves spread observations older than the retention
// window out of the primary store and into object storage as JSONL files.
// Rows are deleted from the store only after the batch containing them has
// been uploaded.
type Archiver struct {
	writer    Uploader
	store     domain.SpreadStore
	retention time.Duration
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewArchiver creates an Archiver that runs every interval and archives rows
// older than retention.
func NewArchiver(writer Uploader, store domain.SpreadStore, retention, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		store:     store,
		retention: retention,
		interval:  interval,
		batchSize: archiveBatchSize,
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

// Run executes archive cycles on a ticker until ctx is cancelled. A failed
// cycle is logged and retried on the next tick; it never stops the loop.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.runCycle(ctx); err != nil {
				a.logger.Error("archive cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runCycle archives everything older than the retention cutoff. Each batch is
// deleted from the store once its upload succeeds, bounded by the last row ID
// in the batch. Observation timestamps are not unique (one market update
// yields one row per counter-venue, all stamped alike), so a timestamp-based
// delete could remove rows past the batch boundary that were never uploaded.
func (a *Archiver) runCycle(ctx context.Context) error {
	cutoff := time.Now().Add(-a.retention)

	var batches, deleted int64
	for {
		obs, err := a.store.ListBefore(ctx, cutoff, a.batchSize)
		if err != nil {
			return fmt.Errorf("list batch: %w", err)
		}
		if len(obs) == 0 {
			break
		}

		if err := a.uploadBatch(ctx, obs, int(batches)); err != nil {
			return err
		}
		batches++

		n, err := a.store.DeleteThrough(ctx, obs[len(obs)-1].ID)
		if err != nil {
			return fmt.Errorf("delete archived rows: %w", err)
		}
		deleted += n

		if len(obs) < a.batchSize {
			break
		}
	}

	if batches > 0 {
		a.logger.Info("archive cycle complete",
			slog.Int64("batches", batches),
			slog.Int64("rows_deleted", deleted),
			slog.String("cutoff", cutoff.Format(time.RFC3339)),
		)
	}
	return nil
}

// uploadBatch serializes one batch to JSONL and uploads it.
func (a *Archiver) uploadBatch(ctx context.Context, obs []domain.SpreadObservation, seq int) error {
	buf, err := marshalJSONL(obs)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	path := archivePath(time.Now().UTC(), seq)
	if int64(len(buf)) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), "application/x-ndjson", minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("upload batch: %w", err)
	}

	a.logger.Info("uploaded spread archive",
		slog.String("path", path),
		slog.Int("rows", len(obs)),
	)
	return nil
}

// archivePath builds the S3 key for an archive file:
//
//	spreads/2025-01-02/150405.000000000-0.jsonl
func archivePath(at time.Time, seq int) string {
	return fmt.Sprintf("spreads/%s/%s-%d.jsonl",
		at.Format("2006-01-02"), at.Format("150405.000000000"), seq)
}

// marshalJSONL serializes the observations as newline-delimited JSON.
func marshalJSONL(obs []domain.SpreadObservation) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, o := range obs {
		if err := enc.Encode(o); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
