// FilePath: internal/importer/importer.go
package importer

import (
	"context"
	"math"
	"time"

	"github.com/aircast/hub/internal/ingest"
	"github.com/aircast/hub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// Importer periodically polls the external sensor network and feeds the
// batch into the ingestion coordinator. Readings inside a batch are
// processed sequentially by this single worker.
type Importer struct {
	feed        FeedClient
	coordinator *ingest.Coordinator
	watermarks  WatermarkStore
	interval    time.Duration
	utcToLocal  ingest.LocalTimeFunc
}

// New creates an Importer. utcToLocal may be nil, in which case local-time
// fields fall back to UTC.
func New(
	feed FeedClient,
	coordinator *ingest.Coordinator,
	watermarks WatermarkStore,
	interval time.Duration,
	utcToLocal ingest.LocalTimeFunc,
) *Importer {
	return &Importer{
		feed:        feed,
		coordinator: coordinator,
		watermarks:  watermarks,
		interval:    interval,
		utcToLocal:  utcToLocal,
	}
}

// Run polls the feed on the configured interval until the context is
// cancelled. An initial import runs immediately.
func (i *Importer) Run(ctx context.Context) {
	nuts.L.Infof("[Importer] Starting, polling every %v", i.interval)

	if err := i.RunOnce(ctx); err != nil {
		nuts.L.Errorf("[Importer] Import failed: %v", err)
	}

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			nuts.L.Infof("[Importer] Stopping")
			return
		case <-ticker.C:
			if err := i.RunOnce(ctx); err != nil {
				nuts.L.Errorf("[Importer] Import failed: %v", err)
			}
		}
	}
}

// RunOnce executes a single poll cycle: fetch, filter already-seen
// readings by the watermark, ingest the rest and advance the watermark to
// the newest successfully ingested reading.
func (i *Importer) RunOnce(ctx context.Context) error {
	readings, err := i.feed.FetchMeasurements(ctx)
	if err != nil {
		return err
	}

	watermark, err := i.watermarks.Get(ctx)
	if err != nil {
		nuts.L.Warnf("[Importer] Failed to read watermark, ingesting full batch: %v", err)
		watermark = 0
	}

	fresh := readings[:0:0]
	for _, r := range readings {
		if r.LastSeen > watermark {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		nuts.L.Infof("[Importer] Nothing new (fetched %d, watermark %d)", len(readings), watermark)
		return nil
	}

	result := i.coordinator.IngestBatch(ctx, fresh, i.utcToLocal)

	if next := newestIngested(fresh, result); next > watermark {
		if err := i.watermarks.Set(ctx, next); err != nil {
			nuts.L.Warnf("[Importer] Failed to advance watermark: %v", err)
		}
	}

	return result.Err()
}

// newestIngested returns the watermark candidate for a processed batch:
// the highest last-seen epoch among successful readings, capped below the
// oldest failed reading. Every failed reading stays above the watermark so
// the next poll retries it, even when a successful reading is newer.
func newestIngested(readings []models.BulkReading, result *ingest.BatchResult) int64 {
	failed := make(map[int64]bool, len(result.Failures))
	for _, f := range result.Failures {
		failed[f.DeviceIndex] = true
	}

	var newest int64
	oldestFailure := int64(math.MaxInt64)
	for _, r := range readings {
		if failed[r.DeviceIndex] {
			if r.LastSeen < oldestFailure {
				oldestFailure = r.LastSeen
			}
			continue
		}
		if r.LastSeen > newest {
			newest = r.LastSeen
		}
	}
	if newest >= oldestFailure {
		newest = oldestFailure - 1
	}
	return newest
}
