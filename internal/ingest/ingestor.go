package ingest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eventhub/config"
	"example.com/eventhub/internal/metrics"
	"example.com/eventhub/internal/models"
	"example.com/eventhub/internal/repositories"
	"example.com/eventhub/internal/ticketmaster"
	"example.com/eventhub/internal/tracing"
)

// startDateLayout is the provider's event start timestamp format
const startDateLayout = "2006-01-02T15:04:05Z"

// eventWriter is the storage boundary the ingestor needs
type eventWriter interface {
	Create(ctx context.Context, event *models.Event) error
	RecentIDs(ctx context.Context, since time.Time) (map[string]struct{}, error)
}

// provider is the external events-discovery boundary
type provider interface {
	SearchEvents(ctx context.Context, keyword string, size int) ([]ticketmaster.RawEvent, error)
}

// Indexer pushes ingested events into the search index
type Indexer interface {
	IndexEvent(ctx context.Context, event *models.Event) error
}

// Notifier announces ingested events downstream
type Notifier interface {
	PublishEventIngested(ctx context.Context, event *models.Event) error
}

// Ingestor pulls events from the discovery provider and merges them into
// storage exactly once per external id. Indexing and notification are
// best-effort side effects that never fail a record.
type Ingestor struct {
	cfg      config.IngestConfig
	events   eventWriter
	provider provider
	seen     *SeenCache
	indexer  Indexer  // may be nil
	notifier Notifier // may be nil
	metrics  *metrics.Metrics
	tracer   tracing.Tracer
}

// NewIngestor creates a new event ingestor
func NewIngestor(
	cfg config.IngestConfig,
	events eventWriter,
	discoveryClient provider,
	seen *SeenCache,
	searchIndexer Indexer,
	busNotifier Notifier,
	metricsCollector *metrics.Metrics,
	tracer tracing.Tracer,
) *Ingestor {
	return &Ingestor{
		cfg:      cfg,
		events:   events,
		provider: discoveryClient,
		seen:     seen,
		indexer:  searchIndexer,
		notifier: busNotifier,
		metrics:  metricsCollector,
		tracer:   tracer,
	}
}

// RunTick executes one ingestion pass. Partially-ingested records stay
// committed on failure; the next tick retries naturally since ingestion is
// idempotent per id.
func (i *Ingestor) RunTick(ctx context.Context) error {
	txn := i.tracer.StartTransaction("ingest-tick")
	defer i.tracer.EndTransaction(txn)

	start := time.Now()

	// Storage-side freshness guard, covers cache resets across restarts
	span := i.tracer.StartSpan("recent-ids", txn)
	recent, err := i.events.RecentIDs(ctx, start.Add(-i.cfg.StorageWindow))
	span.End()
	if err != nil {
		i.metrics.IncrementCounter(metrics.IngestTicksFailed)
		i.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to load recent event ids")
	}

	var added, duplicate, skipped int64
	for _, keyword := range i.cfg.Keywords {
		fetchSpan := i.tracer.StartSpan("fetch-keyword", txn)
		records, err := i.provider.SearchEvents(ctx, keyword, i.cfg.PageSize)
		fetchSpan.End()
		if err != nil {
			// Provider failure aborts the remainder of the tick
			i.metrics.IncrementCounter(metrics.IngestTicksFailed)
			i.tracer.RecordError(txn, err)
			log.Error().Err(err).Str("keyword", keyword).Msg("Provider query failed, aborting tick")
			return errors.Wrapf(err, "provider query failed for keyword %q", keyword)
		}

		for idx := range records {
			outcome, err := i.processRecord(ctx, &records[idx], recent)
			if err != nil {
				i.metrics.IncrementCounter(metrics.IngestTicksFailed)
				i.tracer.RecordError(txn, err)
				log.Error().Err(err).Str("keyword", keyword).Msg("Storage failure, aborting tick")
				return err
			}
			switch outcome {
			case outcomeAdded:
				added++
			case outcomeDuplicate:
				duplicate++
			case outcomeSkipped:
				skipped++
			}
		}
	}

	i.metrics.AddToCounter(metrics.IngestEventsAdded, added)
	i.metrics.AddToCounter(metrics.IngestEventsDuplicate, duplicate)
	i.metrics.AddToCounter(metrics.IngestEventsSkipped, skipped)
	i.metrics.IncrementCounter(metrics.IngestTicksCompleted)

	log.Info().
		Int64("added", added).
		Int64("duplicate", duplicate).
		Int64("skipped", skipped).
		Dur("elapsed", time.Since(start)).
		Msg("Ingestion tick completed")

	return nil
}

type recordOutcome int

const (
	outcomeAdded recordOutcome = iota
	outcomeDuplicate
	outcomeSkipped
)

// processRecord merges a single provider record. A returned error aborts
// the tick; per-record problems are contained as outcomeSkipped.
func (i *Ingestor) processRecord(
	ctx context.Context,
	record *ticketmaster.RawEvent,
	recent map[string]struct{},
) (recordOutcome, error) {
	if record.ID == "" {
		log.Debug().Str("name", record.Name).Msg("Skipping event without id")
		return outcomeSkipped, nil
	}

	if _, ok := recent[record.ID]; ok {
		return outcomeSkipped, nil
	}
	if i.seen.Seen(record.ID) {
		return outcomeSkipped, nil
	}

	if record.Name == "" {
		log.Warn().Str("event_id", record.ID).Msg("Skipping event with missing name")
		return outcomeSkipped, nil
	}

	event := normalize(record)
	err := i.events.Create(ctx, event)
	switch {
	case err == nil:
		i.seen.Mark(record.ID)
		log.Info().Str("event_id", event.ID).Str("name", event.Name).Msg("Added event")
		i.sideEffects(ctx, event)
		return outcomeAdded, nil

	case errors.Is(err, repositories.ErrDuplicateKey):
		// Concurrently inserted elsewhere - success-equivalent
		i.seen.Mark(record.ID)
		recent[record.ID] = struct{}{}
		log.Debug().Str("event_id", record.ID).Msg("Event already stored, skipping")
		return outcomeDuplicate, nil

	default:
		return outcomeSkipped, errors.Wrapf(err, "failed to insert event %s", record.ID)
	}
}

// normalize converts a provider record into a stored event. Missing venue
// fields default to empty strings; a malformed start date is stored as
// absent rather than failing the record.
func normalize(record *ticketmaster.RawEvent) *models.Event {
	venue := record.Venue()

	var startDate *time.Time
	if raw := record.Dates.Start.DateTime; raw != "" {
		if parsed, err := time.Parse(startDateLayout, raw); err == nil {
			startDate = &parsed
		} else {
			log.Debug().Str("event_id", record.ID).Str("date", raw).Msg("Unparseable start date, storing as absent")
		}
	}

	return &models.Event{
		ID:          record.ID,
		Name:        record.Name,
		Description: record.Description,
		StartDate:   startDate,
		VenueName:   venue.Name,
		City:        venue.City.Name,
		Country:     venue.Country.Name,
		URL:         record.URL,
	}
}

// sideEffects indexes and announces a newly stored event. Failures are
// logged and counted but never propagate.
func (i *Ingestor) sideEffects(ctx context.Context, event *models.Event) {
	if i.indexer != nil {
		if err := i.indexer.IndexEvent(ctx, event); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to index event")
		}
	}
	if i.notifier != nil {
		if err := i.notifier.PublishEventIngested(ctx, event); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to publish event notification")
		}
	}
}
