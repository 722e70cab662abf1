package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eventhub/internal/cache"
	"example.com/eventhub/internal/metrics"
	"example.com/eventhub/internal/models"
	"example.com/eventhub/internal/repositories"
)

// Favorite operation outcomes surfaced to handlers
var (
	ErrEventNotFound = errors.New("event not found")
	ErrUserNotFound  = errors.New("user not found")
	ErrAlreadySaved  = errors.New("event already saved by user")
)

// listCacheTTL is how long a cached listing page stays valid. Short on
// purpose: the worker inserts new events continuously.
const listCacheTTL = 30 * time.Second

// eventStore is the storage boundary for event reads
type eventStore interface {
	List(ctx context.Context, filters repositories.EventFilters, sortBy, sortOrder string, page, perPage int) ([]models.Event, int64, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// favoriteStore is the storage boundary for favorites
type favoriteStore interface {
	Create(ctx context.Context, favorite *models.Favorite) error
	ListByUser(ctx context.Context, userID uint) ([]models.Favorite, error)
}

// pageCache is the listing cache boundary
type pageCache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// PaginatedEvents is a page of events plus pagination metadata
type PaginatedEvents struct {
	Events     []models.Event `json:"events"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	TotalPages int            `json:"total_pages"`
	HasNext    bool           `json:"has_next"`
	HasPrev    bool           `json:"has_prev"`
}

// EventService serves event listings and favorites
type EventService struct {
	events    eventStore
	favorites favoriteStore
	users     *UserService
	cache     pageCache
	metrics   *metrics.Metrics
}

// NewEventService creates a new event service
func NewEventService(
	events eventStore,
	favorites favoriteStore,
	users *UserService,
	pageCache pageCache,
	metricsCollector *metrics.Metrics,
) *EventService {
	return &EventService{
		events:    events,
		favorites: favorites,
		users:     users,
		cache:     pageCache,
		metrics:   metricsCollector,
	}
}

// filterFingerprint keys a listing page by its full query shape
func filterFingerprint(filters repositories.EventFilters, sortBy, sortOrder string) string {
	from, to := "", ""
	if filters.StartDateFrom != nil {
		from = filters.StartDateFrom.Format(time.RFC3339)
	}
	if filters.StartDateTo != nil {
		to = filters.StartDateTo.Format(time.RFC3339)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s",
		filters.Name, filters.City, filters.Country, filters.VenueName,
		from, to, filters.Search, sortBy, sortOrder)
}

// ListEvents returns a filtered, sorted page of events. Pages are served
// from the redis cache when fresh.
func (s *EventService) ListEvents(
	ctx context.Context,
	filters repositories.EventFilters,
	sortBy, sortOrder string,
	page, perPage int,
) (*PaginatedEvents, error) {
	key := cache.EventPageKey(filterFingerprint(filters, sortBy, sortOrder), page, perPage)

	var cached PaginatedEvents
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.IncrementCounter(metrics.EventsListCacheHits)
			return &cached, nil
		}
		s.metrics.IncrementCounter(metrics.EventsListCacheMisses)
	}

	events, total, err := s.events.List(ctx, filters, sortBy, sortOrder, page, perPage)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	result := &PaginatedEvents{
		Events:     events,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, listCacheTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to cache event page")
		}
	}

	return result, nil
}

// SaveFavorite records an event as a favorite of the user. The existence
// checks are courtesy lookups for precise error reporting; the composite
// unique index is what actually prevents double saves.
func (s *EventService) SaveFavorite(ctx context.Context, userID uint, eventID string) (*models.Favorite, error) {
	exists, err := s.events.Exists(ctx, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to check event existence")
	}
	if !exists {
		return nil, ErrEventNotFound
	}

	favorite := &models.Favorite{
		ID:      uuid.New(),
		UserID:  userID,
		EventID: eventID,
	}

	err = s.favorites.Create(ctx, favorite)
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			s.metrics.IncrementCounter(metrics.FavoritesDuplicate)
			return nil, ErrAlreadySaved
		}
		return nil, errors.Wrap(err, "failed to save favorite")
	}

	s.metrics.IncrementCounter(metrics.FavoritesSaved)
	log.Info().
		Uint("user_id", userID).
		Str("event_id", eventID).
		Msg("Event saved as favorite")

	return favorite, nil
}

// ListFavorites returns all favorites of a user
func (s *EventService) ListFavorites(ctx context.Context, userID uint) ([]models.Favorite, error) {
	if !s.users.Exists(ctx, userID) {
		return nil, ErrUserNotFound
	}

	favorites, err := s.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list favorites")
	}
	return favorites, nil
}
