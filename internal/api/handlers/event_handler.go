package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/eventhub/internal/api/middleware"
	"example.com/eventhub/internal/models"
	"example.com/eventhub/internal/repositories"
	"example.com/eventhub/internal/services"
)

// EventLister is the listing/favorites boundary the handler consumes
type EventLister interface {
	ListEvents(ctx context.Context, filters repositories.EventFilters, sortBy, sortOrder string, page, perPage int) (*services.PaginatedEvents, error)
	SaveFavorite(ctx context.Context, userID uint, eventID string) (*models.Favorite, error)
	ListFavorites(ctx context.Context, userID uint) ([]models.Favorite, error)
}

// EventSearcher is the free-text search boundary. Nil when Elasticsearch
// is not configured.
type EventSearcher interface {
	SearchEvents(ctx context.Context, query string, size int) ([]map[string]interface{}, error)
}

// EventHandler handles event-related HTTP requests
type EventHandler struct {
	events   EventLister
	searcher EventSearcher
	auth     middleware.Authenticator
}

// NewEventHandler creates a new event handler
func NewEventHandler(events EventLister, searcher EventSearcher, authenticator middleware.Authenticator) *EventHandler {
	return &EventHandler{
		events:   events,
		searcher: searcher,
		auth:     authenticator,
	}
}

// parseDate accepts RFC3339 timestamps or plain dates
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errors.Errorf("unparseable date %q", raw)
}

// HandleListEvents serves the filtered, paginated event listing
func (h *EventHandler) HandleListEvents(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a positive integer"})
		return
	}

	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if err != nil || perPage < 1 || perPage > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "per_page must be between 1 and 100"})
		return
	}

	sortOrder := c.DefaultQuery("sort_order", "asc")
	if sortOrder != "asc" && sortOrder != "desc" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort_order must be asc or desc"})
		return
	}

	from, err := parseDate(c.Query("start_date_from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	to, err := parseDate(c.Query("start_date_to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filters := repositories.EventFilters{
		Name:          c.Query("name"),
		City:          c.Query("city"),
		Country:       c.Query("country"),
		VenueName:     c.Query("venue_name"),
		StartDateFrom: from,
		StartDateTo:   to,
		Search:        c.Query("search"),
	}

	result, err := h.events.ListEvents(c.Request.Context(), filters,
		c.DefaultQuery("sort_by", "start_date"), sortOrder, page, perPage)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch events"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleSaveFavorite saves an event as the authenticated user's favorite
func (h *EventHandler) HandleSaveFavorite(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	eventID := c.Param("id")
	favorite, err := h.events.SaveFavorite(c.Request.Context(), user.ID, eventID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEventNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		case errors.Is(err, services.ErrAlreadySaved):
			c.JSON(http.StatusBadRequest, gin.H{"error": "event already saved by user"})
		default:
			log.Error().Err(err).Str("event_id", eventID).Msg("Failed to save favorite")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save event"})
		}
		return
	}

	c.JSON(http.StatusCreated, favorite)
}

// HandleListFavorites lists the authenticated user's favorites
func (h *EventHandler) HandleListFavorites(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	favorites, err := h.events.ListFavorites(c.Request.Context(), user.ID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error().Err(err).Msg("Failed to list favorites")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch favorites"})
		return
	}

	c.JSON(http.StatusOK, favorites)
}

// HandleSearch serves the Elasticsearch-backed free-text search
func (h *EventHandler) HandleSearch(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not available"})
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	size, err := strconv.Atoi(c.DefaultQuery("size", "20"))
	if err != nil || size < 1 || size > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 1 and 100"})
		return
	}

	docs, err := h.searcher.SearchEvents(c.Request.Context(), query, size)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": docs, "total": len(docs)})
}

// RegisterRoutes registers the handler's routes
func (h *EventHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/events")
	group.GET("", h.HandleListEvents)
	group.GET("/search", h.HandleSearch)

	protected := group.Group("")
	protected.Use(middleware.BearerAuth(h.auth))
	protected.POST("/:id/save", h.HandleSaveFavorite)
	protected.GET("/favorites", h.HandleListFavorites)
}
