package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/eventhub/internal/models"
	"example.com/eventhub/internal/repositories"
	"example.com/eventhub/internal/services"
)

// Mock event service for testing
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) ListEvents(ctx context.Context, filters repositories.EventFilters, sortBy, sortOrder string, page, perPage int) (*services.PaginatedEvents, error) {
	args := m.Called(ctx, filters, sortBy, sortOrder, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.PaginatedEvents), args.Error(1)
}

func (m *MockEventService) SaveFavorite(ctx context.Context, userID uint, eventID string) (*models.Favorite, error) {
	args := m.Called(ctx, userID, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Favorite), args.Error(1)
}

func (m *MockEventService) ListFavorites(ctx context.Context, userID uint) ([]models.Favorite, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Favorite), args.Error(1)
}

func newEventTestRouter(events EventLister, searcher EventSearcher, authenticator *MockSessionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewEventHandler(events, searcher, authenticator).RegisterRoutes(router)
	return router
}

func TestHandleListEvents(t *testing.T) {
	events := new(MockEventService)
	events.On("ListEvents", mock.Anything,
		repositories.EventFilters{City: "Berlin"}, "start_date", "asc", 1, 10).
		Return(&services.PaginatedEvents{
			Events: []models.Event{{ID: "tm-1", Name: "Show"}},
			Total:  1, Page: 1, PerPage: 10, TotalPages: 1,
		}, nil)

	router := newEventTestRouter(events, nil, new(MockSessionService))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events?city=Berlin", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var page services.PaginatedEvents
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Events, 1)
	require.Equal(t, "tm-1", page.Events[0].ID)
}

func TestHandleListEventsRejectsBadPagination(t *testing.T) {
	router := newEventTestRouter(new(MockEventService), nil, new(MockSessionService))

	for _, target := range []string{
		"/events?page=0",
		"/events?page=abc",
		"/events?per_page=0",
		"/events?per_page=101",
		"/events?sort_order=sideways",
		"/events?start_date_from=not-a-date",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandleSaveFavoriteRequiresAuth(t *testing.T) {
	router := newEventTestRouter(new(MockEventService), nil, new(MockSessionService))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events/tm-1/save", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleSaveFavorite(t *testing.T) {
	sessions := new(MockSessionService)
	sessions.On("Authenticate", mock.Anything, "valid-token").
		Return(&models.User{ID: 7, Email: "a@b.com"}, nil, nil)

	events := new(MockEventService)
	events.On("SaveFavorite", mock.Anything, uint(7), "tm-1").
		Return(&models.Favorite{UserID: 7, EventID: "tm-1"}, nil)

	router := newEventTestRouter(events, nil, sessions)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/events/tm-1/save", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandleSaveFavoriteErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown event", services.ErrEventNotFound, http.StatusNotFound},
		{"already saved", services.ErrAlreadySaved, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sessions := new(MockSessionService)
			sessions.On("Authenticate", mock.Anything, "valid-token").
				Return(&models.User{ID: 7}, nil, nil)

			events := new(MockEventService)
			events.On("SaveFavorite", mock.Anything, uint(7), "tm-1").Return(nil, tc.err)

			router := newEventTestRouter(events, nil, sessions)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/events/tm-1/save", nil)
			req.Header.Set("Authorization", "Bearer valid-token")
			router.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestHandleListFavorites(t *testing.T) {
	sessions := new(MockSessionService)
	sessions.On("Authenticate", mock.Anything, "valid-token").
		Return(&models.User{ID: 7}, nil, nil)

	events := new(MockEventService)
	events.On("ListFavorites", mock.Anything, uint(7)).
		Return([]models.Favorite{{UserID: 7, EventID: "tm-1"}}, nil)

	router := newEventTestRouter(events, nil, sessions)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events/favorites", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var favorites []models.Favorite
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &favorites))
	require.Len(t, favorites, 1)
}

func TestHandleSearchUnavailableWithoutBackend(t *testing.T) {
	router := newEventTestRouter(new(MockEventService), nil, new(MockSessionService))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events/search?q=jazz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
