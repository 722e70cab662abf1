package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/eventhub/internal/models"
)

// ErrDuplicateKey is returned when an insert collides with a uniqueness
// constraint. Callers treat it as "already present", not as a failure.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// translateError maps gorm errors onto the repository sentinels
func translateError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return errors.Wrap(err, msg)
	}
}

// EventFilters narrows an event listing query. Zero values mean "no filter".
type EventFilters struct {
	Name          string
	City          string
	Country       string
	VenueName     string
	StartDateFrom *time.Time
	StartDateTo   *time.Time
	Search        string
}

// EventRepository provides access to event data
type EventRepository struct {
	db         *gorm.DB // Write database
	readOnlyDB *gorm.DB // Read-only database
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB, readOnlyDB *gorm.DB) *EventRepository {
	return &EventRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create inserts a new event. A uniqueness-constraint violation surfaces
// as ErrDuplicateKey so the ingestion path can treat it as "already stored".
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	// Use write DB for writes
	err := r.db.WithContext(ctx).Create(event).Error
	return translateError(err, "failed to create event")
}

// RecentIDs returns the ids of events ingested since the given time. This is
// the storage-side freshness guard that survives process restarts.
func (r *EventRepository) RecentIDs(ctx context.Context, since time.Time) (map[string]struct{}, error) {
	var ids []string
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.Event{}).
		Where("created_at >= ?", since).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query recent event ids")
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Exists reports whether an event with the given id is stored
func (r *EventRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check event existence")
	}
	return count > 0, nil
}

// sortColumns are the fields a listing may be ordered by. Anything else
// falls back to start_date.
var sortColumns = map[string]string{
	"start_date": "start_date",
	"name":       "name",
	"created_at": "created_at",
}

// applyFilters builds the filtered base query for event listings
func applyFilters(q *gorm.DB, filters EventFilters) *gorm.DB {
	if filters.Name != "" {
		q = q.Where("name ILIKE ?", "%"+filters.Name+"%")
	}
	if filters.City != "" {
		q = q.Where("city ILIKE ?", "%"+filters.City+"%")
	}
	if filters.Country != "" {
		q = q.Where("country ILIKE ?", "%"+filters.Country+"%")
	}
	if filters.VenueName != "" {
		q = q.Where("venue_name ILIKE ?", "%"+filters.VenueName+"%")
	}
	if filters.StartDateFrom != nil {
		q = q.Where("start_date >= ?", *filters.StartDateFrom)
	}
	if filters.StartDateTo != nil {
		q = q.Where("start_date <= ?", *filters.StartDateTo)
	}
	if filters.Search != "" {
		term := "%" + filters.Search + "%"
		q = q.Where(
			"name ILIKE ? OR description ILIKE ? OR venue_name ILIKE ? OR city ILIKE ?",
			term, term, term, term,
		)
	}
	return q
}

// List returns a page of events matching the filters plus the total count
// before pagination.
func (r *EventRepository) List(
	ctx context.Context,
	filters EventFilters,
	sortBy, sortOrder string,
	page, perPage int,
) ([]models.Event, int64, error) {
	q := applyFilters(r.readOnlyDB.WithContext(ctx).Model(&models.Event{}), filters)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "failed to count events")
	}

	column, ok := sortColumns[sortBy]
	if !ok {
		column = "start_date"
	}
	direction := "ASC"
	if strings.EqualFold(sortOrder, "desc") {
		direction = "DESC"
	}

	var events []models.Event
	err := q.Order(column + " " + direction).
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&events).Error
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list events")
	}

	return events, total, nil
}

// UserRepository provides access to user data
type UserRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB, readOnlyDB *gorm.DB) *UserRepository {
	return &UserRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// GetByEmail gets a user by email address
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	// Use read-only DB for reads
	err := r.readOnlyDB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, translateError(err, "failed to get user by email")
	}
	return &user, nil
}

// Create inserts a new user. A concurrent insert for the same email
// surfaces as ErrDuplicateKey.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	return translateError(err, "failed to create user")
}

// UpdateName updates a user's display name
func (r *UserRepository) UpdateName(ctx context.Context, id uint, name string) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("name", name)

	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update user name")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether a user with the given id is stored
func (r *UserRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.readOnlyDB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check user existence")
	}
	return count > 0, nil
}

// FavoriteRepository provides access to favorite data
type FavoriteRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewFavoriteRepository creates a new favorite repository
func NewFavoriteRepository(db *gorm.DB, readOnlyDB *gorm.DB) *FavoriteRepository {
	return &FavoriteRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create inserts a new favorite. Saving the same (user, event) pair twice
// surfaces as ErrDuplicateKey from the composite unique index.
func (r *FavoriteRepository) Create(ctx context.Context, favorite *models.Favorite) error {
	err := r.db.WithContext(ctx).Create(favorite).Error
	return translateError(err, "failed to create favorite")
}

// ListByUser returns all favorites saved by a user
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID uint) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := r.readOnlyDB.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&favorites).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list favorites")
	}
	return favorites, nil
}
