package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Event is a third-party event listing. The primary key is the
// provider-assigned external id, so the database enforces at most one
// row per external event. Rows are insert-only: later ingestion attempts
// for an existing id are no-ops.
type Event struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	StartDate   *time.Time `gorm:"index" json:"start_date"`
	VenueName   string     `json:"venue_name"`
	City        string     `json:"city"`
	Country     string     `json:"country"`
	URL         string     `json:"url"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	Favorites   []Favorite `gorm:"foreignKey:EventID" json:"-"`
}

// User is a local identity record created on first successful login.
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Email     string     `gorm:"not null;uniqueIndex" json:"email"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	Favorites []Favorite `gorm:"foreignKey:UserID" json:"-"`
}

// Favorite links a user to a saved event. The composite unique index is
// the actual guarantee that a user cannot save the same event twice.
type Favorite struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uq_user_event" json:"user_id"`
	EventID   string    `gorm:"not null;uniqueIndex:uq_user_event" json:"event_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Event     Event     `gorm:"foreignKey:EventID" json:"-"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	// Apply all migrations
	err := db.AutoMigrate(
		&Event{},
		&User{},
		&Favorite{},
	)

	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
