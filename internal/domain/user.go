package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Identity is the verified caller behind a connection.
type Identity struct {
	UserID   uuid.UUID
	Username string
}

// User is the durable user record
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_users_username" json:"username"`
	Avatar    string    `gorm:"type:text;not null;default:''" json:"avatar"`
	LastSeen  time.Time `gorm:"not null" json:"lastSeen"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.LastSeen.IsZero() {
		u.LastSeen = time.Now()
	}
	return nil
}

// Identity returns the identity carried in tokens and presence events.
func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Username: u.Username}
}
