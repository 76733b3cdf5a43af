package user

import "time"

// User carries the display identity other components resolve by id.
// Credentials live with the identity provider, not here.
type User struct {
	ID              int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Username        string `gorm:"column:username;not null;uniqueIndex" json:"username"`
	FirstName       string `gorm:"column:first_name;not null;default:''" json:"first_name"`
	LastName        string `gorm:"column:last_name;not null;default:''" json:"last_name"`
	ProfileImageKey string `gorm:"column:profile_image_key;not null;default:''" json:"-"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }
