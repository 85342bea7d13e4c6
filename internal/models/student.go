package models

import "time"

// Student mirrors a learner record owned by the identity service.
type Student struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;index;not null" json:"email"`
	Picture   string    `gorm:"size:512" json:"picture"`
	Role      string    `gorm:"size:32;default:student" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
