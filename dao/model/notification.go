package model

import (
	"time"

	"gorm.io/gorm"
)

// Notification is an in-app message for one user. It is a side channel and
// never authoritative state.
type Notification struct {
	gorm.Model
	UserID  uint             `gorm:"index;not null"`
	Type    NotificationType `gorm:"type:varchar(16);not null;default:info"`
	Title   string           `gorm:"type:varchar(256);not null"`
	Message string           `gorm:"type:text"`
	Link    *string          `gorm:"type:varchar(512);comment:deep link in the web app"`
	IsRead  bool             `gorm:"index;not null;default:false"`
	ReadAt  *time.Time
}
