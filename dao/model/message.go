package model

import (
	"time"

	"gorm.io/gorm"
)

// Message belongs to a project conversation between its two participants.
type Message struct {
	gorm.Model
	ProjectID  uint    `gorm:"index;not null"`
	SenderID   uint    `gorm:"index;not null"`
	Sender     User    `gorm:"foreignKey:SenderID"`
	ReceiverID uint    `gorm:"index;not null"`
	Content    string  `gorm:"type:text"`
	FileURL    *string `gorm:"type:varchar(512)"`
	FileName   *string `gorm:"type:varchar(256)"`
	ReadAt     *time.Time
}
