package model

import "gorm.io/gorm"

// MeetingSession records a room handed out to the embedded conferencing
// widget. It is written once and never updated.
type MeetingSession struct {
	gorm.Model
	ProjectID     uint        `gorm:"index;not null"`
	Kind          MeetingKind `gorm:"type:varchar(16);not null"`
	RoomName      string      `gorm:"uniqueIndex;type:varchar(128);not null"`
	RoomURL       string      `gorm:"type:varchar(512);not null"`
	HostID        uint        `gorm:"not null"`
	ParticipantID uint        `gorm:"not null"`
}
