package model

import "gorm.io/gorm"

// ProjectFile is a requirement document uploaded by the client. The blob
// itself lives in the object store; only its metadata is kept here.
type ProjectFile struct {
	gorm.Model
	ProjectID   uint   `gorm:"index;not null"`
	UploaderID  uint   `gorm:"not null"`
	Name        string `gorm:"type:varchar(256);not null"`
	URL         string `gorm:"type:varchar(1024);not null"`
	Size        int64
	ContentType string `gorm:"type:varchar(128)"`
}

// ProjectDeliverable is completed work uploaded by the developer.
type ProjectDeliverable struct {
	gorm.Model
	ProjectID   uint   `gorm:"index;not null"`
	DeveloperID uint   `gorm:"not null"`
	Name        string `gorm:"type:varchar(256);not null"`
	URL         string `gorm:"type:varchar(1024);not null"`
	Size        int64
	ContentType string  `gorm:"type:varchar(128)"`
	Description *string `gorm:"type:text"`
}
