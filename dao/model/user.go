package model

import (
	"gorm.io/gorm"
)

// User is the basic entity of the system
type User struct {
	gorm.Model
	AuthID   string  `gorm:"uniqueIndex;type:varchar(64);not null;comment:subject issued by the auth provider"`
	Name     string  `gorm:"type:varchar(128);not null"`
	Email    string  `gorm:"index;type:varchar(256)"`
	Phone    *string `gorm:"type:varchar(32);comment:used for SMS notifications"`
	Role     Role    `gorm:"type:varchar(32);not null;default:client;comment:client, developer, admin"`
	SMSOptIn bool    `gorm:"not null;default:true"`
	Avatar   *string `gorm:"type:varchar(512)"`
	Company  *string `gorm:"type:varchar(128)"`
}

// UserInfo is the public part of a user embedded in other responses.
type UserInfo struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (u *User) Info() UserInfo {
	if u == nil {
		return UserInfo{}
	}
	return UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
