package model

import (
	"time"

	"gorm.io/gorm"
)

// Project is the central entity: a website commissioned by a client and
// built by one developer.
type Project struct {
	gorm.Model
	ClientID    uint  `gorm:"index;not null"`
	Client      User  `gorm:"foreignKey:ClientID"`
	DeveloperID *uint `gorm:"index;comment:null until a developer accepts"`
	Developer   *User `gorm:"foreignKey:DeveloperID"`

	Title        string        `gorm:"type:varchar(256);not null"`
	Requirements string        `gorm:"type:text;not null"`
	Status       ProjectStatus `gorm:"index;type:varchar(32);not null;default:pending_review"`

	// Sizing inputs for the cost estimate
	PeopleCount        int  `gorm:"not null;default:1"`
	NeedsDocumentation bool `gorm:"not null;default:false"`
	IncludeHosting     bool `gorm:"not null;default:false"`
	FileCount          int  `gorm:"not null;default:0"`

	EstimatedCost float64  `gorm:"type:numeric(12,2);not null"`
	FinalCost     *float64 `gorm:"type:numeric(12,2);comment:set on acceptance, authoritative for payments"`
	DurationDays  *int

	HostingURL    *string `gorm:"type:varchar(512)"`
	RepositoryURL *string `gorm:"type:varchar(512)"`

	AcceptedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// IsParticipant reports whether the user is the client or the assigned developer.
func (p *Project) IsParticipant(userID uint) bool {
	if p.ClientID == userID {
		return true
	}
	return p.DeveloperID != nil && *p.DeveloperID == userID
}

// VisibleTo reports whether the user may read the project and its brief.
// Developers also see open projects nobody has accepted yet.
func (p *Project) VisibleTo(u *User) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleDeveloper:
		return p.IsParticipant(u.ID) || (p.Status == ProjectPendingReview && p.DeveloperID == nil)
	default:
		return p.ClientID == u.ID
	}
}

// Counterpart returns the other participant, or 0 if there is none yet.
func (p *Project) Counterpart(userID uint) uint {
	if p.ClientID == userID {
		if p.DeveloperID == nil {
			return 0
		}
		return *p.DeveloperID
	}
	return p.ClientID
}
