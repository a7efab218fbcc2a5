package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payment is one gateway transaction attempt for a project. Money stays in
// escrow until the client accepts the delivery.
type Payment struct {
	gorm.Model
	ProjectID uint    `gorm:"index;not null"`
	Project   Project `gorm:"foreignKey:ProjectID"`
	PayerID   uint    `gorm:"index;not null"`

	BaseAmount  float64       `gorm:"type:numeric(12,2);not null;comment:project cost the share is computed from"`
	Amount      float64       `gorm:"type:numeric(12,2);not null;comment:charged amount"`
	Currency    string        `gorm:"type:varchar(8);not null"`
	PaymentType PaymentType   `gorm:"type:varchar(16);not null"`
	Status      PaymentStatus `gorm:"index;type:varchar(16);not null;default:pending"`

	Reference        string         `gorm:"uniqueIndex;type:varchar(128);not null;comment:gateway reference"`
	AccessCode       string         `gorm:"type:varchar(128)"`
	AuthorizationURL string         `gorm:"type:varchar(512)"`
	GatewayResponse  datatypes.JSON `gorm:"comment:last verify payload from the gateway"`

	PaidAt     *time.Time
	EscrowedAt *time.Time
	ReleasedAt *time.Time
	RefundedAt *time.Time
}

// FundsProject reports whether verifying this payment moves the project
// from approved to in_progress.
func (p *Payment) FundsProject() bool {
	return p.PaymentType == PaymentInitial || p.PaymentType == PaymentFull
}
