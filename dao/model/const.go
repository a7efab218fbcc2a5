// 定义与数据库表字段对应的常量
// 所有枚举都以字符串形式落库，便于前端直接展示和按状态查询
package model

// Role is the platform role of a user.
type Role string

const (
	RoleClient    Role = "client"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleDeveloper, RoleAdmin:
		return true
	}
	return false
}

// ProjectStatus is the lifecycle status of a commissioned project.
type ProjectStatus string

const (
	ProjectPendingReview ProjectStatus = "pending_review" // submitted by the client, waiting for a developer
	ProjectApproved      ProjectStatus = "approved"       // accepted by a developer, waiting for payment
	ProjectInProgress    ProjectStatus = "in_progress"    // payment escrowed, work started
	ProjectCompleted     ProjectStatus = "completed"      // developer submitted the work
	ProjectDelivered     ProjectStatus = "delivered"      // client accepted the delivery
	ProjectCancelled     ProjectStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s ProjectStatus) Terminal() bool {
	return s == ProjectDelivered || s == ProjectCancelled
}

// PaymentType decides which share of the project cost is charged.
type PaymentType string

const (
	PaymentInitial PaymentType = "initial" // 60%
	PaymentFinal   PaymentType = "final"   // 40%
	PaymentFull    PaymentType = "full"    // 100%
)

// PaymentStatus tracks money held by the platform.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentEscrowed PaymentStatus = "escrowed"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
	// PaymentFailed is a checkout the gateway never settled before it expired.
	PaymentFailed PaymentStatus = "failed"
	// PaymentDuplicate is settled money for a share that was already paid.
	// It is held until an admin refunds it.
	PaymentDuplicate PaymentStatus = "duplicate"
)

// NotificationType is used by the frontend to pick an icon/colour.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError:
		return true
	}
	return false
}

// MeetingKind distinguishes screen sharing rooms from video calls.
type MeetingKind string

const (
	MeetingScreen MeetingKind = "screen"
	MeetingVideo  MeetingKind = "video"
)
