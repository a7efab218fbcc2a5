package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/collab"
	"github.com/sitecraft/sitecraft/pkg/cronjob"
	"github.com/sitecraft/sitecraft/pkg/gateway/email"
	"github.com/sitecraft/sitecraft/pkg/gateway/sms"
	"github.com/sitecraft/sitecraft/pkg/lifecycle"
	"github.com/sitecraft/sitecraft/pkg/meeting"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/payment"
	"github.com/sitecraft/sitecraft/pkg/relay"
	"github.com/sitecraft/sitecraft/pkg/store"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RegisterConfig carries every dependency a manager may need. Managers pick
// what they use in their constructor.
type RegisterConfig struct {
	Store    store.Store
	TokenMgr *util.TokenManager

	Notifier *notify.Dispatcher
	Payments *payment.Orchestrator
	Projects *lifecycle.Service
	Meetings *meeting.Service
	Collab   *collab.Service
	Hub      *relay.Hub
	CronJobs *cronjob.CronJobManager

	// SMS and Email are nil when the channel is disabled
	SMS   sms.Sender
	Email email.Sender

	CookieName string
	BaseURL    string // Public URL of the web app
	Currency   string
}

var Registers []func(*RegisterConfig) Manager
