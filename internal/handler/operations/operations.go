package operations

import (
	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/internal/handler"
	"github.com/sitecraft/sitecraft/pkg/cronjob"
	"github.com/sitecraft/sitecraft/pkg/lifecycle"
	"github.com/sitecraft/sitecraft/pkg/payment"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	handler.Registers = append(handler.Registers, NewOperationsMgr)
}

// OperationsMgr exposes the periodic jobs to admins.
type OperationsMgr struct {
	name           string
	cronJobManager *cronjob.CronJobManager
	payments       *payment.Orchestrator
	projects       *lifecycle.Service
}

func NewOperationsMgr(conf *handler.RegisterConfig) handler.Manager {
	return &OperationsMgr{
		name:           "operations",
		cronJobManager: conf.CronJobs,
		payments:       conf.Payments,
		projects:       conf.Projects,
	}
}

func (mgr *OperationsMgr) GetName() string { return mgr.name }

func (mgr *OperationsMgr) RegisterPublic(_ *gin.RouterGroup) {
}

func (mgr *OperationsMgr) RegisterProtected(_ *gin.RouterGroup) {
}

func (mgr *OperationsMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("/cronjob", mgr.GetCronjobConfigs)
	g.PUT("/cronjob", mgr.UpdateCronjobConfig)
	g.POST("/cronjob/:name/run", mgr.RunCronjob)
	g.GET("/cronjob/records", mgr.GetCronjobRecords)
	g.POST("/reconcile", mgr.ReconcilePayments)
}
