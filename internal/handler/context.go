package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/lifecycle"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/store"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewContextMgr)
}

type ContextMgr struct {
	name     string
	projects *lifecycle.Service
	notifier *notify.Dispatcher
}

func NewContextMgr(conf *RegisterConfig) Manager {
	return &ContextMgr{
		name:     "context",
		projects: conf.Projects,
		notifier: conf.Notifier,
	}
}

func (mgr *ContextMgr) GetName() string { return mgr.name }

func (mgr *ContextMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *ContextMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/summary", mgr.GetSummary)
}

func (mgr *ContextMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type SummaryResp struct {
	User          UserResp                      `json:"user"`
	Projects      map[model.ProjectStatus]int64 `json:"projects"`
	UnreadNotices int64                         `json:"unreadNotifications"`
}

// GetSummary godoc
// @Summary Dashboard summary of the current user
// @Description project counts by status, as seen by the user, and unread notifications
// @Tags Context
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[SummaryResp] "summary"
// @Failure 500 {object} resputil.Response[any] "other errors"
// @Router /api/context/summary [get]
func (mgr *ContextMgr) GetSummary(c *gin.Context) {
	user := util.GetUser(c)
	resp := SummaryResp{
		User:     toUserResp(user),
		Projects: make(map[model.ProjectStatus]int64, len(lifecycle.Statuses)),
	}
	for _, status := range lifecycle.Statuses {
		_, total, err := mgr.projects.List(c, user, lifecycle.ListInput{Status: status, Page: store.Page{Size: 1}})
		if err != nil {
			resputil.ServiceError(c, err)
			return
		}
		resp.Projects[status] = total
	}
	_, unread, err := mgr.notifier.List(c, user.ID, true, store.Page{Size: 1})
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resp.UnreadNotices = unread
	resputil.Success(c, resp)
}
