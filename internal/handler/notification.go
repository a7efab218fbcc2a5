package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/payload"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/store"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewNotificationMgr)
}

type NotificationMgr struct {
	name     string
	notifier *notify.Dispatcher
	store    store.ProjectStore
}

func NewNotificationMgr(conf *RegisterConfig) Manager {
	return &NotificationMgr{
		name:     "notifications",
		notifier: conf.Notifier,
		store:    conf.Store,
	}
}

func (mgr *NotificationMgr) GetName() string { return mgr.name }

func (mgr *NotificationMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *NotificationMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.ListNotifications)
	g.POST("", mgr.CreateNotification)
	g.PATCH("", mgr.MarkNotificationsRead)
}

func (mgr *NotificationMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type NotificationResp struct {
	ID        uint                   `json:"id"`
	Type      model.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Link      *string                `json:"link"`
	IsRead    bool                   `json:"isRead"`
	ReadAt    *time.Time             `json:"readAt"`
	CreatedAt time.Time              `json:"createdAt"`
}

func toNotificationResp(n *model.Notification) NotificationResp {
	return NotificationResp{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

type ListNotificationsReq struct {
	Unread    bool `form:"unread"`
	PageIndex *int `form:"page_index" binding:"omitempty,min=0"`
	PageSize  *int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ListNotifications godoc
// @Summary List my notifications
// @Tags Notification
// @Accept json
// @Produce json
// @Security Bearer
// @Param unread query bool false "only unread"
// @Param page_index query int false "page index"
// @Param page_size query int false "page size"
// @Success 200 {object} resputil.Response[payload.ListResp[NotificationResp]] "Newest first"
// @Router /api/notifications [get]
func (mgr *NotificationMgr) ListNotifications(c *gin.Context) {
	var req ListNotificationsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	rows, count, err := mgr.notifier.List(c, util.GetUser(c).ID, req.Unread, payload.ToPage(req.PageIndex, req.PageSize))
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, payload.ListResp[NotificationResp]{
		Rows:  lo.Map(rows, func(n *model.Notification, _ int) NotificationResp { return toNotificationResp(n) }),
		Count: count,
	})
}

type CreateNotificationReq struct {
	UserID  uint                   `json:"userId" binding:"required"`
	Type    model.NotificationType `json:"type" binding:"omitempty,oneof=info success warning error"`
	Title   string                 `json:"title" binding:"required,max=256"`
	Message string                 `json:"message"`
	Link    string                 `json:"link" binding:"omitempty,max=512"`
}

// CreateNotification godoc
// @Summary Notify a user
// @Description Writes a notification and sends SMS and email to clients. Users may only notify someone they share a project with.
// @Tags Notification
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body CreateNotificationReq true "Notification"
// @Success 200 {object} resputil.Response[NotificationResp] "The stored notification"
// @Failure 403 {object} resputil.Response[any] "No shared project"
// @Router /api/notifications [post]
func (mgr *NotificationMgr) CreateNotification(c *gin.Context) {
	var req CreateNotificationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	actor := util.GetUser(c)
	if actor.Role != model.RoleAdmin && actor.ID != req.UserID {
		shares, err := mgr.store.SharesProject(c, actor.ID, req.UserID)
		if err != nil {
			resputil.Error(c, fmt.Sprintf("check recipient failed, detail: %v", err), resputil.NotSpecified)
			return
		}
		if !shares {
			resputil.HTTPError(c, http.StatusForbidden, "recipient does not share a project with you", resputil.UserNotAllowed)
			return
		}
	}
	n, err := mgr.notifier.Notify(c, notify.Input{
		UserID:  req.UserID,
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
		Link:    req.Link,
	})
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toNotificationResp(n))
}

type MarkNotificationsReq struct {
	IDs []uint `json:"ids"` // 为空时全部标记为已读
}

// MarkNotificationsRead godoc
// @Summary Mark notifications as read
// @Tags Notification
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body MarkNotificationsReq false "ids, all when empty"
// @Success 200 {object} resputil.Response[payload.CountResp] "How many were marked"
// @Router /api/notifications [patch]
func (mgr *NotificationMgr) MarkNotificationsRead(c *gin.Context) {
	var req MarkNotificationsReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			resputil.BadRequestError(c, err.Error())
			return
		}
	}
	n, err := mgr.notifier.MarkRead(c, util.GetUser(c).ID, req.IDs)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, payload.CountResp{Count: n})
}
