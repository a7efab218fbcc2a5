package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/payload"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/collab"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMessageMgr)
}

type MessageMgr struct {
	name   string
	collab *collab.Service
}

func NewMessageMgr(conf *RegisterConfig) Manager {
	return &MessageMgr{
		name:   "projects/:id/messages",
		collab: conf.Collab,
	}
}

func (mgr *MessageMgr) GetName() string { return mgr.name }

func (mgr *MessageMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *MessageMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.ListMessages)
	g.POST("", mgr.PostMessage)
	g.POST("/read", mgr.MarkRead)
}

func (mgr *MessageMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type ListMessagesReq struct {
	After uint `form:"after"` // 只返回 id 大于 after 的消息
	Limit int  `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ListMessages godoc
// @Summary List project messages
// @Description Oldest first; pass the last seen id as after to page forward
// @Tags Message
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Param after query int false "last seen message id"
// @Param limit query int false "page size"
// @Success 200 {object} resputil.Response[[]collab.MessageView] "Messages"
// @Router /api/projects/{id}/messages [get]
func (mgr *MessageMgr) ListMessages(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req ListMessagesReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	msgs, err := mgr.collab.ListMessages(c, util.GetUser(c), uri.ID, req.After, req.Limit)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, lo.Map(msgs, func(m *model.Message, _ int) collab.MessageView { return collab.ViewMessage(m) }))
}

type PostMessageReq struct {
	Content  string `json:"content"`
	FileURL  string `json:"fileUrl" binding:"omitempty,max=512"`
	FileName string `json:"fileName" binding:"omitempty,max=256"`
}

// PostMessage godoc
// @Summary Send a message
// @Description Stores the message, relays it to the project room and notifies the receiver
// @Tags Message
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Param data body PostMessageReq true "Message"
// @Success 200 {object} resputil.Response[collab.MessageView] "The message"
// @Failure 400 {object} resputil.Response[any] "Empty message"
// @Failure 403 {object} resputil.Response[any] "Not a participant"
// @Router /api/projects/{id}/messages [post]
func (mgr *MessageMgr) PostMessage(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req PostMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	msg, err := mgr.collab.PostMessage(c, util.GetUser(c), uri.ID, collab.MessageInput{
		Content:  req.Content,
		FileURL:  req.FileURL,
		FileName: req.FileName,
	})
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, collab.ViewMessage(msg))
}

// MarkRead godoc
// @Summary Mark received messages as read
// @Tags Message
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Success 200 {object} resputil.Response[payload.CountResp] "How many messages were marked"
// @Router /api/projects/{id}/messages/read [post]
func (mgr *MessageMgr) MarkRead(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	n, err := mgr.collab.MarkRead(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, payload.CountResp{Count: n})
}
