package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/gateway/email"
	"github.com/sitecraft/sitecraft/pkg/gateway/sms"
	"github.com/sitecraft/sitecraft/pkg/logutils"
	"github.com/sitecraft/sitecraft/pkg/store"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewSMSMgr, NewEmailMgr)
}

var (
	errNoRecipient = errors.New("either userId or to is required")
	errRawAddress  = errors.New("only admins may send to a raw address")
)

// recipient resolves who a direct SMS or email goes to. Users reach people
// they share a project with; raw addresses are reserved for admins.
func recipient(ctx context.Context, st store.Store, actor *model.User, userID uint, to string) (*model.User, string, error) {
	if to = strings.TrimSpace(to); to != "" {
		if actor.Role != model.RoleAdmin {
			return nil, "", errRawAddress
		}
		return nil, to, nil
	}
	if userID == 0 {
		return nil, "", errNoRecipient
	}
	if actor.Role != model.RoleAdmin && actor.ID != userID {
		shares, err := st.SharesProject(ctx, actor.ID, userID)
		if err != nil {
			return nil, "", err
		}
		if !shares {
			return nil, "", errRawAddress
		}
	}
	user, err := st.GetUser(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	return user, "", nil
}

func recipientError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errNoRecipient):
		resputil.BadRequestError(c, err.Error())
	case errors.Is(err, errRawAddress):
		resputil.HTTPError(c, http.StatusForbidden, "recipient is not reachable by you", resputil.UserNotAllowed)
	default:
		resputil.ServiceError(c, err)
	}
}

// ---- SMS ----

type SMSMgr struct {
	name   string
	store  store.Store
	sender sms.Sender
}

func NewSMSMgr(conf *RegisterConfig) Manager {
	return &SMSMgr{
		name:   "sms",
		store:  conf.Store,
		sender: conf.SMS,
	}
}

func (mgr *SMSMgr) GetName() string { return mgr.name }

func (mgr *SMSMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *SMSMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/send", mgr.SendSMS)
}

func (mgr *SMSMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type SendSMSReq struct {
	UserID  uint   `json:"userId"`
	To      string `json:"to"` // 仅管理员可直接指定号码
	Message string `json:"message" binding:"required,max=918"`
}

// SendSMS godoc
// @Summary Send an SMS
// @Description Sends a text to a user you share a project with, or to any number for admins
// @Tags Gateway
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body SendSMSReq true "SMS"
// @Success 200 {object} resputil.Response[any] "Sent"
// @Failure 400 {object} resputil.Response[any] "Invalid phone number"
// @Failure 502 {object} resputil.Response[any] "Gateway error"
// @Failure 503 {object} resputil.Response[any] "SMS disabled"
// @Router /api/sms/send [post]
func (mgr *SMSMgr) SendSMS(c *gin.Context) {
	var req SendSMSReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if mgr.sender == nil {
		resputil.HTTPError(c, http.StatusServiceUnavailable, "sms is disabled", resputil.NotSpecified)
		return
	}
	user, to, err := recipient(c, mgr.store, util.GetUser(c), req.UserID, req.To)
	if err != nil {
		recipientError(c, err)
		return
	}
	if user != nil {
		if user.Phone == nil || *user.Phone == "" {
			resputil.BadRequestError(c, "user has no phone number")
			return
		}
		to = *user.Phone
	}
	if err := mgr.sender.Send(c, to, req.Message); err != nil {
		if errors.Is(err, sms.ErrInvalidPhone) {
			resputil.BadRequestError(c, err.Error())
			return
		}
		resputil.ServiceError(c, err)
		return
	}
	logutils.Log.WithField("sender", util.GetUser(c).ID).Info("direct sms sent")
	resputil.Success(c, nil)
}

// ---- Email ----

type EmailMgr struct {
	name    string
	store   store.Store
	sender  email.Sender
	baseURL string
}

func NewEmailMgr(conf *RegisterConfig) Manager {
	return &EmailMgr{
		name:    "email",
		store:   conf.Store,
		sender:  conf.Email,
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
	}
}

func (mgr *EmailMgr) GetName() string { return mgr.name }

func (mgr *EmailMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *EmailMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/send", mgr.SendEmail)
}

func (mgr *EmailMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type SendEmailReq struct {
	UserID  uint   `json:"userId"`
	To      string `json:"to" binding:"omitempty,email"` // 仅管理员可直接指定地址
	Subject string `json:"subject" binding:"required,max=256"`
	Message string `json:"message" binding:"required"`
	Link    string `json:"link"` // path inside the web app
}

// SendEmail godoc
// @Summary Send an email
// @Description Renders the notification template and sends it to a user you share a project with, or to any address for admins
// @Tags Gateway
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body SendEmailReq true "Email"
// @Success 200 {object} resputil.Response[any] "Sent"
// @Failure 502 {object} resputil.Response[any] "Gateway error"
// @Failure 503 {object} resputil.Response[any] "Email disabled"
// @Router /api/email/send [post]
func (mgr *EmailMgr) SendEmail(c *gin.Context) {
	var req SendEmailReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if mgr.sender == nil {
		resputil.HTTPError(c, http.StatusServiceUnavailable, "email is disabled", resputil.NotSpecified)
		return
	}
	user, to, err := recipient(c, mgr.store, util.GetUser(c), req.UserID, req.To)
	if err != nil {
		recipientError(c, err)
		return
	}
	name := "there"
	if user != nil {
		if user.Email == "" {
			resputil.BadRequestError(c, "user has no email address")
			return
		}
		to, name = user.Email, user.Name
	}
	data := email.NotificationData{Name: name, Title: req.Subject, Message: req.Message}
	if req.Link != "" {
		data.Link = mgr.baseURL + "/" + strings.TrimLeft(req.Link, "/")
	}
	html, err := email.RenderNotification(data)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	if err := mgr.sender.Send(c, email.Message{To: to, Subject: req.Subject, HTML: html}); err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, nil)
}
