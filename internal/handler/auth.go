package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/middleware"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/logutils"
	"github.com/sitecraft/sitecraft/pkg/store"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

// AuthMgr turns a verified identity into a platform user. It is public
// because the caller has no user row yet; the route checks the token itself.
type AuthMgr struct {
	name     string
	store    store.UserStore
	identity gin.HandlerFunc
}

func NewAuthMgr(conf *RegisterConfig) Manager {
	return &AuthMgr{
		name:     "ensure-user",
		store:    conf.Store,
		identity: middleware.AuthIdentity(conf.TokenMgr, conf.CookieName),
	}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("", mgr.identity, mgr.EnsureUser)
}

func (mgr *AuthMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *AuthMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type EnsureUserReq struct {
	Name  string     `json:"name"`
	Phone string     `json:"phone"`
	Role  model.Role `json:"role" binding:"omitempty,oneof=client developer"` // 首次注册时选择，之后忽略
}

type EnsureUserResp struct {
	User    UserResp `json:"user"`
	Created bool     `json:"created"`
}

// EnsureUser godoc
// @Summary Create the user on first sign-in
// @Description Find the user of the access token, creating it when it does not exist
// @Tags Auth
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body EnsureUserReq false "Profile used on first sign-in"
// @Success 200 {object} resputil.Response[EnsureUserResp] "The user"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 401 {object} resputil.Response[any] "Invalid token"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/ensure-user [post]
func (mgr *AuthMgr) EnsureUser(c *gin.Context) {
	var req EnsureUserReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			resputil.BadRequestError(c, err.Error())
			return
		}
	}
	id := util.GetIdentity(c)

	user, err := mgr.store.GetUserByAuthID(c, id.AuthID)
	if err == nil {
		resputil.Success(c, EnsureUserResp{User: toUserResp(user)})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		resputil.Error(c, fmt.Sprintf("find user failed, detail: %v", err), resputil.NotSpecified)
		return
	}

	user = &model.User{
		AuthID:   id.AuthID,
		Name:     firstNonEmpty(req.Name, id.Name, strings.Split(id.Email, "@")[0], "SiteCraft user"),
		Email:    id.Email,
		Role:     model.RoleClient,
		SMSOptIn: true,
	}
	if req.Role != "" {
		user.Role = req.Role
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user.Phone = &phone
	}
	if err := mgr.store.CreateUser(c, user); err != nil {
		// a concurrent first request may have created it
		if existing, getErr := mgr.store.GetUserByAuthID(c, id.AuthID); getErr == nil {
			resputil.Success(c, EnsureUserResp{User: toUserResp(existing)})
			return
		}
		resputil.Error(c, fmt.Sprintf("create user failed, detail: %v", err), resputil.NotSpecified)
		return
	}
	logutils.Log.WithField("user", user.ID).Infof("registered %s as %s", id.AuthID, user.Role)
	resputil.Success(c, EnsureUserResp{User: toUserResp(user), Created: true})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
