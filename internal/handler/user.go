package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/payload"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/logutils"
	"github.com/sitecraft/sitecraft/pkg/store"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewUserMgr)
}

type UserMgr struct {
	name  string
	store store.UserStore
}

func NewUserMgr(conf *RegisterConfig) Manager {
	return &UserMgr{
		name:  "users",
		store: conf.Store,
	}
}

func (mgr *UserMgr) GetName() string { return mgr.name }

func (mgr *UserMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *UserMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/me", mgr.GetMe)
	g.PUT("/me", mgr.UpdateMe)
}

func (mgr *UserMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("", mgr.ListUser)
	g.PUT("/:id/role", mgr.UpdateRole)
}

type UserResp struct {
	ID        uint       `json:"id"`        // 用户ID
	Name      string     `json:"name"`      // 用户名称
	Email     string     `json:"email"`     // 邮箱
	Phone     *string    `json:"phone"`     // 手机号，用于短信通知
	Role      model.Role `json:"role"`      // 用户角色
	SMSOptIn  bool       `json:"smsOptIn"`  // 是否接收短信
	Avatar    *string    `json:"avatar"`    // 头像
	Company   *string    `json:"company"`   // 公司
	CreatedAt time.Time  `json:"createdAt"` // 创建时间
}

func toUserResp(u *model.User) UserResp {
	return UserResp{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		SMSOptIn:  u.SMSOptIn,
		Avatar:    u.Avatar,
		Company:   u.Company,
		CreatedAt: u.CreatedAt,
	}
}

// GetMe godoc
// @Summary Current user
// @Description Get the profile of the signed-in user
// @Tags User
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[UserResp] "The user"
// @Failure 401 {object} resputil.Response[any] "Not registered"
// @Router /api/users/me [get]
func (mgr *UserMgr) GetMe(c *gin.Context) {
	resputil.Success(c, toUserResp(util.GetUser(c)))
}

type UpdateMeReq struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=128"`
	Phone    *string `json:"phone" binding:"omitempty,max=32"`
	SMSOptIn *bool   `json:"smsOptIn"`
	Avatar   *string `json:"avatar" binding:"omitempty,max=512"`
	Company  *string `json:"company" binding:"omitempty,max=128"`
}

// UpdateMe godoc
// @Summary Update the current user
// @Description Update profile fields of the signed-in user, omitted fields are kept
// @Tags User
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body UpdateMeReq true "Profile fields"
// @Success 200 {object} resputil.Response[UserResp] "The updated user"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/users/me [put]
func (mgr *UserMgr) UpdateMe(c *gin.Context) {
	var req UpdateMeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	user := util.GetUser(c)
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		// an empty phone removes it
		user.Phone = lo.EmptyableToPtr(strings.TrimSpace(*req.Phone))
	}
	if req.SMSOptIn != nil {
		user.SMSOptIn = *req.SMSOptIn
	}
	if req.Avatar != nil {
		user.Avatar = lo.EmptyableToPtr(*req.Avatar)
	}
	if req.Company != nil {
		user.Company = lo.EmptyableToPtr(strings.TrimSpace(*req.Company))
	}
	if err := mgr.store.UpdateUser(c, user); err != nil {
		resputil.Error(c, fmt.Sprintf("update user failed, detail: %v", err), resputil.NotSpecified)
		return
	}
	resputil.Success(c, toUserResp(user))
}

type ListUserReq struct {
	Role      model.Role `form:"role" binding:"omitempty,oneof=client developer admin"`
	PageIndex *int       `form:"page_index" binding:"omitempty,min=0"`
	PageSize  *int       `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ListUser godoc
// @Summary 列出用户信息
// @Description 按角色分页列出用户
// @Tags User
// @Accept json
// @Produce json
// @Security Bearer
// @Param role query string false "client, developer or admin"
// @Param page_index query int false "page index"
// @Param page_size query int false "page size"
// @Success 200 {object} resputil.Response[payload.ListResp[UserResp]] "成功获取用户信息"
// @Failure 400 {object} resputil.Response[any] "请求参数错误"
// @Failure 500 {object} resputil.Response[any] "其他错误"
// @Router /api/admin/users [get]
func (mgr *UserMgr) ListUser(c *gin.Context) {
	var req ListUserReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	users, count, err := mgr.store.ListUsers(c, req.Role, payload.ToPage(req.PageIndex, req.PageSize))
	if err != nil {
		resputil.Error(c, fmt.Sprintf("list users failed, detail: %v", err), resputil.NotSpecified)
		return
	}
	resputil.Success(c, payload.ListResp[UserResp]{
		Rows:  lo.Map(users, func(u *model.User, _ int) UserResp { return toUserResp(u) }),
		Count: count,
	})
}

type UpdateRoleReq struct {
	Role model.Role `json:"role" binding:"required,oneof=client developer admin"`
}

// UpdateRole godoc
// @Summary 更新用户角色
// @Description 管理员修改用户的平台角色
// @Tags User
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "user id"
// @Param data body UpdateRoleReq true "new role"
// @Success 200 {object} resputil.Response[UserResp] "更新成功"
// @Failure 400 {object} resputil.Response[any] "请求参数错误"
// @Failure 404 {object} resputil.Response[any] "用户不存在"
// @Router /api/admin/users/{id}/role [put]
func (mgr *UserMgr) UpdateRole(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req UpdateRoleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	user, err := mgr.store.GetUser(c, uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	if user.ID == util.GetUser(c).ID && req.Role != model.RoleAdmin {
		resputil.BadRequestError(c, "admins cannot demote themselves")
		return
	}
	user.Role = req.Role
	if err := mgr.store.UpdateUser(c, user); err != nil {
		resputil.Error(c, fmt.Sprintf("update role failed, detail: %v", err), resputil.NotSpecified)
		return
	}
	logutils.Log.Infof("user %d role changed to %s", user.ID, user.Role)
	resputil.Success(c, toUserResp(user))
}
