package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/payload"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/lifecycle"
	"github.com/sitecraft/sitecraft/pkg/payment"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewProjectMgr)
}

type ProjectMgr struct {
	name     string
	projects *lifecycle.Service
	payments *payment.Orchestrator
}

func NewProjectMgr(conf *RegisterConfig) Manager {
	return &ProjectMgr{
		name:     "projects",
		projects: conf.Projects,
		payments: conf.Payments,
	}
}

func (mgr *ProjectMgr) GetName() string { return mgr.name }

func (mgr *ProjectMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/estimate", mgr.Estimate)
}

func (mgr *ProjectMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("", mgr.CreateProject)
	g.GET("", mgr.ListProject)
	g.GET("/:id", mgr.GetProject)
	g.POST("/:id/accept", mgr.AcceptProject)
	g.POST("/:id/start", mgr.StartProject)
	g.POST("/:id/complete", mgr.CompleteProject)
	g.POST("/:id/deliver", mgr.DeliverProject)
	g.POST("/:id/cancel", mgr.CancelProject)
	g.GET("/:id/payments", mgr.ListProjectPayments)
}

func (mgr *ProjectMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type ProjectResp struct {
	ID           uint                `json:"id"`
	Title        string              `json:"title"`
	Requirements string              `json:"requirements"`
	Status       model.ProjectStatus `json:"status"`
	Client       model.UserInfo      `json:"client"`
	Developer    *model.UserInfo     `json:"developer"`

	PeopleCount        int  `json:"peopleCount"`
	NeedsDocumentation bool `json:"needsDocumentation"`
	IncludeHosting     bool `json:"includeHosting"`
	FileCount          int  `json:"fileCount"`

	EstimatedCost float64  `json:"estimatedCost"`
	FinalCost     *float64 `json:"finalCost"`
	DurationDays  *int     `json:"durationDays"`
	HostingURL    *string  `json:"hostingUrl"`
	RepositoryURL *string  `json:"repositoryUrl"`

	CreatedAt   time.Time  `json:"createdAt"`
	AcceptedAt  *time.Time `json:"acceptedAt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	DeliveredAt *time.Time `json:"deliveredAt"`
	CancelledAt *time.Time `json:"cancelledAt"`
}

func toProjectResp(p *model.Project) ProjectResp {
	resp := ProjectResp{
		ID:                 p.ID,
		Title:              p.Title,
		Requirements:       p.Requirements,
		Status:             p.Status,
		Client:             p.Client.Info(),
		PeopleCount:        p.PeopleCount,
		NeedsDocumentation: p.NeedsDocumentation,
		IncludeHosting:     p.IncludeHosting,
		FileCount:          p.FileCount,
		EstimatedCost:      p.EstimatedCost,
		FinalCost:          p.FinalCost,
		DurationDays:       p.DurationDays,
		HostingURL:         p.HostingURL,
		RepositoryURL:      p.RepositoryURL,
		CreatedAt:          p.CreatedAt,
		AcceptedAt:         p.AcceptedAt,
		StartedAt:          p.StartedAt,
		CompletedAt:        p.CompletedAt,
		DeliveredAt:        p.DeliveredAt,
		CancelledAt:        p.CancelledAt,
	}
	if resp.Client.ID == 0 {
		resp.Client.ID = p.ClientID
	}
	if p.Developer != nil {
		resp.Developer = lo.ToPtr(p.Developer.Info())
	} else if p.DeveloperID != nil {
		resp.Developer = &model.UserInfo{ID: *p.DeveloperID}
	}
	return resp
}

type EstimateResp struct {
	EstimatedCost float64 `json:"estimatedCost"`
}

// Estimate godoc
// @Summary Estimate the cost of a project
// @Description Price a project from its sizing inputs without creating it
// @Tags Project
// @Accept json
// @Produce json
// @Param data body lifecycle.EstimateInput true "Sizing inputs"
// @Success 200 {object} resputil.Response[EstimateResp] "The estimate"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Router /api/projects/estimate [post]
func (mgr *ProjectMgr) Estimate(c *gin.Context) {
	var req lifecycle.EstimateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if req.PeopleCount < 0 || req.FileCount < 0 {
		resputil.BadRequestError(c, "sizing inputs must not be negative")
		return
	}
	resputil.Success(c, EstimateResp{EstimatedCost: lifecycle.EstimateCost(req)})
}

type CreateProjectReq struct {
	Title              string `json:"title" binding:"required,max=256"`
	Requirements       string `json:"requirements" binding:"required"`
	PeopleCount        int    `json:"peopleCount" binding:"min=0"`
	NeedsDocumentation bool   `json:"needsDocumentation"`
	IncludeHosting     bool   `json:"includeHosting"`
	FileCount          int    `json:"fileCount" binding:"min=0"`
}

// CreateProject godoc
// @Summary Submit a project
// @Description A client submits a project for developers to review
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body CreateProjectReq true "Project"
// @Success 200 {object} resputil.Response[ProjectResp] "The project"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 403 {object} resputil.Response[any] "Not a client"
// @Router /api/projects [post]
func (mgr *ProjectMgr) CreateProject(c *gin.Context) {
	var req CreateProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, err := mgr.projects.Create(c, util.GetUser(c), lifecycle.CreateInput{
		Title:        req.Title,
		Requirements: req.Requirements,
		EstimateInput: lifecycle.EstimateInput{
			PeopleCount:        req.PeopleCount,
			NeedsDocumentation: req.NeedsDocumentation,
			IncludeHosting:     req.IncludeHosting,
			FileCount:          req.FileCount,
		},
	})
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toProjectResp(p))
}

type ListProjectReq struct {
	Status    model.ProjectStatus `form:"status"`
	PageIndex *int                `form:"page_index" binding:"omitempty,min=0"`
	PageSize  *int                `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ListProject godoc
// @Summary List projects
// @Description Clients see their projects, developers their assigned and open ones, admins all
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param status query string false "filter by status"
// @Param page_index query int false "page index"
// @Param page_size query int false "page size"
// @Success 200 {object} resputil.Response[payload.ListResp[ProjectResp]] "Projects"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Router /api/projects [get]
func (mgr *ProjectMgr) ListProject(c *gin.Context) {
	var req ListProjectReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	projects, count, err := mgr.projects.List(c, util.GetUser(c), lifecycle.ListInput{
		Status: req.Status,
		Page:   payload.ToPage(req.PageIndex, req.PageSize),
	})
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, payload.ListResp[ProjectResp]{
		Rows:  lo.Map(projects, func(p *model.Project, _ int) ProjectResp { return toProjectResp(p) }),
		Count: count,
	})
}

// GetProject godoc
// @Summary Get a project
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Success 200 {object} resputil.Response[ProjectResp] "The project"
// @Failure 403 {object} resputil.Response[any] "Not visible to the user"
// @Failure 404 {object} resputil.Response[any] "Project not found"
// @Router /api/projects/{id} [get]
func (mgr *ProjectMgr) GetProject(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, err := mgr.projects.Get(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toProjectResp(p))
}

type AcceptProjectReq struct {
	FinalCost    float64 `json:"finalCost" binding:"required,gt=0"`
	DurationDays int     `json:"durationDays" binding:"required,gt=0"`
}

// AcceptProject godoc
// @Summary Accept a project
// @Description A developer takes a pending project and fixes its final cost and duration
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Param data body AcceptProjectReq true "Final terms"
// @Success 200 {object} resputil.Response[ProjectResp] "The accepted project"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 409 {object} resputil.Response[any] "Project is no longer pending review"
// @Router /api/projects/{id}/accept [post]
func (mgr *ProjectMgr) AcceptProject(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req AcceptProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, err := mgr.projects.Accept(c, util.GetUser(c), uri.ID, req.FinalCost, req.DurationDays)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toProjectResp(p))
}

// StartProject godoc
// @Summary Start working on a project
// @Description The assigned developer starts a funded project
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Success 200 {object} resputil.Response[ProjectResp] "The project"
// @Failure 400 {object} resputil.Response[any] "No escrowed payment yet"
// @Router /api/projects/{id}/start [post]
func (mgr *ProjectMgr) StartProject(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, err := mgr.projects.Start(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toProjectResp(p))
}

type CompleteProjectReq struct {
	RepositoryURL string `json:"repositoryUrl" binding:"required"`
	HostingURL    string `json:"hostingUrl"`
}

// CompleteProject godoc
// @Summary Submit the finished work
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Param data body CompleteProjectReq true "Where the work lives"
// @Success 200 {object} resputil.Response[ProjectResp] "The project"
// @Failure 400 {object} resputil.Response[any] "Missing or invalid URL"
// @Router /api/projects/{id}/complete [post]
func (mgr *ProjectMgr) CompleteProject(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req CompleteProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, err := mgr.projects.Complete(c, util.GetUser(c), uri.ID, lifecycle.CompleteInput{
		RepositoryURL: req.RepositoryURL,
		HostingURL:    req.HostingURL,
	})
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toProjectResp(p))
}

// DeliverProject godoc
// @Summary Accept the delivery
// @Description The client accepts the work; escrowed payments are released to the developer
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Success 200 {object} resputil.Response[ProjectResp] "The project"
// @Router /api/projects/{id}/deliver [post]
func (mgr *ProjectMgr) DeliverProject(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, err := mgr.projects.AcceptDelivery(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toProjectResp(p))
}

type CancelProjectReq struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// CancelProject godoc
// @Summary Cancel a project
// @Tags Project
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Param data body CancelProjectReq false "Why"
// @Success 200 {object} resputil.Response[ProjectResp] "The project"
// @Failure 409 {object} resputil.Response[any] "Project can no longer be cancelled"
// @Router /api/projects/{id}/cancel [post]
func (mgr *ProjectMgr) CancelProject(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req CancelProjectReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			resputil.BadRequestError(c, err.Error())
			return
		}
	}
	p, err := mgr.projects.Cancel(c, util.GetUser(c), uri.ID, req.Reason)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toProjectResp(p))
}

// ListProjectPayments godoc
// @Summary List the payments of a project
// @Tags Payment
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Success 200 {object} resputil.Response[[]PaymentResp] "Payments, oldest first"
// @Router /api/projects/{id}/payments [get]
func (mgr *ProjectMgr) ListProjectPayments(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	payments, err := mgr.payments.ListForProject(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, lo.Map(payments, func(p *model.Payment, _ int) PaymentResp { return toPaymentResp(p) }))
}
