package handler

import (
	"time"

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
	Registers = append(Registers, NewFileMgr)
}

// FileMgr records uploads. The browser uploads to the object store directly
// and then posts the resulting URL here.
type FileMgr struct {
	name   string
	collab *collab.Service
}

func NewFileMgr(conf *RegisterConfig) Manager {
	return &FileMgr{
		name:   "projects/:id",
		collab: conf.Collab,
	}
}

func (mgr *FileMgr) GetName() string { return mgr.name }

func (mgr *FileMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *FileMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/files", mgr.ListFiles)
	g.POST("/files", mgr.AddFile)
	g.GET("/deliverables", mgr.ListDeliverables)
	g.POST("/deliverables", mgr.AddDeliverable)
}

func (mgr *FileMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	FileReq struct {
		Name        string `json:"name" binding:"required,max=256"`
		URL         string `json:"url" binding:"required,max=1024"`
		Size        int64  `json:"size" binding:"min=0"`
		ContentType string `json:"contentType" binding:"max=128"`
		Description string `json:"description"` // 仅交付物使用
	}

	FileResp struct {
		ID          uint      `json:"id"`
		ProjectID   uint      `json:"projectId"`
		UploaderID  uint      `json:"uploaderId"`
		Name        string    `json:"name"`
		URL         string    `json:"url"`
		Size        int64     `json:"size"`
		ContentType string    `json:"contentType"`
		Description *string   `json:"description,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
	}
)

func (r FileReq) attachment() collab.Attachment {
	return collab.Attachment{
		Name:        r.Name,
		URL:         r.URL,
		Size:        r.Size,
		ContentType: r.ContentType,
		Description: r.Description,
	}
}

func toFileResp(f *model.ProjectFile) FileResp {
	return FileResp{
		ID:          f.ID,
		ProjectID:   f.ProjectID,
		UploaderID:  f.UploaderID,
		Name:        f.Name,
		URL:         f.URL,
		Size:        f.Size,
		ContentType: f.ContentType,
		CreatedAt:   f.CreatedAt,
	}
}

func toDeliverableResp(d *model.ProjectDeliverable) FileResp {
	return FileResp{
		ID:          d.ID,
		ProjectID:   d.ProjectID,
		UploaderID:  d.DeveloperID,
		Name:        d.Name,
		URL:         d.URL,
		Size:        d.Size,
		ContentType: d.ContentType,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}

// ListFiles godoc
// @Summary List requirement files
// @Tags File
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Success 200 {object} resputil.Response[[]FileResp] "Files"
// @Router /api/projects/{id}/files [get]
func (mgr *FileMgr) ListFiles(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	files, err := mgr.collab.ListFiles(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, lo.Map(files, func(f *model.ProjectFile, _ int) FileResp { return toFileResp(f) }))
}

// AddFile godoc
// @Summary Add a requirement file
// @Description The client records a document uploaded to the object store
// @Tags File
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Param data body FileReq true "File metadata"
// @Success 200 {object} resputil.Response[FileResp] "The file"
// @Failure 403 {object} resputil.Response[any] "Not the owner"
// @Router /api/projects/{id}/files [post]
func (mgr *FileMgr) AddFile(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req FileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	f, err := mgr.collab.AddFile(c, util.GetUser(c), uri.ID, req.attachment())
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toFileResp(f))
}

// ListDeliverables godoc
// @Summary List deliverables
// @Tags File
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Success 200 {object} resputil.Response[[]FileResp] "Deliverables"
// @Router /api/projects/{id}/deliverables [get]
func (mgr *FileMgr) ListDeliverables(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	items, err := mgr.collab.ListDeliverables(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, lo.Map(items, func(d *model.ProjectDeliverable, _ int) FileResp { return toDeliverableResp(d) }))
}

// AddDeliverable godoc
// @Summary Add a deliverable
// @Description The assigned developer records finished work
// @Tags File
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "project id"
// @Param data body FileReq true "Deliverable metadata"
// @Success 200 {object} resputil.Response[FileResp] "The deliverable"
// @Failure 403 {object} resputil.Response[any] "Not the assigned developer"
// @Failure 409 {object} resputil.Response[any] "Project is not in progress"
// @Router /api/projects/{id}/deliverables [post]
func (mgr *FileMgr) AddDeliverable(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var req FileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	d, err := mgr.collab.AddDeliverable(c, util.GetUser(c), uri.ID, req.attachment())
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toDeliverableResp(d))
}
