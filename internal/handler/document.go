package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/payload"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/document"
	"github.com/sitecraft/sitecraft/pkg/lifecycle"
	"github.com/sitecraft/sitecraft/pkg/store"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewDocumentMgr)
}

type DocumentMgr struct {
	name     string
	projects *lifecycle.Service
	store    store.UserStore
	currency string
}

func NewDocumentMgr(conf *RegisterConfig) Manager {
	return &DocumentMgr{
		name:     "projects/:id/documents",
		projects: conf.Projects,
		store:    conf.Store,
		currency: conf.Currency,
	}
}

func (mgr *DocumentMgr) GetName() string { return mgr.name }

func (mgr *DocumentMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *DocumentMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("/invoice", mgr.GetInvoice)
	g.GET("/contract", mgr.GetContract)
}

func (mgr *DocumentMgr) RegisterAdmin(_ *gin.RouterGroup) {}

// GetInvoice godoc
// @Summary Download the project invoice
// @Tags Document
// @Produce application/pdf
// @Security Bearer
// @Param id path int true "project id"
// @Success 200 {file} binary "Invoice PDF"
// @Failure 400 {object} resputil.Response[any] "Project not accepted yet"
// @Router /api/projects/{id}/documents/invoice [get]
func (mgr *DocumentMgr) GetInvoice(c *gin.Context) {
	mgr.render(c, document.Invoice)
}

// GetContract godoc
// @Summary Download the project contract
// @Tags Document
// @Produce application/pdf
// @Security Bearer
// @Param id path int true "project id"
// @Success 200 {file} binary "Contract PDF"
// @Failure 400 {object} resputil.Response[any] "Project not accepted yet"
// @Router /api/projects/{id}/documents/contract [get]
func (mgr *DocumentMgr) GetContract(c *gin.Context) {
	mgr.render(c, document.Contract)
}

type buildFunc func(p *model.Project, client, developer *model.User, currency string) (*document.Document, error)

func (mgr *DocumentMgr) render(c *gin.Context, build buildFunc) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	user := util.GetUser(c)
	project, err := mgr.projects.Get(c, user, uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	if user.Role != model.RoleAdmin && !project.IsParticipant(user.ID) {
		// open projects are visible to every developer, their documents are not
		resputil.HTTPError(c, http.StatusForbidden, "not a participant of the project", resputil.UserNotAllowed)
		return
	}
	client, developer, err := parties(c, mgr.store, project)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	doc, err := build(project, client, developer, mgr.currency)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	sendPDF(c, doc)
}

// parties returns the client and developer of the project, loading them when
// the project was fetched without its associations.
func parties(ctx context.Context, users store.UserStore, p *model.Project) (client, developer *model.User, err error) {
	if p.Client.ID != 0 {
		client = &p.Client
	} else if client, err = users.GetUser(ctx, p.ClientID); err != nil {
		return nil, nil, fmt.Errorf("load client: %w", err)
	}
	switch {
	case p.Developer != nil:
		developer = p.Developer
	case p.DeveloperID != nil:
		if developer, err = users.GetUser(ctx, *p.DeveloperID); err != nil {
			return nil, nil, fmt.Errorf("load developer: %w", err)
		}
	}
	return client, developer, nil
}

func sendPDF(c *gin.Context, doc *document.Document) {
	out, err := document.Render(doc)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("render %s failed, detail: %v", doc.Kind, err), resputil.NotSpecified)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename()))
	c.Data(http.StatusOK, "application/pdf", out)
}
