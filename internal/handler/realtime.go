package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sitecraft/sitecraft/internal/payload"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/collab"
	"github.com/sitecraft/sitecraft/pkg/config"
	"github.com/sitecraft/sitecraft/pkg/logutils"
	"github.com/sitecraft/sitecraft/pkg/relay"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewRealtimeMgr)
}

type RealtimeMgr struct {
	name     string
	collab   *collab.Service
	hub      *relay.Hub
	upgrader websocket.Upgrader
}

func NewRealtimeMgr(conf *RegisterConfig) Manager {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	appOrigin := strings.TrimRight(conf.BaseURL, "/")
	upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow all origins in debug mode
		if config.IsDebugMode() || origin == "" || origin == appOrigin {
			return true
		}
		return strings.HasSuffix(origin, "://"+r.Host)
	}
	return &RealtimeMgr{
		name:     "projects/:id/ws",
		collab:   conf.Collab,
		hub:      conf.Hub,
		upgrader: upgrader,
	}
}

func (mgr *RealtimeMgr) GetName() string { return mgr.name }

func (mgr *RealtimeMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *RealtimeMgr) RegisterProtected(g *gin.RouterGroup) {
	g.GET("", mgr.Subscribe)
}

func (mgr *RealtimeMgr) RegisterAdmin(_ *gin.RouterGroup) {}

// Subscribe godoc
// @Summary Join the realtime room of a project
// @Description Upgrades to a websocket that streams message, typing and read events. Browsers pass the token as a query parameter.
// @Tags Message
// @Security Bearer
// @Param id path int true "project id"
// @Param token query string false "access token"
// @Success 101 "Switching protocols"
// @Failure 403 {object} resputil.Response[any] "Not a participant"
// @Router /api/projects/{id}/ws [get]
func (mgr *RealtimeMgr) Subscribe(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	user := util.GetUser(c)
	if err := mgr.collab.CanJoin(c, user, uri.ID); err != nil {
		resputil.ServiceError(c, err)
		return
	}
	ws, err := mgr.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the response
		logutils.ForProject(uri.ID).Debugf("websocket upgrade: %v", err)
		return
	}
	relay.Serve(c.Request.Context(), ws, mgr.hub.Join(uri.ID, user.ID))
}
