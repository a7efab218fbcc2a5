package internal

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	docs "github.com/sitecraft/sitecraft/docs"
	"github.com/sitecraft/sitecraft/internal/handler"
	"github.com/sitecraft/sitecraft/internal/middleware"
	"github.com/sitecraft/sitecraft/pkg/monitor"
)

const (
	APIPrefix   = "/api"
	AdminPrefix = APIPrefix + "/admin"
)

type Backend struct {
	R *gin.Engine
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.R.ServeHTTP(w, r)
}

// Register builds the gin engine with every registered manager.
func Register(conf *handler.RegisterConfig) *Backend {
	s := new(Backend)
	s.R = gin.New()
	s.R.Use(gin.Logger(), gin.Recovery())

	// Load balancer health check
	s.R.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})
	s.R.GET("/metrics", gin.WrapH(monitor.Handler()))

	s.RegisterService(conf)

	// Swagger
	docs.SwaggerInfo.BasePath = "/"
	s.R.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return s
}

func (b *Backend) RegisterService(conf *handler.RegisterConfig) {
	// Enable CORS for the web app in debug mode
	if gin.Mode() == gin.DebugMode && conf.BaseURL != "" {
		corsConf := cors.DefaultConfig()
		corsConf.AllowOrigins = []string{strings.TrimRight(conf.BaseURL, "/")}
		corsConf.AllowCredentials = true
		corsConf.AddAllowHeaders("Authorization")
		b.R.Use(cors.New(corsConf))
	}

	managers := registerManagers(conf)

	///////////////////////////////////////
	//// Public routers, no need login ////
	///////////////////////////////////////

	publicRouter := b.R.Group(APIPrefix)
	for _, mgr := range managers {
		mgr.RegisterPublic(publicRouter.Group(mgr.GetName()))
	}

	///////////////////////////////////////
	//// Protected routers, need login ////
	///////////////////////////////////////

	protectedRouter := b.R.Group(APIPrefix)
	protectedRouter.Use(
		middleware.AuthIdentity(conf.TokenMgr, conf.CookieName),
		middleware.AuthProtected(conf.Store),
	)
	for _, mgr := range managers {
		mgr.RegisterProtected(protectedRouter.Group(mgr.GetName()))
	}

	///////////////////////////////////////
	//// Admin routers, need admin role ///
	///////////////////////////////////////

	adminRouter := b.R.Group(AdminPrefix)
	adminRouter.Use(
		middleware.AuthIdentity(conf.TokenMgr, conf.CookieName),
		middleware.AuthProtected(conf.Store),
		middleware.AuthAdmin(),
	)
	for _, mgr := range managers {
		mgr.RegisterAdmin(adminRouter.Group(mgr.GetName()))
	}
}
