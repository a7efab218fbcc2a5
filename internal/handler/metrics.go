package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/pkg/lifecycle"
	"github.com/sitecraft/sitecraft/pkg/monitor"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewMetricsMgr)
}

type MetricsMgr struct {
	name     string
	projects *lifecycle.Service
}

func NewMetricsMgr(conf *RegisterConfig) Manager {
	return &MetricsMgr{
		name:     "metrics",
		projects: conf.Projects,
	}
}

func (mgr *MetricsMgr) GetName() string { return mgr.name }

func (mgr *MetricsMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *MetricsMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *MetricsMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.GET("", mgr.GetSummary)
	g.GET("/prometheus", mgr.GetMetrics)
}

type StatusCount struct {
	Status model.ProjectStatus `json:"status"`
	Count  int64               `json:"count"`
}

// GetSummary godoc
// @Summary 获取系统中每种Status的项目数量
// @Description 统计项目状态，同时刷新 Prometheus 仪表盘
// @Tags Metrics
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} resputil.Response[[]StatusCount] "成功返回"
// @Failure 500 {object} resputil.Response[any] "其他错误"
// @Router /api/admin/metrics [get]
func (mgr *MetricsMgr) GetSummary(c *gin.Context) {
	counts, err := mgr.projects.RefreshStatusGauge(c)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	out := make([]StatusCount, 0, len(lifecycle.Statuses))
	for _, status := range lifecycle.Statuses {
		out = append(out, StatusCount{Status: status, Count: counts[status]})
	}
	resputil.Success(c, out)
}

// GetMetrics godoc
// @Summary 获取最新的 Prometheus 指标
// @Description 先刷新项目状态仪表盘，再返回Prometheus能够识别的信息
// @Tags Metrics
// @Produce plain
// @Security Bearer
// @Success 200 {string} string "Prometheus text format"
// @Router /api/admin/metrics/prometheus [get]
func (mgr *MetricsMgr) GetMetrics(c *gin.Context) {
	if _, err := mgr.projects.RefreshStatusGauge(c); err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	// 暴露自定义指标
	monitor.Handler().ServeHTTP(c.Writer, c.Request)
}
