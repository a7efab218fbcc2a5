package operations

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/sitecraft/sitecraft/internal/resputil"
)

type CronjobConfigs struct {
	Name    string `json:"name" binding:"required"`
	Suspend bool   `json:"suspend"`
}

// UpdateCronjobConfig godoc
//
//	@Summary		Update cronjob config
//	@Description	Suspend or resume one cronjob
//	@Tags			Operations
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			use	body		CronjobConfigs			true	"CronjobConfigs"
//	@Success		200	{object}	resputil.Response[any]	"Success"
//	@Failure		400	{object}	resputil.Response[any]	"Request parameter error"
//	@Failure		404	{object}	resputil.Response[any]	"Unknown cronjob"
//	@Router			/api/admin/operations/cronjob [put]
func (mgr *OperationsMgr) UpdateCronjobConfig(c *gin.Context) {
	var req CronjobConfigs
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if err := mgr.cronJobManager.Suspend(req.Name, req.Suspend); err != nil {
		resputil.ServiceError(c, err)
		return
	}
	klog.Infof("cronjob %s suspend=%v", req.Name, req.Suspend)
	resputil.Success(c, "Successfully update cronjob config")
}

// GetCronjobConfigs godoc
//
//	@Summary		Get all cronjob configs
//	@Description	Get all cronjobs with their schedule and next run
//	@Tags			Operations
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Success		200	{object}	resputil.Response[[]cronjob.JobStatus]	"Success"
//	@Router			/api/admin/operations/cronjob [get]
func (mgr *OperationsMgr) GetCronjobConfigs(c *gin.Context) {
	resputil.Success(c, mgr.cronJobManager.Jobs())
}

type CronjobNameReq struct {
	Name string `uri:"name" binding:"required"`
}

// RunCronjob godoc
//
//	@Summary		Run a cronjob now
//	@Description	Execute one cronjob synchronously and return its record
//	@Tags			Operations
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			name	path		string									true	"cronjob name"
//	@Success		200		{object}	resputil.Response[cronjob.Record]	"Success"
//	@Failure		404		{object}	resputil.Response[any]				"Unknown cronjob"
//	@Router			/api/admin/operations/cronjob/{name}/run [post]
func (mgr *OperationsMgr) RunCronjob(c *gin.Context) {
	var req CronjobNameReq
	if err := c.ShouldBindUri(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	record, err := mgr.cronJobManager.RunNow(c, req.Name)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, record)
}

type CronjobRecordsReq struct {
	Names  string `form:"names"` // comma separated
	Status string `form:"status" binding:"omitempty,oneof=success failed"`
}

// GetCronjobRecords godoc
//
//	@Summary		Get cronjob records
//	@Description	Recent executions, newest first
//	@Tags			Operations
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			names	query		string									false	"comma separated cronjob names"
//	@Param			status	query		string									false	"success or failed"
//	@Success		200		{object}	resputil.Response[[]cronjob.Record]	"Success"
//	@Router			/api/admin/operations/cronjob/records [get]
func (mgr *OperationsMgr) GetCronjobRecords(c *gin.Context) {
	var req CronjobRecordsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	var names []string
	if req.Names != "" {
		names = strings.Split(req.Names, ",")
	}
	resputil.Success(c, mgr.cronJobManager.GetCronjobRecords(names, req.Status))
}

type ReconcileReq struct {
	OlderThanMinutes int `json:"olderThanMinutes" binding:"min=0"`
}

type ReconcileResp struct {
	Settled int `json:"settled"`
	Failed  int `json:"failed"`
}

// ReconcilePayments godoc
//
//	@Summary		Re-verify pending payments
//	@Description	Verify pending payments older than the given age with the gateway
//	@Tags			Operations
//	@Accept			json
//	@Produce		json
//	@Security		Bearer
//	@Param			use	body		ReconcileReq						false	"age threshold"
//	@Success		200	{object}	resputil.Response[ReconcileResp]	"Success"
//	@Router			/api/admin/operations/reconcile [post]
func (mgr *OperationsMgr) ReconcilePayments(c *gin.Context) {
	var req ReconcileReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			resputil.BadRequestError(c, err.Error())
			return
		}
	}
	settled, failed, err := mgr.payments.ReconcilePending(c, time.Duration(req.OlderThanMinutes)*time.Minute)
	if err != nil {
		resputil.Error(c, fmt.Sprintf("reconcile failed, detail: %v", err), resputil.NotSpecified)
		return
	}
	if _, err := mgr.projects.RefreshStatusGauge(c); err != nil {
		klog.Warningf("refresh project gauge: %v", err)
	}
	resputil.Success(c, ReconcileResp{Settled: settled, Failed: failed})
}
