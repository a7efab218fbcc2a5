package handler

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/payload"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/document"
	"github.com/sitecraft/sitecraft/pkg/gateway/paystack"
	"github.com/sitecraft/sitecraft/pkg/logutils"
	"github.com/sitecraft/sitecraft/pkg/payment"
	"github.com/sitecraft/sitecraft/pkg/store"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewPaymentMgr)
}

const maxWebhookBody = 1 << 20

type PaymentMgr struct {
	name     string
	payments *payment.Orchestrator
	store    store.UserStore
	baseURL  string
}

func NewPaymentMgr(conf *RegisterConfig) Manager {
	return &PaymentMgr{
		name:     "payments",
		payments: conf.Payments,
		store:    conf.Store,
		baseURL:  conf.BaseURL,
	}
}

func (mgr *PaymentMgr) GetName() string { return mgr.name }

func (mgr *PaymentMgr) RegisterPublic(g *gin.RouterGroup) {
	g.GET("/verify", mgr.VerifyPayment)
	g.POST("/webhook", mgr.Webhook)
}

func (mgr *PaymentMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/initialize", mgr.InitializePayment)
	g.GET("/:id", mgr.GetPayment)
	g.GET("/:id/receipt", mgr.GetReceipt)
}

func (mgr *PaymentMgr) RegisterAdmin(g *gin.RouterGroup) {
	g.POST("/:id/refund", mgr.RefundPayment)
}

type PaymentResp struct {
	ID               uint                `json:"id"`
	ProjectID        uint                `json:"projectId"`
	PayerID          uint                `json:"payerId"`
	BaseAmount       float64             `json:"baseAmount"`
	Amount           float64             `json:"amount"`
	Currency         string              `json:"currency"`
	PaymentType      model.PaymentType   `json:"paymentType"`
	Status           model.PaymentStatus `json:"status"`
	Reference        string              `json:"reference"`
	AuthorizationURL string              `json:"authorizationUrl,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
	PaidAt           *time.Time          `json:"paidAt"`
	EscrowedAt       *time.Time          `json:"escrowedAt"`
	ReleasedAt       *time.Time          `json:"releasedAt"`
	RefundedAt       *time.Time          `json:"refundedAt"`
}

func toPaymentResp(p *model.Payment) PaymentResp {
	resp := PaymentResp{
		ID:          p.ID,
		ProjectID:   p.ProjectID,
		PayerID:     p.PayerID,
		BaseAmount:  p.BaseAmount,
		Amount:      p.Amount,
		Currency:    p.Currency,
		PaymentType: p.PaymentType,
		Status:      p.Status,
		Reference:   p.Reference,
		CreatedAt:   p.CreatedAt,
		PaidAt:      p.PaidAt,
		EscrowedAt:  p.EscrowedAt,
		ReleasedAt:  p.ReleasedAt,
		RefundedAt:  p.RefundedAt,
	}
	if p.Status == model.PaymentPending {
		resp.AuthorizationURL = p.AuthorizationURL
	}
	return resp
}

type InitializePaymentReq struct {
	ProjectID   uint    `json:"projectId" binding:"required"`
	Amount      float64 `json:"amount" binding:"min=0"`
	PaymentType string  `json:"paymentType"` // initial, final or full; anything else is full
}

type InitializePaymentResp struct {
	Payment          PaymentResp `json:"payment"`
	AuthorizationURL string      `json:"authorizationUrl"`
	AccessCode       string      `json:"accessCode"`
	Reference        string      `json:"reference"`
}

// InitializePayment godoc
// @Summary Start a payment
// @Description The client opens a gateway transaction for the initial, final or full share of the project cost
// @Tags Payment
// @Accept json
// @Produce json
// @Security Bearer
// @Param data body InitializePaymentReq true "Payment"
// @Success 200 {object} resputil.Response[InitializePaymentResp] "Where to send the client"
// @Failure 400 {object} resputil.Response[any] "Project not payable"
// @Failure 409 {object} resputil.Response[any] "Already paid"
// @Failure 502 {object} resputil.Response[any] "Gateway error"
// @Router /api/payments/initialize [post]
func (mgr *PaymentMgr) InitializePayment(c *gin.Context) {
	var req InitializePaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	res, err := mgr.payments.Initialize(c, util.GetUser(c), payment.InitializeInput{
		ProjectID:   req.ProjectID,
		Amount:      req.Amount,
		PaymentType: payment.NormalizeType(req.PaymentType),
	})
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, InitializePaymentResp{
		Payment:          toPaymentResp(res.Payment),
		AuthorizationURL: res.AuthorizationURL,
		AccessCode:       res.AccessCode,
		Reference:        res.Reference,
	})
}

type VerifyPaymentReq struct {
	Reference string `form:"reference"`
	TrxRef    string `form:"trxref"`
}

// VerifyPayment godoc
// @Summary Gateway redirect after checkout
// @Description Verifies the transaction and redirects the browser back to the dashboard
// @Tags Payment
// @Param reference query string false "gateway reference"
// @Param trxref query string false "gateway reference, legacy name"
// @Success 302 "Redirect to the project page or the dashboard with an error reason"
// @Router /api/payments/verify [get]
func (mgr *PaymentMgr) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentReq
	_ = c.ShouldBindQuery(&req)
	reference := firstNonEmpty(req.Reference, req.TrxRef)
	if reference == "" {
		c.Redirect(http.StatusFound, mgr.failureURL("missing_reference"))
		return
	}

	res, err := mgr.payments.Verify(c, reference)
	if err != nil {
		logutils.ForPayment(reference).Warnf("verify on redirect: %v", err)
		c.Redirect(http.StatusFound, mgr.failureURL(payment.ReasonCode(err)))
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("%s/dashboard/projects/%d?payment=success", mgr.baseURL, res.Project.ID))
}

func (mgr *PaymentMgr) failureURL(reason string) string {
	return mgr.baseURL + "/dashboard?payment=error&reason=" + url.QueryEscape(reason)
}

// Webhook godoc
// @Summary Gateway webhook
// @Description Receives signed gateway events; charge.success settles the payment
// @Tags Payment
// @Accept json
// @Produce json
// @Param x-paystack-signature header string true "hex HMAC-SHA512 of the body"
// @Success 200 {object} resputil.Response[any] "Event accepted"
// @Failure 401 {object} resputil.Response[any] "Bad signature"
// @Router /api/payments/webhook [post]
func (mgr *PaymentMgr) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		resputil.BadRequestError(c, "read body failed")
		return
	}
	err = mgr.payments.HandleWebhook(c, body, c.GetHeader(paystack.SignatureHeader))
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, nil)
}

// GetPayment godoc
// @Summary Get a payment
// @Tags Payment
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "payment id"
// @Success 200 {object} resputil.Response[PaymentResp] "The payment"
// @Failure 404 {object} resputil.Response[any] "Payment not found"
// @Router /api/payments/{id} [get]
func (mgr *PaymentMgr) GetPayment(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, _, err := mgr.payments.Get(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toPaymentResp(p))
}

// GetReceipt godoc
// @Summary Download a payment receipt
// @Tags Document
// @Produce application/pdf
// @Security Bearer
// @Param id path int true "payment id"
// @Success 200 {file} binary "Receipt PDF"
// @Failure 400 {object} resputil.Response[any] "Payment not settled"
// @Router /api/payments/{id}/receipt [get]
func (mgr *PaymentMgr) GetReceipt(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, project, err := mgr.payments.Get(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	client, developer, err := parties(c, mgr.store, project)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	doc, err := document.Receipt(project, client, developer, p)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	sendPDF(c, doc)
}

// RefundPayment godoc
// @Summary Refund an escrowed payment
// @Tags Payment
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "payment id"
// @Success 200 {object} resputil.Response[PaymentResp] "The refunded payment"
// @Failure 400 {object} resputil.Response[any] "Payment is not escrowed"
// @Failure 502 {object} resputil.Response[any] "Gateway error"
// @Router /api/admin/payments/{id}/refund [post]
func (mgr *PaymentMgr) RefundPayment(c *gin.Context) {
	var uri payload.IDReq
	if err := c.ShouldBindUri(&uri); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	p, err := mgr.payments.Refund(c, util.GetUser(c), uri.ID)
	if err != nil {
		resputil.ServiceError(c, err)
		return
	}
	resputil.Success(c, toPaymentResp(p))
}
