package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/handler"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/collab"
	"github.com/sitecraft/sitecraft/pkg/cronjob"
	"github.com/sitecraft/sitecraft/pkg/gateway/paystack"
	"github.com/sitecraft/sitecraft/pkg/lifecycle"
	"github.com/sitecraft/sitecraft/pkg/meeting"
	"github.com/sitecraft/sitecraft/pkg/notify"
	"github.com/sitecraft/sitecraft/pkg/payment"
	"github.com/sitecraft/sitecraft/pkg/relay"
	"github.com/sitecraft/sitecraft/pkg/store/storetest"
)

const (
	testSecret  = "test-jwt-secret"
	testBaseURL = "https://sitecraft.example.com"
	paystackKey = "sk_test_key"
)

type stubGateway struct {
	mu  sync.Mutex
	txs map[string]paystack.Transaction
}

func (g *stubGateway) Initialize(_ context.Context, in paystack.InitializeRequest) (*paystack.Authorization, error) {
	return &paystack.Authorization{
		AuthorizationURL: "https://checkout.example.com/" + in.Reference,
		AccessCode:       "ac",
		Reference:        in.Reference,
	}, nil
}

func (g *stubGateway) Verify(_ context.Context, reference string) (*paystack.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	tx, ok := g.txs[reference]
	if !ok {
		return nil, fmt.Errorf("%w: unknown reference", paystack.ErrGateway)
	}
	return &tx, nil
}

func (g *stubGateway) Refund(context.Context, string, int64) error { return nil }

func (g *stubGateway) settle(reference string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.txs[reference] = paystack.Transaction{
		Status:    paystack.StatusSuccess,
		Reference: reference,
		Amount:    amount,
		Raw:       []byte(`{}`),
	}
}

type testServer struct {
	backend *Backend
	st      *storetest.Store
	gw      *stubGateway
	tokens  *util.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := storetest.New()
	gw := &stubGateway{txs: map[string]paystack.Transaction{}}

	conf := &handler.RegisterConfig{
		Store:      st,
		TokenMgr:   util.NewTokenManager(testSecret),
		CookieName: "sitecraft-access-token",
		BaseURL:    testBaseURL,
		Currency:   "NGN",
	}
	conf.Notifier = notify.NewDispatcher(st, nil, nil, testBaseURL, time.Second)
	conf.Payments = payment.NewOrchestrator(st, gw, conf.Notifier, payment.Options{
		Currency:      "NGN",
		CallbackURL:   testBaseURL + "/api/payments/verify",
		WebhookSecret: paystackKey,
	})
	conf.Projects = lifecycle.NewService(st, conf.Notifier, conf.Payments)
	conf.Meetings = meeting.NewService(st, conf.Notifier, "https://meet.example.com")
	conf.Hub = relay.NewHub(8)
	conf.Collab = collab.NewService(st, conf.Notifier, conf.Hub)
	conf.CronJobs = cronjob.NewCronJobManager(time.Second)

	return &testServer{backend: Register(conf), st: st, gw: gw, tokens: conf.TokenMgr}
}

func (s *testServer) token(t *testing.T, authID, email string) string {
	t.Helper()
	tok, err := s.tokens.CreateToken(util.Identity{AuthID: authID, Email: email, Name: authID}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.backend.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) resputil.Response[T] {
	t.Helper()
	var resp resputil.Response[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

type userData struct {
	User struct {
		ID   uint       `json:"id"`
		Role model.Role `json:"role"`
	} `json:"user"`
	Created bool `json:"created"`
}

type projectData struct {
	ID     uint                `json:"id"`
	Status model.ProjectStatus `json:"status"`
}

func (s *testServer) ensureUser(t *testing.T, token string, role model.Role) userData {
	t.Helper()
	w := s.do(http.MethodPost, "/api/ensure-user", token, map[string]any{"role": role})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[userData](t, w).Data
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sitecraft_relay_connections")
}

func TestAuthChain(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, resputil.TokenInvalid, decode[any](t, w).Code)

	expired, err := s.tokens.CreateToken(util.Identity{AuthID: "late"}, -time.Minute)
	require.NoError(t, err)
	w = s.do(http.MethodGet, "/api/users/me", expired, nil)
	assert.Equal(t, resputil.TokenExpired, decode[any](t, w).Code)

	tok := s.token(t, "auth|ada", "ada@example.com")
	w = s.do(http.MethodGet, "/api/users/me", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, resputil.MustRegister, decode[any](t, w).Code)

	first := s.ensureUser(t, tok, model.RoleClient)
	assert.True(t, first.Created)
	again := s.ensureUser(t, tok, model.RoleDeveloper)
	assert.False(t, again.Created)
	assert.Equal(t, first.User.ID, again.User.ID)
	assert.Equal(t, model.RoleClient, again.User.Role, "the role is only chosen once")

	w = s.do(http.MethodGet, "/api/users/me", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/admin/users", tok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, resputil.UserNotAllowed, decode[any](t, w).Code)
}

func TestEnsureUserRejectsAdminRole(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/ensure-user", s.token(t, "auth|eve", "eve@example.com"),
		map[string]any{"role": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectPaymentFlow(t *testing.T) {
	s := newTestServer(t)
	clientTok := s.token(t, "auth|client", "client@example.com")
	devTok := s.token(t, "auth|dev", "dev@example.com")
	s.ensureUser(t, clientTok, model.RoleClient)
	s.ensureUser(t, devTok, model.RoleDeveloper)

	w := s.do(http.MethodPost, "/api/projects", clientTok, map[string]any{
		"title":        "Bakery website",
		"requirements": "Menu, gallery and a contact form",
		"peopleCount":  2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	project := decode[projectData](t, w).Data
	assert.Equal(t, model.ProjectPendingReview, project.Status)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/accept", project.ID), clientTok,
		map[string]any{"finalCost": 100000, "durationDays": 14})
	assert.Equal(t, http.StatusForbidden, w.Code, "clients cannot accept")

	w = s.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/accept", project.ID), devTok,
		map[string]any{"finalCost": 100000, "durationDays": 14})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.ProjectApproved, decode[projectData](t, w).Data.Status)

	w = s.do(http.MethodPost, fmt.Sprintf("/api/projects/%d/start", project.ID), devTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "work cannot start before the initial payment")

	w = s.do(http.MethodPost, "/api/payments/initialize", clientTok,
		map[string]any{"projectId": project.ID, "paymentType": "initial"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	started := decode[struct {
		Reference        string `json:"reference"`
		AuthorizationURL string `json:"authorizationUrl"`
	}](t, w).Data
	require.NotEmpty(t, started.Reference)
	assert.True(t, strings.HasPrefix(started.AuthorizationURL, "https://checkout.example.com/"))

	s.gw.settle(started.Reference, paystack.ToMinor(payment.ChargeAmount(100000, model.PaymentInitial)))

	w = s.do(http.MethodGet, "/api/payments/verify?trxref="+started.Reference, "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, fmt.Sprintf("%s/dashboard/projects/%d?payment=success", testBaseURL, project.ID), w.Header().Get("Location"))

	w = s.do(http.MethodGet, fmt.Sprintf("/api/projects/%d", project.ID), clientTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.ProjectInProgress, decode[projectData](t, w).Data.Status)

	// a second redirect for the same reference is a no-op
	w = s.do(http.MethodGet, "/api/payments/verify?reference="+started.Reference, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "payment=success")
	assert.Len(t, s.st.Payments(), 1)
}

func TestVerifyRedirectErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/payments/verify", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, testBaseURL+"/dashboard?payment=error&reason=missing_reference", w.Header().Get("Location"))

	w = s.do(http.MethodGet, "/api/payments/verify?reference=SC-unknown", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "reason=payment_not_found")
}

func TestWebhookSignature(t *testing.T) {
	s := newTestServer(t)
	body := []byte(`{"event":"transfer.success","data":{"reference":"SC-x"}}`)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set(paystack.SignatureHeader, "deadbeef")
	w := httptest.NewRecorder()
	s.backend.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, resputil.SignatureInvalid, decode[any](t, w).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/payments/webhook", bytes.NewReader(body))
	req.Header.Set(paystack.SignatureHeader, paystack.Sign(body, paystackKey))
	w = httptest.NewRecorder()
	s.backend.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "events other than charge.success are acknowledged")
}

func TestContextSummary(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(t, "auth|client", "client@example.com")
	s.ensureUser(t, tok, model.RoleClient)
	w := s.do(http.MethodPost, "/api/projects", tok, map[string]any{"title": "Shop", "requirements": "Cart"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/context/summary", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode[struct {
		Projects map[model.ProjectStatus]int64 `json:"projects"`
	}](t, w).Data
	assert.Equal(t, int64(1), summary.Projects[model.ProjectPendingReview])
	assert.Zero(t, summary.Projects[model.ProjectCompleted])
}
