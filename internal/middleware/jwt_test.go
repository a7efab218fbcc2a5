package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/store/storetest"
)

const cookieName = "sitecraft-access-token"

func newRouter(tm *util.TokenManager, st *storetest.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/identity", AuthIdentity(tm, cookieName), func(c *gin.Context) {
		c.String(http.StatusOK, util.GetIdentity(c).AuthID)
	})
	r.GET("/user", AuthIdentity(tm, cookieName), AuthProtected(st), func(c *gin.Context) {
		c.String(http.StatusOK, util.GetUser(c).Name)
	})
	r.GET("/admin", AuthIdentity(tm, cookieName), AuthProtected(st), AuthAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestTokenSources(t *testing.T) {
	tm := util.NewTokenManager("secret")
	r := newRouter(tm, storetest.New())
	tok, err := tm.CreateToken(util.Identity{AuthID: "auth|ada"}, time.Hour)
	require.NoError(t, err)

	requests := map[string]func() *http.Request{
		"header": func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/identity", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+tok)
			return req
		},
		"cookie": func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/identity", http.NoBody)
			req.AddCookie(&http.Cookie{Name: cookieName, Value: tok})
			return req
		},
		"query": func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/identity?token="+tok, http.NoBody)
		},
	}
	for name, build := range requests {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, build())
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "auth|ada", w.Body.String())
		})
	}

	for _, header := range []string{"", "Bearer", "Basic " + tok, "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/identity", http.NoBody)
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestProtectedAndAdmin(t *testing.T) {
	tm := util.NewTokenManager("secret")
	st := storetest.New()
	r := newRouter(tm, st)
	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, &model.User{AuthID: "auth|ada", Name: "Ada", Role: model.RoleClient}))
	require.NoError(t, st.CreateUser(ctx, &model.User{AuthID: "auth|root", Name: "Root", Role: model.RoleAdmin}))

	get := func(path, authID string) *httptest.ResponseRecorder {
		tok, err := tm.CreateToken(util.Identity{AuthID: authID}, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := get("/user", "auth|ada")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Ada", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get("/user", "auth|ghost").Code)
	assert.Equal(t, http.StatusForbidden, get("/admin", "auth|ada").Code)
	assert.Equal(t, http.StatusNoContent, get("/admin", "auth|root").Code)
}
