package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/internal/resputil"
	"github.com/sitecraft/sitecraft/internal/util"
	"github.com/sitecraft/sitecraft/pkg/store"
)

// AuthIdentity verifies the access token minted by the auth provider. The
// token is read from the Authorization header, then the session cookie, then
// the token query parameter which browsers need for websockets.
func AuthIdentity(tm *util.TokenManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c.Request.Header.Get("Authorization"))
		if raw == "" && cookieName != "" {
			raw, _ = c.Cookie(cookieName)
		}
		if raw == "" {
			raw = c.Query("token")
		}
		if raw == "" {
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid token", resputil.TokenInvalid)
			c.Abort()
			return
		}

		id, err := tm.CheckToken(raw)
		if err != nil {
			code := resputil.TokenInvalid
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = resputil.TokenExpired
			}
			resputil.HTTPError(c, http.StatusUnauthorized, err.Error(), code)
			c.Abort()
			return
		}
		util.SetIdentity(c, id)
		c.Next()
	}
}

func bearer(header string) string {
	t := strings.Split(header, " ")
	if len(t) < 2 || t[0] != "Bearer" {
		return ""
	}
	return t[1]
}

// AuthProtected loads the user behind the verified identity. Callers that
// never registered through /api/ensure-user are rejected.
func AuthProtected(users store.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := util.GetIdentity(c)
		user, err := users.GetUserByAuthID(c, id.AuthID)
		if errors.Is(err, store.ErrNotFound) {
			resputil.HTTPError(c, http.StatusUnauthorized, "User not registered", resputil.MustRegister)
			c.Abort()
			return
		} else if err != nil {
			resputil.Error(c, err.Error(), resputil.NotSpecified)
			c.Abort()
			return
		}
		util.SetUser(c, user)
		c.Next()
	}
}

func AuthAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUser(c)
		if user == nil || user.Role != model.RoleAdmin {
			resputil.HTTPError(c, http.StatusForbidden, "Not Admin", resputil.UserNotAllowed)
			c.Abort()
			return
		}
		c.Next()
	}
}
