package util

import (
	"github.com/gin-gonic/gin"

	"github.com/sitecraft/sitecraft/dao/model"
)

const (
	IdentityKey = "x-identity"
	UserKey     = "x-user"
)

func SetIdentity(c *gin.Context, id Identity) {
	c.Set(IdentityKey, id)
}

func GetIdentity(c *gin.Context) Identity {
	v, _ := c.Get(IdentityKey)
	id, _ := v.(Identity)
	return id
}

func SetUser(c *gin.Context, user *model.User) {
	c.Set(UserKey, user)
}

// GetUser returns the user loaded by middleware.AuthProtected.
func GetUser(c *gin.Context) *model.User {
	v, _ := c.Get(UserKey)
	user, _ := v.(*model.User)
	return user
}
