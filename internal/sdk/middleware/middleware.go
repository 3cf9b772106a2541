// Package middleware provides HTTP middleware for authentication and
// authorization.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
)

const accountKey = "account"

// CurrentAccount fetches the authenticated account from the request
// context. The second return is false when no session was resolved.
func CurrentAccount(c *gin.Context) (models.Account, bool) {
	val, ok := c.Get(accountKey)
	if !ok {
		return models.Account{}, false
	}

	account, ok := val.(models.Account)
	if !ok || account.ID == "" {
		return models.Account{}, false
	}

	return account, true
}

func setCurrentAccount(c *gin.Context, account models.Account) {
	c.Set(accountKey, account)
}
