package app

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AncientDemagogue/natours-api/internal/sdk/middleware"
	"github.com/AncientDemagogue/natours-api/internal/services/credentials"
	"github.com/AncientDemagogue/natours-api/internal/services/sentry"
)

// HandleMe returns the authenticated account.
func (a *App) HandleMe(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not_authenticated", nil)
		return
	}

	c.JSON(http.StatusOK, account)
}

// HandleSession reports whether a valid session accompanied the
// request. It sits behind the non-enforcing resolver, so anonymous
// callers get a normal 200 instead of a rejection.
func (a *App) HandleSession(c *gin.Context) {
	if account, ok := middleware.CurrentAccount(c); ok {
		c.JSON(http.StatusOK, gin.H{
			"authenticated": true,
			"account":       account,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}

// HandleDeactivateMe soft-deletes the authenticated account. The row
// survives but disappears from every authentication lookup.
func (a *App) HandleDeactivateMe(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not_authenticated", nil)
		return
	}

	if err := a.creds.Deactivate(c.Request.Context(), account.ID); err != nil {
		if !errors.Is(err, credentials.ErrAccountNotFound) {
			a.toSentry(c, "deactivate_me", "db", sentry.LevelError, err)
			writeError(c, http.StatusInternalServerError, "internal_deactivate_error", nil)
			return
		}
	}

	a.clearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

// HandleListAccounts lists active accounts. Gated to admin and
// lead-guide roles.
func (a *App) HandleListAccounts(c *gin.Context) {
	accounts, err := a.creds.List(c.Request.Context())
	if err != nil {
		a.toSentry(c, "list_accounts", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_list_accounts_error", nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results":  len(accounts),
		"accounts": accounts,
	})
}
