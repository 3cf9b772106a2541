package app

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AncientDemagogue/natours-api/internal/sdk/middleware"
	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
	"github.com/AncientDemagogue/natours-api/internal/services/sentry"
)

func writeError(c *gin.Context, status int, errCode string, details map[string]string) {
	response := gin.H{
		"error": errCode,
	}

	if len(details) > 0 {
		response["details"] = details
	}

	c.JSON(status, response)
}

// sendToken issues a fresh session token for the account, sets the
// session cookie and writes the response. The account's password hash
// never appears in the body (the model strips it from JSON).
func (a *App) sendToken(c *gin.Context, status int, account models.Account) {
	signed, err := a.codec.Sign(account.ID)
	if err != nil {
		a.toSentry(c, "send_token", "jwt", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_generate_token_error", nil)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, signed, int(a.cookieTTL.Seconds()), "/", "", a.cookieSecure, true)

	c.JSON(status, gin.H{
		"token":   signed,
		"account": account,
	})
}

// clearSessionCookie overwrites the session cookie with an
// already-expired dummy value.
func (a *App) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, "loggedout", -1, "/", "", a.cookieSecure, true)
}

// =============================================================================
func (a *App) toSentry(c *gin.Context, handler, errType string, level sentry.Level, err error) {
	a.sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("handler", handler)
		scope.SetExtra("error_type", errType)
		scope.SetLevel(level)
		if reqID := c.GetHeader("X-Request-ID"); reqID != "" {
			scope.SetTag("request_id", reqID)
		}
		a.sentry.CaptureException(err)
	})
}
