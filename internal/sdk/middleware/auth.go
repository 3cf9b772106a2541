package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
	"github.com/AncientDemagogue/natours-api/internal/services/credentials"
	"github.com/AncientDemagogue/natours-api/internal/services/token"
)

// SessionCookie is the http-only cookie carrying the session token.
const SessionCookie = "jwt"

// rejection reasons, logged but never sent to clients
const (
	reasonNoToken     = "no_token"
	reasonAccountGone = "account_gone"
	reasonStaleToken  = "stale_token"
)

// Authenticate resolves the session for protected routes: extract the
// token from the Authorization header or the session cookie, verify it,
// load the account, and reject tokens issued before the account's last
// password change. Every failure collapses into one uniform 401 body;
// the specific reason is only logged.
func Authenticate(codec *token.Codec, store *credentials.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, reason := resolveSession(c, codec, store)
		if reason != "" {
			slog.Info("authentication rejected",
				"reason", reason,
				"path", c.Request.URL.Path,
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
			c.Abort()
			return
		}

		setCurrentAccount(c, account)
		c.Next()
	}
}

// MaybeAuthenticate is the non-enforcing variant for routes that
// personalize output for logged-in callers. Any failure falls through
// to an anonymous continuation instead of rejecting.
func MaybeAuthenticate(codec *token.Codec, store *credentials.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if account, reason := resolveSession(c, codec, store); reason == "" {
			setCurrentAccount(c, account)
		}
		c.Next()
	}
}

// resolveSession runs the per-request state machine. An empty reason
// means authenticated; otherwise the reason names the failed step.
func resolveSession(c *gin.Context, codec *token.Codec, store *credentials.Store) (models.Account, string) {
	tokenString := extractToken(c)
	if tokenString == "" {
		return models.Account{}, reasonNoToken
	}

	claims, err := codec.Verify(tokenString)
	if err != nil {
		return models.Account{}, err.Error()
	}

	account, err := store.FindByID(c.Request.Context(), claims.Subject)
	if err != nil {
		// Covers deletion and deactivation after the token was issued.
		return models.Account{}, reasonAccountGone
	}

	if account.PasswordChangedAfter(claims.IssuedAt.Time) {
		return models.Account{}, reasonStaleToken
	}

	return account, ""
}

// extractToken pulls the session token from the Authorization header,
// falling back to the session cookie. The header wins when both are
// present.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1]
		}
		return ""
	}

	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}

	return ""
}
