package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AncientDemagogue/natours-api/internal/sdk/middleware"
	"github.com/AncientDemagogue/natours-api/internal/services/credentials"
	"github.com/AncientDemagogue/natours-api/internal/services/sentry"
)

type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
	Role            string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" binding:"required"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

// HandleSignup creates an account and logs the caller in.
func (a *App) HandleSignup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	account, err := a.creds.Create(c.Request.Context(), credentials.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            req.Role,
	})
	if err != nil {
		switch {
		case credentials.IsValidationError(err):
			writeError(c, http.StatusBadRequest, errorCode(err), nil)
		case errors.Is(err, credentials.ErrAccountExists):
			writeError(c, http.StatusConflict, "account_already_exists", nil)
		default:
			a.toSentry(c, "signup", "db", sentry.LevelError, err)
			writeError(c, http.StatusInternalServerError, "internal_create_account_error", nil)
		}
		return
	}

	a.sendToken(c, http.StatusCreated, account)
}

// HandleLogin verifies credentials and issues a session token. Unknown
// email and wrong password produce the same response.
func (a *App) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(c, http.StatusBadRequest, "missing_email_or_password", nil)
		return
	}

	account, err := a.creds.FindByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, credentials.ErrAccountNotFound) && !errors.Is(err, credentials.ErrEmailInvalid) {
			a.toSentry(c, "login", "db", sentry.LevelError, err)
			writeError(c, http.StatusInternalServerError, "internal_login_error", nil)
			return
		}
		writeError(c, http.StatusUnauthorized, "incorrect_email_or_password", nil)
		return
	}

	if !a.creds.VerifyPassword(account, req.Password) {
		writeError(c, http.StatusUnauthorized, "incorrect_email_or_password", nil)
		return
	}

	a.sendToken(c, http.StatusOK, account)
}

// HandleLogout clears the session cookie.
func (a *App) HandleLogout(c *gin.Context) {
	a.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// HandleForgotPassword runs the reset request phase. An unknown email
// is reported as 404; this reveals account existence and is a known,
// accepted tradeoff of the API.
func (a *App) HandleForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	err := a.reset.Request(c.Request.Context(), req.Email, a.resetURLBase(c))
	if err != nil {
		switch {
		case errors.Is(err, credentials.ErrAccountNotFound):
			writeError(c, http.StatusNotFound, "no_account_with_that_email", nil)
		case errors.Is(err, credentials.ErrEmailInvalid):
			writeError(c, http.StatusBadRequest, "invalid_email", nil)
		case errors.Is(err, credentials.ErrDeliveryFailed):
			a.toSentry(c, "forgot_password", "email", sentry.LevelError, err)
			writeError(c, http.StatusInternalServerError, "error_sending_email", nil)
		default:
			a.toSentry(c, "forgot_password", "db", sentry.LevelError, err)
			writeError(c, http.StatusInternalServerError, "internal_reset_request_error", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token sent to email"})
}

// HandleResetPassword runs the reset consume phase and logs the caller
// in with a fresh token. Wrong, expired and reused tokens all get the
// same generic answer.
func (a *App) HandleResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	account, err := a.reset.Consume(c.Request.Context(), c.Param("token"), req.Password, req.PasswordConfirm)
	if err != nil {
		switch {
		case credentials.IsValidationError(err):
			writeError(c, http.StatusBadRequest, errorCode(err), nil)
		case errors.Is(err, credentials.ErrResetTokenInvalid):
			writeError(c, http.StatusBadRequest, "invalid_or_expired_reset_token", nil)
		default:
			a.toSentry(c, "reset_password", "db", sentry.LevelError, err)
			writeError(c, http.StatusInternalServerError, "internal_reset_password_error", nil)
		}
		return
	}

	a.sendToken(c, http.StatusOK, account)
}

// HandleUpdatePassword changes the password of the authenticated
// account after checking the current one, then re-issues a token so
// the caller's session survives its own cutoff.
func (a *App) HandleUpdatePassword(c *gin.Context) {
	account, ok := middleware.CurrentAccount(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "not_authenticated", nil)
		return
	}

	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_body", nil)
		return
	}

	if !a.creds.VerifyPassword(account, req.PasswordCurrent) {
		writeError(c, http.StatusUnauthorized, "incorrect_current_password", nil)
		return
	}

	updated, err := a.creds.SetPassword(c.Request.Context(), account, req.Password, req.PasswordConfirm)
	if err != nil {
		if credentials.IsValidationError(err) {
			writeError(c, http.StatusBadRequest, errorCode(err), nil)
			return
		}
		a.toSentry(c, "update_password", "db", sentry.LevelError, err)
		writeError(c, http.StatusInternalServerError, "internal_update_password_error", nil)
		return
	}

	a.sendToken(c, http.StatusOK, updated)
}

// resetURLBase rebuilds the public reset endpoint from the inbound
// request, honoring a proxy's forwarded scheme.
func (a *App) resetURLBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/api/v1/users/resetPassword", scheme, c.Request.Host)
}

// errorCode maps a validation error onto its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, credentials.ErrPasswordMismatch):
		return "password_mismatch"
	case errors.Is(err, credentials.ErrPasswordTooShort):
		return "password_too_short"
	case errors.Is(err, credentials.ErrEmailInvalid):
		return "invalid_email"
	case errors.Is(err, credentials.ErrNameRequired):
		return "name_required"
	case errors.Is(err, credentials.ErrInvalidRole):
		return "invalid_role"
	}
	return "validation_error"
}
