// Package app provides HTTP handlers for the account service.
package app

import (
	"github.com/gin-gonic/gin"

	"github.com/AncientDemagogue/natours-api/internal/sdk/middleware"
	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
)

// ----------------------------------------------------------------------------
// Route Registration
// ----------------------------------------------------------------------------

func (a *App) RegisterRoutes() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS())

	v1 := router.Group("/api/v1")
	{
		health := v1.Group("/health")
		{
			health.GET("/readiness", a.HandleReadiness)
			health.GET("/liveness", a.HandleLiveness)
		}

		// Personalization probe: never rejects anonymous callers.
		v1.GET("/session", middleware.MaybeAuthenticate(a.codec, a.creds), a.HandleSession)

		users := v1.Group("/users")
		{
			users.POST("/signup", a.HandleSignup)
			users.POST("/login", a.HandleLogin)
			users.GET("/logout", a.HandleLogout)
			users.POST("/forgotPassword", a.HandleForgotPassword)
			users.PATCH("/resetPassword/:token", a.HandleResetPassword)

			authed := users.Group("")
			authed.Use(middleware.Authenticate(a.codec, a.creds))
			{
				authed.GET("/me", a.HandleMe)
				authed.PATCH("/updateMyPassword", a.HandleUpdatePassword)
				authed.DELETE("/deleteMe", a.HandleDeactivateMe)

				staff := authed.Group("")
				staff.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleLeadGuide))
				{
					staff.GET("", a.HandleListAccounts)
				}
			}
		}
	}

	return router
}
