package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
)

func gateRouter(account *models.Account, required ...models.Role) *gin.Engine {
	router := gin.New()
	router.GET("/gated",
		func(c *gin.Context) {
			if account != nil {
				setCurrentAccount(c, *account)
			}
		},
		RequireRoles(required...),
		func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		},
	)
	return router
}

func TestRequireRoles(t *testing.T) {
	cases := []struct {
		name     string
		role     models.Role
		required []models.Role
		want     int
	}{
		{"admin allowed", models.RoleAdmin, []models.Role{models.RoleAdmin, models.RoleLeadGuide}, http.StatusOK},
		{"lead-guide allowed", models.RoleLeadGuide, []models.Role{models.RoleAdmin, models.RoleLeadGuide}, http.StatusOK},
		{"user denied", models.RoleUser, []models.Role{models.RoleAdmin, models.RoleLeadGuide}, http.StatusForbidden},
		{"guide denied", models.RoleGuide, []models.Role{models.RoleAdmin}, http.StatusForbidden},
		{"exact single role", models.RoleGuide, []models.Role{models.RoleGuide}, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := models.Account{ID: "a1", Role: tc.role}
			router := gateRouter(&account, tc.required...)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gated", nil))

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireRoles_FailsClosedWithoutAccount(t *testing.T) {
	router := gateRouter(nil, models.RoleAdmin)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gated", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles_EmptySetDeniesEveryone(t *testing.T) {
	account := models.Account{ID: "a1", Role: models.RoleAdmin}
	router := gateRouter(&account)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gated", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
