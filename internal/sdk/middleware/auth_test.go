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

	"github.com/AncientDemagogue/natours-api/internal/sdk/models"
	"github.com/AncientDemagogue/natours-api/internal/sdk/sqldb/sqldbtest"
	"github.com/AncientDemagogue/natours-api/internal/services/credentials"
	"github.com/AncientDemagogue/natours-api/internal/services/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authFixture struct {
	db    *sqldbtest.Store
	store *credentials.Store
	codec *token.Codec
}

func newAuthFixture(t *testing.T) (*authFixture, models.Account) {
	t.Helper()

	db := sqldbtest.New()
	store := credentials.NewStore(db)
	codec := token.New(token.Config{
		Secret:   []byte("test-secret"),
		Issuer:   "natours-test",
		Validity: time.Hour,
	})

	account, err := store.Create(context.Background(), credentials.SignupInput{
		Name:            "Jonas",
		Email:           "jonas@example.com",
		Password:        "secret1234",
		PasswordConfirm: "secret1234",
	})
	require.NoError(t, err)

	return &authFixture{db: db, store: store, codec: codec}, account
}

func (f *authFixture) enforcingRouter() *gin.Engine {
	router := gin.New()
	router.GET("/protected", Authenticate(f.codec, f.store), func(c *gin.Context) {
		account, _ := CurrentAccount(c)
		c.JSON(http.StatusOK, gin.H{"id": account.ID})
	})
	return router
}

func (f *authFixture) optionalRouter() *gin.Engine {
	router := gin.New()
	router.GET("/page", MaybeAuthenticate(f.codec, f.store), func(c *gin.Context) {
		if account, ok := CurrentAccount(c); ok {
			c.JSON(http.StatusOK, gin.H{"id": account.ID})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": ""})
	})
	return router
}

func doGet(router *gin.Engine, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate_NoToken(t *testing.T) {
	f, _ := newAuthFixture(t)

	rec := doGet(f.enforcingRouter(), "/protected", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"not_authenticated"}`, rec.Body.String())
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	f, account := newAuthFixture(t)
	tok, err := f.codec.Sign(account.ID)
	require.NoError(t, err)

	rec := doGet(f.enforcingRouter(), "/protected", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), account.ID)
}

func TestAuthenticate_Cookie(t *testing.T) {
	f, account := newAuthFixture(t)
	tok, err := f.codec.Sign(account.ID)
	require.NoError(t, err)

	rec := doGet(f.enforcingRouter(), "/protected", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_TamperedToken(t *testing.T) {
	f, account := newAuthFixture(t)

	other := token.New(token.Config{
		Secret:   []byte("different-secret"),
		Issuer:   "natours-test",
		Validity: time.Hour,
	})
	tok, err := other.Sign(account.ID)
	require.NoError(t, err)

	rec := doGet(f.enforcingRouter(), "/protected", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"not_authenticated"}`, rec.Body.String())
}

func TestAuthenticate_AccountGone(t *testing.T) {
	f, account := newAuthFixture(t)
	tok, err := f.codec.Sign(account.ID)
	require.NoError(t, err)

	require.NoError(t, f.db.DeactivateAccount(context.Background(), account.ID))

	rec := doGet(f.enforcingRouter(), "/protected", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticate_StaleToken(t *testing.T) {
	f, account := newAuthFixture(t)
	tok, err := f.codec.Sign(account.ID)
	require.NoError(t, err)

	// Record a password change after the token's issue time.
	require.NoError(t, f.db.UpdatePassword(context.Background(), account.ID,
		account.Password, time.Now().Add(2*time.Second)))

	rec := doGet(f.enforcingRouter(), "/protected", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMaybeAuthenticate_Anonymous(t *testing.T) {
	f, _ := newAuthFixture(t)

	rec := doGet(f.optionalRouter(), "/page", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":""}`, rec.Body.String())
}

func TestMaybeAuthenticate_BadTokenFallsThrough(t *testing.T) {
	f, _ := newAuthFixture(t)

	rec := doGet(f.optionalRouter(), "/page", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer garbage")
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":""}`, rec.Body.String())
}

func TestMaybeAuthenticate_ValidToken(t *testing.T) {
	f, account := newAuthFixture(t)
	tok, err := f.codec.Sign(account.ID)
	require.NoError(t, err)

	rec := doGet(f.optionalRouter(), "/page", func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), account.ID)
}
