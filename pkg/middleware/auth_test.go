package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(svc *JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", Auth(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(UserIDField),
			"role":    c.GetString(RoleField),
		})
	})
	return r
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), time.Hour)

	token, err := svc.GenerateToken("pat-1", "Alice Banda", "patient")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "pat-1", claims.UserID)
	assert.Equal(t, "Alice Banda", claims.Username)
	assert.Equal(t, "patient", claims.Role)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), -time.Minute)

	token, err := svc.GenerateToken("pat-1", "", "patient")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := NewJWTService([]byte("other-secret"), time.Hour).GenerateToken("pat-1", "", "patient")
	require.NoError(t, err)

	_, err = NewJWTService([]byte("test-secret"), time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthFromHeader(t *testing.T) {
	svc := NewJWTService([]byte("test-secret"), time.Hour)
	router := newAuthRouter(svc)

	token, err := svc.GenerateToken("hw-1", "", "health_worker")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hw-1")
}

func TestAuthFromQueryParam(t *testing.T) {
	// browsers cannot set headers on websocket upgrade requests
	svc := NewJWTService([]byte("test-secret"), time.Hour)
	router := newAuthRouter(svc)

	token, err := svc.GenerateToken("drv-1", "", "ambulance_driver")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/ws?token="+token, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "drv-1")
}

func TestAuthRejectsMissingToken(t *testing.T) {
	router := newAuthRouter(NewJWTService([]byte("test-secret"), time.Hour))

	req := httptest.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
