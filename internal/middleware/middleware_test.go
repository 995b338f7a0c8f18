package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/config"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/pkg/auth"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitWithWriter("test", "disabled", io.Discard)
}

type touchRecorder struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *touchRecorder) Touch(_ context.Context, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, userID)
}

func newRouter(jwtManager *auth.JWTManager, rdb *redis.Client, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(jwtManager, rdb)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.MustGet(ContextUserID).(uuid.UUID).String(),
			"role":    string(c.MustGet(ContextRole).(model.Role)),
		})
	})
	r.GET("/me", handlers...)
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	userID := uuid.New()
	token, err := jwtManager.GenerateToken(userID, "lan", string(model.RoleCustomer))
	require.NoError(t, err)

	r := newRouter(jwtManager, nil)

	w := get(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"`+userID.String()+`","role":"customer"}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "not-a-jwt").Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RevokedToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.GenerateToken(uuid.New(), "lan", string(model.RoleCustomer))
	require.NoError(t, err)

	r := newRouter(jwtManager, rdb)
	assert.Equal(t, http.StatusOK, get(r, token).Code)

	require.NoError(t, mr.Set(BlacklistKey(token), "1"))
	assert.Equal(t, http.StatusUnauthorized, get(r, token).Code)
}

func TestRequireRole(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	r := newRouter(jwtManager, nil, RequireRole(model.RoleAdmin))

	customer, _ := jwtManager.GenerateToken(uuid.New(), "lan", string(model.RoleCustomer))
	admin, _ := jwtManager.GenerateToken(uuid.New(), "root", string(model.RoleAdmin))

	assert.Equal(t, http.StatusForbidden, get(r, customer).Code)
	assert.Equal(t, http.StatusOK, get(r, admin).Code)
}

func TestPresenceTouch(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	tracker := &touchRecorder{}
	r := newRouter(jwtManager, nil, PresenceTouch(tracker))

	userID := uuid.New()
	token, _ := jwtManager.GenerateToken(userID, "minh", string(model.RoleDelivery))
	require.Equal(t, http.StatusOK, get(r, token).Code)
	assert.Equal(t, []uuid.UUID{userID}, tracker.ids)

	// Rejected requests never reach the tracker
	get(r, "")
	assert.Len(t, tracker.ids, 1)
}

func preflight(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORSMiddleware(t *testing.T) {
	listed := gin.New()
	listed.Use(CORSMiddleware(config.CORSConfig{Origins: []string{" https://app.example.com", ""}, MaxAge: time.Hour}))
	listed.POST("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := preflight(listed, "https://app.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = preflight(listed, "https://evil.example.com")
	assert.Equal(t, http.StatusForbidden, w.Code)

	open := gin.New()
	open.Use(CORSMiddleware(config.CORSConfig{Origins: []string{"*"}}))
	open.POST("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w = preflight(open, "https://anywhere.example.com")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}
