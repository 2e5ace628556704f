package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/remembrance/memorial-backend/internal/domain"
	"github.com/remembrance/memorial-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCookie = "memorial_jwt"

func newAuthRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/whoami", func(c *gin.Context) {
		actor := GetActor(c)
		c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID, "role": actor.Role, "nickname": GetNickname(c)})
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	manager := jwt.NewManager("test-secret", 3600)
	token, err := manager.GenerateAccessToken("u1", "Kim", domain.RoleAdmin)
	require.NoError(t, err)
	r := newAuthRouter(JWTAuth(manager, testCookie))

	tests := []struct {
		name   string
		setup  func(req *http.Request)
		status int
	}{
		{"bearer", func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(req *http.Request) { req.AddCookie(&http.Cookie{Name: testCookie, Value: token}) }, http.StatusOK},
		{"missing", func(req *http.Request) {}, http.StatusUnauthorized},
		{"bad scheme", func(req *http.Request) { req.Header.Set("Authorization", "Token "+token) }, http.StatusUnauthorized},
		{"garbage", func(req *http.Request) { req.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			tt.setup(req)
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
				assert.Contains(t, w.Body.String(), `"role":"admin"`)
			}
		})
	}
}

func TestJWTAuth_DefaultsRoleToUser(t *testing.T) {
	manager := jwt.NewManager("test-secret", 3600)
	token, err := manager.GenerateAccessToken("u2", "", "")
	require.NoError(t, err)
	r := newAuthRouter(JWTAuth(manager, testCookie))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"user"`)
}

func TestOptionalAuth(t *testing.T) {
	manager := jwt.NewManager("test-secret", 3600)
	token, err := manager.GenerateAccessToken("u1", "Kim", domain.RoleUser)
	require.NoError(t, err)
	r := newAuthRouter(OptionalAuth(manager, testCookie))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer broken")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":""`)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"user_id":"u1"`)
}
