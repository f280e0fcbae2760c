package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubVerifier map[string]*access.Principal

func (s stubVerifier) Verify(ctx context.Context, token string) (*access.Principal, error) {
	if p, ok := s[token]; ok {
		return p, nil
	}
	return nil, errors.New("invalid token")
}

var (
	adminPrincipal = &access.Principal{UserID: 1, Username: "root", Role: access.RoleAdmin}
	guardPrincipal = &access.Principal{UserID: 3, Username: "g", Role: access.RoleGuard}
)

func newRouter(t *testing.T, resource access.Resource, action access.Action, called *bool) *gin.Engine {
	t.Helper()

	table, err := access.NewTable(nil)
	require.NoError(t, err)

	verifier := stubVerifier{"admin-token": adminPrincipal, "guard-token": guardPrincipal}

	router := gin.New()
	router.Use(RequestID(logger.New("debug", "test")))
	router.GET("/resource",
		RequireAuth(verifier),
		RequireCapability(table, resource, action),
		func(c *gin.Context) {
			*called = true
			p, ok := GetPrincipal(c)
			require.True(t, ok)
			fromCtx, ok := PrincipalFromContext(c.Request.Context())
			require.True(t, ok)
			assert.Equal(t, p, fromCtx)
			c.JSON(http.StatusOK, gin.H{"filter": GetFilter(c).String(), "token": GetToken(c)})
		})
	return router
}

func doRequest(router http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	var called bool
	router := newRouter(t, access.ResourceBuilding, access.ActionList, &called)

	t.Run("missing token", func(t *testing.T) {
		called = false
		w := doRequest(router, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("unknown token", func(t *testing.T) {
		called = false
		w := doRequest(router, "forged")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/resource", nil)
		req.Header.Set("Authorization", "Token admin-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		called = false
		w := doRequest(router, "admin-token")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)
		assert.JSONEq(t, `{"filter":"any","token":"admin-token"}`, w.Body.String())
	})
}

func TestRequireCapability(t *testing.T) {
	t.Run("denied role never reaches the handler", func(t *testing.T) {
		var called bool
		router := newRouter(t, access.ResourceBuilding, access.ActionList, &called)

		w := doRequest(router, "guard-token")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.False(t, called)
		assert.Contains(t, w.Body.String(), "Permission denied: building:list")
	})

	t.Run("scoped grant stores the relation filter", func(t *testing.T) {
		var called bool
		router := newRouter(t, access.ResourceEntrance, access.ActionList, &called)

		w := doRequest(router, "guard-token")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, called)
		assert.JSONEq(t, `{"filter":"guard=3","token":"guard-token"}`, w.Body.String())
	})

	t.Run("without authentication", func(t *testing.T) {
		table, err := access.NewTable(nil)
		require.NoError(t, err)

		router := gin.New()
		router.GET("/resource", RequireCapability(table, access.ResourceBuilding, access.ActionList), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := doRequest(router, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetFilter_DefaultsToNothingVisible(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, access.RelationNone, GetFilter(c).Relation)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(logger.New("debug", "test")), RequestLogger())
	router.GET("/", func(c *gin.Context) {
		info, ok := audit.RequestInfoFromContext(c.Request.Context())
		require.True(t, ok)
		c.String(http.StatusOK, info.RequestID)
	})

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		id := w.Header().Get(RequestIDHeader)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("keeps a valid incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "3f1c1f6e-1d64-4b8c-9d6e-2b7f3c9a0e11")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "3f1c1f6e-1d64-4b8c-9d6e-2b7f3c9a0e11", w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "<script>")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
	})
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://app.example"}))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin gets no header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"), "buckets are per ip")

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("10.0.0.1"))

	now = now.Add(time.Hour)
	limiter.Allow("10.0.0.3")
	assert.Len(t, limiter.visitors, 1, "idle visitors are swept")

	t.Run("middleware", func(t *testing.T) {
		router := gin.New()
		router.POST("/login", NewIPRateLimiter(0.001, 1).Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

		first := httptest.NewRecorder()
		router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/login", nil))
		second := httptest.NewRecorder()
		router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/login", nil))

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
	})
}
