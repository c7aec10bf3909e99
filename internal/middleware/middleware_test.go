package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/izin-asrama-api/internal/leave"
	"github.com/noah-isme/izin-asrama-api/internal/models"
	appErrors "github.com/noah-isme/izin-asrama-api/pkg/errors"
)

type tokenStub map[string]*models.JWTClaims

func (s tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
}

type observerStub struct {
	paths    []string
	statuses []int
}

func (o *observerStub) ObserveHTTPRequest(_ string, path string, status int, _ time.Duration) {
	o.paths = append(o.paths, path)
	o.statuses = append(o.statuses, status)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	resolver, err := leave.NewResolver(leave.DefaultRoleConfig())
	require.NoError(t, err)

	tokens := tokenStub{
		"wali":     {UserID: "wali-1", Role: models.RoleWaliSantri},
		"ustadzah": {UserID: "ust-1", Role: models.RoleUstadzah},
	}
	r := gin.New()
	r.Use(WithResponseMeta())
	secured := r.Group("/", JWT(tokens))
	secured.GET("/report", RequireOperation(resolver, leave.OpReport), func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ExtractMeta(c))
	})
	secured.POST("/leaves", RequireOperation(resolver, leave.OpSubmit), func(c *gin.Context) {
		c.String(http.StatusCreated, Claims(c).UserID)
	})
	return r
}

func TestJWT(t *testing.T) {
	r := newRouter(t)
	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic wali", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer wali", http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/leaves", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireOperation(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	req.Header.Set("Authorization", "Bearer wali")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/report", nil)
	req.Header.Set("Authorization", "Bearer ustadzah")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache_hit":true`)

	req = httptest.NewRequest(http.MethodPost, "/leaves", nil)
	req.Header.Set("Authorization", "Bearer ustadzah")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestOptionalJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(OptionalJWT(tokenStub{"wali": {UserID: "wali-1", Role: models.RoleWaliSantri}}))
	r.GET("/", func(c *gin.Context) {
		if claims := Claims(c); claims != nil {
			c.String(http.StatusOK, claims.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anonymous", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer wali")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "wali-1", w.Body.String())
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/leaves/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/leaves/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	assert.Equal(t, []string{"/leaves/:id", "unmatched"}, obs.paths)
	assert.Equal(t, []int{http.StatusOK, http.StatusNotFound}, obs.statuses)
}
