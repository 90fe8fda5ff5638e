package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/scorecast/internal/config"
	"github.com/stemsi/scorecast/internal/response"
	"github.com/stemsi/scorecast/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(response.RequestIDMiddleware())
	return r
}

func errorCode(t *testing.T, body []byte) response.ErrCode {
	t.Helper()
	var env response.Response
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotNil(t, env.Error)
	return env.Error.Code
}

func TestRequireAdminJWT(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
	r := newEngine()
	r.GET("/protected", RequireAdminJWT(auth), func(c *gin.Context) {
		claims := GetClaims(c)
		require.NotNil(t, claims)
		c.String(http.StatusOK, string(claims.TokenType))
	})

	token, err := auth.GenerateAdminToken()
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   response.ErrCode
	}{
		{"missing", "", http.StatusUnauthorized, response.ErrTokenRequired},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized, response.ErrTokenRequired},
		{"invalid", "Bearer nope", http.StatusUnauthorized, response.ErrTokenInvalid},
		{"valid", "Bearer " + token, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + token, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, errorCode(t, w.Body.Bytes()))
			} else {
				assert.Equal(t, "admin", w.Body.String())
			}
		})
	}
}

func TestRequireAdminJWT_HeaderOnly(t *testing.T) {
	auth := service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
	r := newEngine()
	r.GET("/protected", RequireAdminJWT(auth), func(c *gin.Context) { c.Status(http.StatusOK) })

	token, err := auth.GenerateAdminToken()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.ErrTokenRequired, errorCode(t, w.Body.Bytes()))
	assert.Equal(t, "authorization header required", errNoToken.Error())
}

func TestGetClaims_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetClaims(c))
	c.Set(ContextKeyClaims, "not claims")
	assert.Nil(t, GetClaims(c))
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	rl.mu.Lock()
	assert.Empty(t, rl.visitors)
	rl.mu.Unlock()
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	r := newEngine()
	r.POST("/predict", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/predict", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body response.FlatError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, response.ErrRateLimitExceeded, body.Code)
	assert.Equal(t, response.GetMessage(response.ErrRateLimitExceeded), body.Error)

	rl.Stop() // idempotent
}

func TestRateLimiter_StopNil(t *testing.T) {
	var rl *RateLimiter
	assert.NotPanics(t, rl.Stop)
}

func TestRateLimiter_StopEndsCleanup(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.Stop()
	select {
	case <-rl.stop:
	default:
		t.Fatal("stop channel still open")
	}
}

func TestNoStore(t *testing.T) {
	r := newEngine()
	r.GET("/", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	r := newEngine()
	r.Use(AccessLog(zerolog.New(&buf)))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/items/7", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "access", entry["component"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/items/:id", entry["route"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, "rid-1", entry["request_id"])
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("student performance ", 100)
	r := newEngine()
	r.Use(BrotliWithConfig(BrotliConfig{MinLength: 512}))
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/chunked", func(c *gin.Context) {
		c.Status(http.StatusOK)
		_, _ = c.Writer.WriteString(large)
		_, _ = c.Writer.WriteString("tail")
	})
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	get := func(path, encoding string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if encoding != "" {
			req.Header.Set("Accept-Encoding", encoding)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}
	decode := func(t *testing.T, w *httptest.ResponseRecorder) string {
		t.Helper()
		out, err := io.ReadAll(brotli.NewReader(w.Body))
		require.NoError(t, err)
		return string(out)
	}

	t.Run("large body is compressed", func(t *testing.T) {
		w := get("/large", "gzip, br")
		assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
		assert.Equal(t, "Accept-Encoding", w.Header().Get("Vary"))
		assert.Less(t, w.Body.Len(), len(large))
		assert.Equal(t, large, decode(t, w))
	})

	t.Run("writes after compression starts stay compressed", func(t *testing.T) {
		w := get("/chunked", "br")
		assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
		assert.Equal(t, large+"tail", decode(t, w))
	})

	t.Run("small body is sent plain", func(t *testing.T) {
		w := get("/small", "br")
		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, "ok", w.Body.String())
	})

	t.Run("client without br", func(t *testing.T) {
		for _, enc := range []string{"", "gzip", "br;q=0"} {
			w := get("/large", enc)
			assert.Empty(t, w.Header().Get("Content-Encoding"), enc)
			assert.Equal(t, large, w.Body.String())
		}
	})
}
