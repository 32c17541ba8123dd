package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturation/internal/core/apperror"
	appctx "facturation/internal/core/context"
	"facturation/internal/infrastructure/cache"
	"facturation/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(), Trace(), Logger(logger.Nop()), ErrorHandler())
	for _, h := range handlers {
		r.Use(h)
	}
	return r
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestTrace_PropagatesRequestID(t *testing.T) {
	r := newEngine()
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = appctx.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}

func TestErrorHandler(t *testing.T) {
	r := newEngine()
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperror.NewIndexOutOfRange(3, 1))
		c.Abort()
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
		c.Abort()
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("kaboom")
	})

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{"/app", http.StatusNotFound, apperror.CodeIndexOutOfRange},
		{"/plain", http.StatusInternalServerError, apperror.CodeInternal},
		{"/panic", http.StatusInternalServerError, apperror.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

func TestIdempotency(t *testing.T) {
	store := cache.NewIdempotencyStore(time.Hour)
	r := newEngine(Idempotency(store))

	calls := 0
	r.POST("/ok", func(c *gin.Context) {
		calls++
		key := c.GetString(ContextIdempotencyKey)
		require.NoError(t, store.CompleteKey(key, http.StatusCreated, "application/json", gin.H{"calls": calls}))
		c.JSON(http.StatusCreated, gin.H{"calls": calls})
	})
	r.POST("/fail", func(c *gin.Context) {
		calls++
		_ = c.Error(apperror.NewValidation("bad"))
		c.Abort()
	})

	post := func(path, key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		if key != "" {
			req.Header.Set(HeaderIdempotencyKey, key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first := post("/ok", "k1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, first.Code)

	replay := post("/ok", "k1", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.JSONEq(t, first.Body.String(), replay.Body.String())
	assert.Equal(t, 1, calls)

	mismatch := post("/ok", "k1", `{"a":2}`)
	assert.Equal(t, http.StatusConflict, mismatch.Code)

	failed := post("/fail", "k2", `{}`)
	assert.Equal(t, http.StatusBadRequest, failed.Code)
	failedReplay := post("/fail", "k2", `{}`)
	assert.Equal(t, http.StatusBadRequest, failedReplay.Code)
	assert.Equal(t, 2, calls)

	post("/ok", "", `{"a":1}`)
	assert.Equal(t, 3, calls)
}
