package middlewarectx_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/lms-identity/internal/http/middlewarectx"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("allows requests within burst", func(t *testing.T) {
		handler := middlewarectx.RateLimitMiddleware(newNoopLogger(), rate.NewLimiter(rate.Every(time.Hour), 5))(okHandler())
		for range 5 {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/user/login", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("blocks requests exceeding burst", func(t *testing.T) {
		handler := middlewarectx.RateLimitMiddleware(newNoopLogger(), rate.NewLimiter(rate.Every(time.Hour), 1))(okHandler())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/user/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/user/login", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.JSONEq(t, `{"status":"Error","error":"too many requests"}`, rec.Body.String())
	})
}

func TestRateLimitMiddleware_ConcurrentRequests(t *testing.T) {
	handler := middlewarectx.RateLimitMiddleware(newNoopLogger(), rate.NewLimiter(rate.Every(time.Hour), 10))(okHandler())

	var ok, limited atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/user/reset", nil))
			if rec.Code == http.StatusOK {
				ok.Add(1)
			} else {
				limited.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), ok.Load())
	assert.Equal(t, int32(40), limited.Load())
}
