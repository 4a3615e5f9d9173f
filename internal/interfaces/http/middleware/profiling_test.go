package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/telemetry"
)

func TestProfilingMiddleware_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(ProfilingWithConfig(ProfilingConfig{Enabled: false}))

	var route string
	r.GET("/api/v1/invoices", func(c *gin.Context) {
		route, _ = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, route)
}

func TestProfilingMiddleware_Labels(t *testing.T) {
	r := gin.New()
	r.Use(ProfilingWithConfig(DefaultProfilingConfig()))

	labels := map[string]string{}
	r.POST("/api/v1/invoices/:id/settle", func(c *gin.Context) {
		ctx := c.Request.Context()
		for _, key := range []string{telemetry.ProfilingLabelRoute, telemetry.ProfilingLabelMethod, profilingLabelResource} {
			if v, ok := pprof.Label(ctx, key); ok {
				labels[key] = v
			}
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/abc/settle", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1/invoices/:id/settle", labels[telemetry.ProfilingLabelRoute])
	assert.Equal(t, http.MethodPost, labels[telemetry.ProfilingLabelMethod])
	assert.Equal(t, "invoices", labels[profilingLabelResource])
}

func TestProfilingMiddleware_SkipPaths(t *testing.T) {
	r := gin.New()
	r.Use(ProfilingWithConfig(DefaultProfilingConfig()))

	labelled := true
	r.GET("/health", func(c *gin.Context) {
		_, labelled = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, labelled)
}

func TestExtractResourceFromRoute(t *testing.T) {
	tests := []struct {
		route    string
		expected string
	}{
		{"/api/v1/invoices", "invoices"},
		{"/api/v1/invoices/:id/payments", "invoices"},
		{"/api/v2/clients/:id/account", "clients"},
		{"/api/payments", "payments"},
		{"/v10/stock-items", "stock-items"},
		{"/api/v1/:id", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractResourceFromRoute(tt.route))
		})
	}
}

func TestIsVersionSegment(t *testing.T) {
	assert.True(t, isVersionSegment("v1"))
	assert.True(t, isVersionSegment("V10"))
	assert.False(t, isVersionSegment("v"))
	assert.False(t, isVersionSegment("vat"))
	assert.False(t, isVersionSegment("invoices"))
}
