package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltventures961/Invoice-app-sub000/internal/interfaces/http/dto"
)

func TestHandleValidationError(t *testing.T) {
	type paymentRequest struct {
		Amount string `json:"amount" binding:"required"`
		Source string `json:"source" binding:"omitempty,oneof=new client_account"`
		Notes  string `json:"notes" binding:"max=5"`
	}

	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req paymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	post := func(t *testing.T, body string) (*httptest.ResponseRecorder, dto.Response) {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-validation")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return w, resp
	}

	t.Run("field errors use json names", func(t *testing.T) {
		w, resp := post(t, `{"source": "cash", "notes": "far too long"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-validation", resp.Error.RequestID)

		byField := map[string]dto.ValidationDetail{}
		for _, d := range resp.Error.Details {
			byField[d.Field] = d
		}
		assert.Equal(t, "This field is required", byField["amount"].Message)
		assert.Equal(t, "Must be one of: new client_account", byField["source"].Message)
		assert.Equal(t, "Must be at most 5 characters", byField["notes"].Message)
	})

	t.Run("malformed json is not a field error", func(t *testing.T) {
		w, resp := post(t, `{"amount": `)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
		assert.Empty(t, resp.Error.Details)
	})

	t.Run("valid request passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"amount": "10.00", "source": "new"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
