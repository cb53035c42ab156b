package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins))
	r.GET("/entries", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func corsRequest(r *gin.Engine, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/entries", nil)
	req.Header.Set("Origin", origin)
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		origins         []string
		method          string
		origin          string
		wantStatus      int
		wantAllowOrigin string
		wantCredentials string
	}{
		{
			name:            "Wildcard Never Sends Credentials",
			origins:         []string{"*"},
			method:          http.MethodGet,
			origin:          "https://evil.example",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "*",
		},
		{
			name:            "Listed Origin Is Echoed With Credentials",
			origins:         []string{"https://app.fintera.example"},
			method:          http.MethodGet,
			origin:          "https://app.fintera.example",
			wantStatus:      http.StatusOK,
			wantAllowOrigin: "https://app.fintera.example",
			wantCredentials: "true",
		},
		{
			name:       "Unlisted Origin Is Refused",
			origins:    []string{"https://app.fintera.example"},
			method:     http.MethodGet,
			origin:     "https://evil.example",
			wantStatus: http.StatusForbidden,
		},
		{
			name:            "Preflight From Listed Origin",
			origins:         []string{" https://app.fintera.example/ ", "not-an-origin"},
			method:          http.MethodOptions,
			origin:          "https://app.fintera.example",
			wantStatus:      http.StatusNoContent,
			wantAllowOrigin: "https://app.fintera.example",
			wantCredentials: "true",
		},
		{
			name:       "Empty List Denies Cross Origin",
			method:     http.MethodGet,
			origin:     "https://app.fintera.example",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := corsRequest(corsRouter(tt.origins...), tt.method, tt.origin)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredentials, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}
