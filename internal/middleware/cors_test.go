package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func corsRouter(origins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins...))
	r.GET("/api/conversations", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func corsRequest(r http.Handler, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/conversations", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSOpenByDefault(t *testing.T) {
	r := corsRouter()

	preflight := corsRequest(r, http.MethodOptions, "https://anywhere.test")
	require.Equal(t, http.StatusNoContent, preflight.Code)
	require.Equal(t, "*", preflight.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, preflight.Header().Get("Access-Control-Allow-Methods"), "PATCH")
	require.Contains(t, preflight.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	get := corsRequest(r, http.MethodGet, "")
	require.Equal(t, http.StatusOK, get.Code)
	require.Equal(t, "*", get.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowList(t *testing.T) {
	r := corsRouter("https://app.mentorlink.dev/", " ")

	cases := []struct {
		origin string
		want   string
	}{
		{"https://app.mentorlink.dev", "https://app.mentorlink.dev"},
		{"HTTPS://APP.MENTORLINK.DEV", "HTTPS://APP.MENTORLINK.DEV"},
		{"https://evil.example.com", ""},
		{"", ""},
	}
	for _, tc := range cases {
		rec := corsRequest(r, http.MethodGet, tc.origin)
		require.Equal(t, tc.want, rec.Header().Get("Access-Control-Allow-Origin"), "origin %q", tc.origin)
	}
}
