package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-ledger/pkg/logger"
)

// CORS builds the cross-origin policy from the configured allow-list. A "*"
// entry allows every origin without credentials; explicit origins are
// echoed back and may send credentials. An empty list denies cross-origin
// requests.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	corsConfig.AddAllowHeaders("Authorization", "Accept", "X-Requested-With")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.MaxAge = 24 * time.Hour

	origins := make([]string, 0, len(allowedOrigins))
	wildcard := false
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch {
		case o == "":
		case o == "*":
			wildcard = true
		case strings.HasPrefix(o, "http://"), strings.HasPrefix(o, "https://"):
			origins = append(origins, o)
		default:
			logger.Warn("Ignoring CORS origin without scheme", "origin", o)
		}
	}

	switch {
	case wildcard:
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	case len(origins) > 0:
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	default:
		corsConfig.AllowOriginFunc = func(string) bool { return false }
	}

	return cors.New(corsConfig)
}
