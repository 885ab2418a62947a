package controlplane

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/openmined/storagebrowser/internal/metrics"
	slogGin "github.com/samber/slog-gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const ctxAuthenticated = "authenticated"

var corsConfig = cors.Config{
	AllowAllOrigins: true,
	AllowMethods:    []string{"GET", "POST", "DELETE", "HEAD"},
	AllowHeaders: []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Authorization",
	},
	MaxAge: 12 * time.Hour,
}

func CORS() gin.HandlerFunc {
	return cors.New(corsConfig)
}

// Gzip compresses responses except the progress stream and the scrape endpoint.
func Gzip() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{eventsRoute, metricsRoute}),
	)
}

// SecurityHeaders sets the browser hardening headers. The control plane is
// served over plain http on loopback, so there is no TLS redirect.
func SecurityHeaders() gin.HandlerFunc {
	return secure.New(secure.Config{
		IsDevelopment:         false,
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		IENoOpen:              true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'",
	})
}

func Logger() gin.HandlerFunc {
	httpLogger := slog.Default().WithGroup("http")

	return slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelDebug,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	})
}

// RateLimiter limits requests per client IP. formattedRate uses the limiter
// notation, e.g. "20-S".
func RateLimiter(formattedRate string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formattedRate)
	if err != nil {
		return nil, err
	}

	return mgin.NewMiddleware(
		limiter.New(memory.NewStore(), rate),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			c.PureJSON(http.StatusTooManyRequests, ErrorResponse{
				Code:  ErrCodeRateLimited,
				Error: "rate limit exceeded",
			})
		}),
	), nil
}

// TokenAuth accepts the token as a bearer header or a "token" query parameter.
// An empty token disables the check.
func TokenAuth(token string) gin.HandlerFunc {
	if token == "" {
		slog.Warn("control plane auth disabled")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if got == "" {
			got = c.Query("token")
		}

		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			slog.Debug("control plane invalid token", "ip", c.ClientIP(), "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:  ErrCodeUnauthorized,
				Error: "unauthorized",
			})
			return
		}

		c.Set(ctxAuthenticated, true)
		c.Next()
	}
}

// Metrics counts requests by matched route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordControlPlaneRequest(c.Request.Method, route, c.Writer.Status())
	}
}
