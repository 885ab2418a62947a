package controlplane

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/storagebrowser/internal/metrics"
)

const (
	DefaultRateLimit = "20-S"

	metricsRoute = "/metrics"
	eventsRoute  = "/v1/uploads/events"
)

type RouteConfig struct {
	AuthToken string
	// RateLimit uses the limiter notation, "20-S" is 20 requests per second.
	RateLimit     string
	EventInterval time.Duration
}

func SetupRoutes(h *Handlers, cfg RouteConfig) (http.Handler, error) {
	if cfg.RateLimit == "" {
		cfg.RateLimit = DefaultRateLimit
	}
	rateLimiter, err := RateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(gin.Recovery())
	r.Use(Logger())
	r.Use(Metrics())
	r.Use(SecurityHeaders())
	r.Use(CORS())
	r.Use(Gzip())

	auth := TokenAuth(cfg.AuthToken)

	r.GET("/", Index)
	r.GET(metricsRoute, auth, gin.WrapH(metrics.Handler()))

	v1 := r.Group("/v1")
	v1.Use(auth)
	{
		v1.GET("/resolve", h.Resolve)
		v1.GET("/stats", h.Stats)
		v1.POST("/conflicts", rateLimiter, h.CheckConflicts)

		v1Ops := v1.Group("/operations", rateLimiter)
		{
			v1Ops.POST("/move", h.Move)
			v1Ops.POST("/copy", h.Copy)
		}

		v1Uploads := v1.Group("/uploads")
		{
			v1Uploads.GET("", h.ListUploads)
			v1Uploads.POST("", rateLimiter, h.StartUpload)
			v1Uploads.POST("/abort", h.AbortUpload)
			v1Uploads.POST("/abort-all", h.AbortAllUploads)
			v1Uploads.GET("/events", h.UploadEvents(cfg.EventInterval))
		}
	}

	r.NoRoute(notFound)
	r.NoMethod(methodNotAllowed)

	return r.Handler(), nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
