package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mautops/schedule-gin/internal/auth"
	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/service"
	"github.com/mautops/schedule-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config     *config.Config
	DB         *gorm.DB
	Scheduling service.SchedulingService
	Statistics service.StatisticsService
	Hub        *websocket.Hub
	Validator  *auth.TokenValidator
	Logger     logrus.FieldLogger
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(logger))
	router.Use(HTTPSRedirectMiddleware(cfg.Server.ForceHTTPS))
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))
	router.Use(ErrorHandlerMiddleware())

	health := NewHealthController(deps.DB, deps.Hub)
	router.GET("/health", health.Check)
	if cfg.Metrics.Enabled {
		router.GET("/metrics", MetricsHandler)
	}

	// WebSocket 使用 query 参数中的 Token,不经过租户中间件
	if deps.Hub != nil {
		router.GET("/api/v1/projects/:project_id/ws",
			websocket.WebSocketHandler(deps.Hub, deps.Validator, cfg.Auth.AllowHeaderTenant))
	}

	v1 := router.Group("/api/v1")
	v1.Use(VersionMiddleware())
	v1.Use(auth.TenantMiddleware(deps.Validator, cfg.Auth.AllowHeaderTenant))
	if cfg.RateLimit.Enabled {
		v1.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	tasks := NewTaskController(deps.Scheduling)
	dependencies := NewDependencyController(deps.Scheduling)
	statistics := deps.Statistics
	if statistics == nil && deps.DB != nil {
		statistics = service.NewStatisticsService(deps.DB)
	}
	schedule := NewScheduleController(deps.Scheduling, statistics)

	project := v1.Group("/projects/:project_id")
	{
		project.GET("/schedule", schedule.Get)
		project.GET("/statistics", schedule.Statistics)

		project.POST("/tasks", tasks.Create)
		project.GET("/tasks/:id", tasks.Get)
		project.PATCH("/tasks/:id", tasks.Update)
		project.DELETE("/tasks/:id", tasks.Delete)
		project.POST("/tasks/:id/status", tasks.SetStatus)
		project.GET("/tasks/:id/history", tasks.History)

		project.POST("/dependencies", dependencies.Add)
		project.DELETE("/dependencies/:id", dependencies.Remove)
	}

	return router
}
