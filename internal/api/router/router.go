package router

import (
	"context"
	"crypto/subtle"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"recruit-agent-go/internal/api/handler"
	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/logger"
)

// Handlers 路由依赖的全部处理器
type Handlers struct {
	Candidate   *handler.CandidateHandler
	Job         *handler.JobHandler
	Application *handler.ApplicationHandler
}

// RegisterRoutes 注册API路由。/api/v1下除health外都要求Bearer Token。
func RegisterRoutes(h *server.Hertz, cfg *config.Config, handlers *Handlers) {
	api := h.Group("/api/v1")

	// 健康检查不做认证
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	authed := api.Group("")
	if cfg.Auth.APIToken != "" {
		authed.Use(bearerAuth(cfg.Auth.APIToken))
	} else {
		// 未配置token时放行，仅限本地开发
		logger.Warn().Msg("未配置API Token，认证中间件已禁用")
	}

	candidates := authed.Group("/candidates")
	candidates.POST("/upload", handlers.Candidate.HandleUpload)
	candidates.GET("", handlers.Candidate.HandleList)
	candidates.GET("/:id", handlers.Candidate.HandleGet)
	candidates.GET("/:id/resume", handlers.Candidate.HandleResumeURL)
	candidates.DELETE("/:id", handlers.Candidate.HandleDelete)

	jobs := authed.Group("/jobs")
	jobs.POST("", handlers.Job.HandleCreate)
	jobs.GET("", handlers.Job.HandleList)
	jobs.GET("/:id", handlers.Job.HandleGet)
	jobs.PUT("/:id", handlers.Job.HandleUpdate)
	jobs.DELETE("/:id", handlers.Job.HandleDelete)

	applications := authed.Group("/applications")
	applications.POST("", handlers.Application.HandleCreate)
	applications.GET("", handlers.Application.HandleList)
	applications.GET("/:id", handlers.Application.HandleGet)
	applications.PUT("/:id", handlers.Application.HandleUpdate)
	applications.DELETE("/:id", handlers.Application.HandleDelete)
}

// bearerAuth 静态Bearer Token认证。
// 校验通过后把token写入上下文作为上传者身份。
func bearerAuth(apiToken string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithContextKey(handler.UploaderContextKey),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiToken)) == 1 {
				return true, nil
			}
			return false, nil
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "认证失败"})
		}),
	)
}
