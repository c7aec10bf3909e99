package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/izin-asrama-api/api/swagger"
	"github.com/noah-isme/izin-asrama-api/internal/app"
	"github.com/noah-isme/izin-asrama-api/internal/handler"
	"github.com/noah-isme/izin-asrama-api/internal/leave"
	"github.com/noah-isme/izin-asrama-api/internal/middleware"
	"github.com/noah-isme/izin-asrama-api/internal/models"
	"github.com/noah-isme/izin-asrama-api/pkg/config"
	"github.com/noah-isme/izin-asrama-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/izin-asrama-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/izin-asrama-api/pkg/middleware/requestid"
)

func newRouter(c *app.Container) *gin.Engine {
	cfg := c.Config
	resolver := c.Resolver

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(c.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics))
	r.Use(middleware.WithResponseMeta())

	checks := map[string]handler.ReadinessCheck{
		"postgres": c.DB.PingContext,
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() }
	}
	ops := handler.NewMetricsHandler(c.Metrics, checks)
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	leaves := handler.NewLeaveHandler(c.LeaveService)
	reports := handler.NewLeaveReportHandler(c.Reports)

	api := r.Group(cfg.APIPrefix, middleware.JWT(c.Tokens))

	apps := api.Group("/leave-applications")
	apps.POST("", middleware.RequireOperation(resolver, leave.OpSubmit), leaves.Submit)
	apps.GET("", middleware.RequireOperation(resolver, leave.OpView), leaves.List)
	apps.GET("/overdue", middleware.RequireOperation(resolver, leave.OpReport), leaves.Overdue)
	apps.GET("/:id", middleware.RequireOperation(resolver, leave.OpView), leaves.Get)
	apps.POST("/:id/staff-review", middleware.RequireOperation(resolver, leave.OpApproveStaff), leaves.StaffReview)
	apps.POST("/:id/supervisor-review", middleware.RequireOperation(resolver, leave.OpApproveSupervisor), leaves.SupervisorReview)
	apps.POST("/:id/return", middleware.RequireOperation(resolver, leave.OpVerifyReturn), leaves.VerifyReturn)
	apps.POST("/:id/recovery", middleware.RequireOperation(resolver, leave.OpVerifyRecovery), leaves.VerifyRecovery)
	// non-requesters get NOT_WITHDRAWABLE from the service, not a 403 here
	apps.DELETE("/:id", leaves.Withdraw)

	rep := api.Group("/leave-reports", middleware.RequireOperation(resolver, leave.OpReport))
	rep.GET("", reports.Report)
	rep.GET("/export", reports.Export)

	api.GET("/ops/metrics", middleware.RequireRoles(models.RoleSuperAdmin), ops.Summary)
	return r
}
