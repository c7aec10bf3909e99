// Package app assembles the repositories and services shared by the API
// server and the izinctl command.
package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/izin-asrama-api/internal/leave"
	"github.com/noah-isme/izin-asrama-api/internal/repository"
	"github.com/noah-isme/izin-asrama-api/internal/service"
	"github.com/noah-isme/izin-asrama-api/pkg/cache"
	"github.com/noah-isme/izin-asrama-api/pkg/config"
	"github.com/noah-isme/izin-asrama-api/pkg/database"
	"github.com/noah-isme/izin-asrama-api/pkg/jobs"
)

// Container holds long-lived dependencies.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *sqlx.DB
	Redis    *redis.Client
	Resolver *leave.Resolver

	Leaves        *repository.LeaveRepository
	Residents     *repository.ResidentRepository
	Metrics       *service.MetricsService
	Cache         *service.CacheService
	Tokens        *service.TokenService
	Notifications *service.NotificationService
	LeaveService  *service.LeaveService
	Reports       *service.LeaveReportService
}

// New connects to storage and builds every service. Close releases them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	roles := leave.RoleConfigFromStrings(cfg.Leave.RequesterRoles, cfg.Leave.StaffRoles, cfg.Leave.SupervisorRoles)
	resolver, err := leave.NewResolver(roles)
	if err != nil {
		return nil, fmt.Errorf("leave roles: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, report cache disabled", zap.Error(err))
		rdb = nil
	}

	c := &Container{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Resolver:  resolver,
		Leaves:    repository.NewLeaveRepository(db),
		Residents: repository.NewResidentRepository(db),
		Metrics:   service.NewMetricsService(),
	}

	validate := validator.New()
	cacheRepo := repository.NewCacheRepository(rdb, logger)
	c.Cache = service.NewCacheService(cacheRepo, c.Metrics, cfg.Reports.CacheTTL, logger, cfg.Reports.CacheEnabled && cacheRepo.Enabled())
	c.Tokens = service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiration,
	}, validate)
	c.Notifications = service.NewNotificationService(service.NewLogNotifier(logger), jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		BufferSize: cfg.Notify.BufferSize,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
	}, c.Metrics, logger)

	c.LeaveService = service.NewLeaveService(c.Leaves, c.Residents, repository.NewAuditRepository(db), resolver, logger,
		service.WithLeaveValidator(validate),
		service.WithLeaveCache(c.Cache),
		service.WithLeaveMetrics(c.Metrics),
		service.WithLeaveEventListeners(
			service.NewOutstandingBalanceListener(c.Leaves, cfg.Leave.LatePenaltyUnits, logger),
			service.NewNotificationListener(c.Residents, c.Notifications),
		),
	)
	c.Reports = service.NewLeaveReportService(c.Leaves, c.Residents, resolver, c.Cache, cfg.Reports.CacheTTL, c.Metrics, logger)
	return c, nil
}

// Close releases connections. The notification queue is stopped by its owner.
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Warn("close postgres", zap.Error(err))
		}
	}
}
