package handlers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	appConfig "case-disposition-engine/internal/config"
	"case-disposition-engine/internal/services/cache"
	"case-disposition-engine/internal/services/database"
	"case-disposition-engine/internal/services/matcher"
	s3service "case-disposition-engine/internal/services/s3"
	"case-disposition-engine/internal/services/ses"
	"case-disposition-engine/internal/utils"
)

// Dependencies holds the services shared by the Lambda functions and the local server.
// DB, OrgCache, S3 and SES are nil when the matching dependency could not be set up.
type Dependencies struct {
	Config   *appConfig.Config
	DB       *database.DB
	Redis    *redis.Client
	OrgCache *cache.OrgCache
	Matcher  *matcher.MatcherService
	S3       *s3service.Service
	SES      *ses.Service
}

// LoadDependencies loads configuration and connects to whatever is configured.
// Only a configuration failure is fatal; missing backends are logged and left nil.
func LoadDependencies(ctx context.Context) (*Dependencies, error) {
	logger := utils.Component("bootstrap")

	cfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	deps := &Dependencies{
		Config:  cfg,
		Matcher: matcher.NewMatcherService(cfg),
	}

	if db, err := database.New(cfg); err != nil {
		logger.Warn("Database unavailable", utils.Error(err))
	} else {
		deps.DB = db
		deps.Redis = cache.NewRedisClient(cfg)
		deps.OrgCache = cache.NewOrgCache(deps.Redis, db.Organizations(), cfg.OrgCacheTTL)
	}

	if s3Svc, err := s3service.NewService(ctx, cfg); err != nil {
		logger.Warn("S3 unavailable", utils.Error(err))
	} else {
		deps.S3 = s3Svc
	}

	if cfg.SESSenderEmail != "" {
		if sesSvc, err := ses.NewService(ctx, cfg); err != nil {
			logger.Warn("SES unavailable", utils.Error(err))
		} else {
			deps.SES = sesSvc
		}
	}

	return deps, nil
}

// MatchingHandler builds the matching handler over the configured backends.
func (d *Dependencies) MatchingHandler() *MatchingHandler {
	if d.DB == nil {
		return NewMatchingHandler(d.Matcher, nil, nil)
	}
	return NewMatchingHandler(d.Matcher, d.DB.Cases(), d.OrgCache)
}

// ConfirmHandler builds the confirm handler. Returns an error without a database.
func (d *Dependencies) ConfirmHandler() (*ConfirmHandler, error) {
	if d.DB == nil {
		return nil, fmt.Errorf("confirming plans requires a database")
	}

	var reports ReportStore
	if d.S3 != nil {
		reports = d.S3
	}
	var notifier Notifier
	if d.SES != nil {
		notifier = d.SES
	}

	return NewConfirmHandler(d.MatchingHandler(), d.DB.Assignments(), reports, notifier, d.OrgCache), nil
}

// CaseImportHandler builds the case import handler. Returns an error without a database or S3.
func (d *Dependencies) CaseImportHandler() (*CaseImportHandler, error) {
	if d.DB == nil || d.S3 == nil {
		return nil, fmt.Errorf("case import requires a database and S3")
	}
	return NewCaseImportHandler(d.S3, d.DB.Cases(), d.Config.AutoPublishPackages), nil
}

// HealthHandler builds the health handler.
func (d *Dependencies) HealthHandler() *HealthHandler {
	var db, cacheChecker HealthChecker
	if d.DB != nil {
		db = d.DB
	}
	if d.OrgCache != nil && d.OrgCache.Enabled() {
		cacheChecker = HealthCheckFunc(d.OrgCache.Ping)
	}
	return NewHealthHandler(db, cacheChecker)
}

// Close releases connections.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
