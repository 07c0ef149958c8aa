package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/refdatahub/refdata-engine/pkg/config"
	"github.com/refdatahub/refdata-engine/pkg/database"
	"github.com/refdatahub/refdata-engine/pkg/handlers"
	"github.com/refdatahub/refdata-engine/pkg/llm"
	"github.com/refdatahub/refdata-engine/pkg/middleware"
	"github.com/refdatahub/refdata-engine/pkg/models"
	"github.com/refdatahub/refdata-engine/pkg/repositories"
	"github.com/refdatahub/refdata-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.String("database", cfg.Database.Database),
		zap.String("matcher_backend", cfg.Matcher.Backend))

	ctx := context.Background()

	// Migrations run over database/sql; the pgx pool serves requests.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(migrationDB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrationDB.Close()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	dimensionRepo := repositories.NewDimensionRepository(db)
	canonicalRepo := repositories.NewCanonicalValueRepository(db)
	connectionRepo := repositories.NewConnectionRepository(db)
	fieldMappingRepo := repositories.NewFieldMappingRepository(db)
	sampleRepo := repositories.NewSampleRepository(db)
	valueMappingRepo := repositories.NewValueMappingRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	if err := seedSettings(ctx, settingsRepo, cfg.Matcher); err != nil {
		logger.Fatal("Failed to seed match settings", zap.Error(err))
	}

	// Services
	factory := llm.NewFactory(logger)
	dimensionSvc := services.NewDimensionService(dimensionRepo, logger)
	canonicalSvc := services.NewCanonicalService(canonicalRepo, dimensionSvc, logger)
	matcherSvc := services.NewMatcherService(dimensionRepo, canonicalRepo, settingsRepo, factory, cfg.Matcher.Timeout(), logger)
	valueMappingSvc := services.NewValueMappingService(valueMappingRepo, canonicalRepo, logger)
	statsSvc := services.NewMatchStatsService(fieldMappingRepo, sampleRepo, valueMappingRepo, matcherSvc, logger)
	importSvc := services.NewBulkImportService(db, dimensionRepo, canonicalRepo, logger)
	settingsSvc := services.NewSettingsService(settingsRepo, logger)

	if cfg.SeedFile != "" {
		seedSvc := services.NewSeedService(dimensionSvc, canonicalSvc, logger)
		if err := seedSvc.LoadFile(ctx, cfg.SeedFile); err != nil {
			logger.Fatal("Failed to load seed file", zap.String("path", cfg.SeedFile), zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg.Version, logger).RegisterRoutes(mux)
	handlers.NewProposeHandler(matcherSvc, logger).RegisterRoutes(mux)
	handlers.NewDimensionHandler(dimensionSvc, logger).RegisterRoutes(mux)
	handlers.NewCanonicalHandler(canonicalSvc, logger).RegisterRoutes(mux)
	handlers.NewImportHandler(importSvc, logger).RegisterRoutes(mux)
	handlers.NewConnectionHandler(connectionRepo, logger).RegisterRoutes(mux)
	handlers.NewFieldMappingHandler(fieldMappingRepo, dimensionRepo, logger).RegisterRoutes(mux)
	handlers.NewSampleHandler(sampleRepo, logger).RegisterRoutes(mux)
	handlers.NewValueMappingHandler(valueMappingSvc, logger).RegisterRoutes(mux)
	handlers.NewMatchStatsHandler(statsSvc, logger).RegisterRoutes(mux)
	handlers.NewSettingsHandler(settingsSvc, logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting refdata-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// seedSettings fills LLM fields the migration leaves empty from the process
// configuration. Secrets only enter through the environment, so the stored
// row starts without a key; once an operator saves a value through the API
// the row wins.
func seedSettings(ctx context.Context, repo repositories.SettingsRepository, matcher config.MatcherConfig) error {
	settings, err := repo.Get(ctx)
	if err != nil {
		return err
	}

	changed := false
	if settings.LLMModel == "" && matcher.LLMModel != "" {
		settings.LLMModel = matcher.LLMModel
		changed = true
	}
	if settings.LLMAPIBase == "" && matcher.LLMAPIBase != "" {
		settings.LLMAPIBase = matcher.LLMAPIBase
		changed = true
	}
	if settings.LLMAPIKey == "" && matcher.LLMAPIKey != "" {
		settings.LLMAPIKey = matcher.LLMAPIKey
		changed = true
	}
	if settings.MatcherBackend == "" {
		settings.MatcherBackend = models.MatcherBackend(matcher.Backend)
		changed = true
	}
	if !changed {
		return nil
	}
	return repo.Save(ctx, settings)
}
