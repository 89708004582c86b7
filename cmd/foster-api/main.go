package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/foster-pipeline-api/api/swagger"
	"github.com/noah-isme/foster-pipeline-api/internal/directory"
	"github.com/noah-isme/foster-pipeline-api/internal/handler"
	"github.com/noah-isme/foster-pipeline-api/internal/middleware"
	"github.com/noah-isme/foster-pipeline-api/internal/repository"
	"github.com/noah-isme/foster-pipeline-api/internal/roster"
	"github.com/noah-isme/foster-pipeline-api/internal/service"
	"github.com/noah-isme/foster-pipeline-api/pkg/cache"
	"github.com/noah-isme/foster-pipeline-api/pkg/config"
	"github.com/noah-isme/foster-pipeline-api/pkg/database"
	"github.com/noah-isme/foster-pipeline-api/pkg/jobs"
	"github.com/noah-isme/foster-pipeline-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/foster-pipeline-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/foster-pipeline-api/pkg/middleware/requestid"
	"github.com/noah-isme/foster-pipeline-api/pkg/storage"
)

// @title Foster Pipeline API
// @version 1.0.0
// @description Staff API over the foster applicant roster with optimistic status sync
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	dir, err := directory.New(cfg.Directory, logr.Named("directory"))
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer closeStore()

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	groups := newGroupService(cfg, metrics, logr)
	opts := roster.Options{
		Store:      store,
		Logger:     logr,
		Hooks:      []roster.StatusHook{groups},
		FlushDelay: cfg.Sync.FlushDelay,
		UpdatedBy:  cfg.Sync.UpdatedBy,
	}
	if metrics != nil {
		opts.Observer = metrics
		opts.Hooks = append(opts.Hooks, metrics)
	}
	engine := roster.New(dir, opts)

	validate := validator.New()
	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.Auth.JWTSecret,
		AccessTokenExpiry: cfg.Auth.TokenTTL,
		Issuer:            cfg.Auth.Issuer,
		StaffAccounts:     cfg.Auth.StaffAccounts,
	})
	applicantSvc := service.NewApplicantService(engine, dir, validate, logr)
	emailSvc := service.NewEmailService(engine, dir, metrics, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics))

	var metricsHandler http.Handler
	if metrics != nil {
		metricsHandler = metrics.Handler()
	}
	var protect gin.HandlerFunc
	if cfg.Auth.Enabled {
		protect = middleware.JWT(authSvc)
	} else {
		logr.Warn("staff authentication disabled")
	}
	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Applicants: handler.NewApplicantHandler(applicantSvc),
		Emails:     handler.NewEmailHandler(emailSvc),
		Auth:       handler.NewAuthHandler(authSvc),
		Metrics:    handler.NewMetricsHandler(metricsHandler, engine),
	}, protect)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	groups.Start(ctx)
	if err := engine.Start(ctx); err != nil {
		groups.Stop()
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "directory", cfg.Directory.Mode, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Sync.RefreshInterval > 0 {
		g.Go(func() error {
			refreshPeriodically(gctx, engine, cfg.Sync.RefreshInterval, logr)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Sync.ShutdownTimeout)
		defer cancel()

		logr.Info("shutting down")
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := engine.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("sync engine stop: %w", err))
		}
		groups.Stop()
		return errors.Join(errs...)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (storage.KeyValue, func(), error) {
	noop := func() {}
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logr.Warn("pending status updates will not survive a restart", zap.String("store", cfg.Store.Driver))
		return storage.NewMemoryStore(), noop, nil
	case config.StoreDriverFile, "":
		fs, err := storage.NewFileStore(cfg.Store.Dir)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case config.StoreDriverRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return repository.NewRedisKV(client, cfg.Store.KeyPrefix), func() { _ = client.Close() }, nil
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		kv := repository.NewPostgresKV(db, cfg.Store.KeyPrefix)
		if err := kv.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return kv, func() { _ = db.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func newGroupService(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.GroupService {
	queueCfg := jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
	}
	script := directory.NewGroupScript(cfg.Groups.ScriptURL, cfg.Groups.Timeout, logr.Named("groups"))
	if script == nil {
		logr.Info("mailing group script not configured")
		return service.NewGroupService(nil, metrics, queueCfg, logr)
	}
	return service.NewGroupService(script, metrics, queueCfg, logr)
}

func refreshPeriodically(ctx context.Context, engine *roster.Engine, every time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := engine.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logr.Warn("scheduled refresh", zap.Error(err))
			}
		}
	}
}
