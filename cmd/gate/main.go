package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/admin"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/app"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/authz"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/directory"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/gate"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/identity"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/observability"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/platform/cache"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/platform/db"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/internal/ratelimit"
	"github.com/alijawdat-cyber/Depth-Studio-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	limits, err := ratelimit.NewLimitTable(ratelimit.DefaultLimits())
	if err != nil {
		logger.Error("build limit table", slog.Any("error", err))
		os.Exit(1)
	}

	lists := ratelimit.NewIPLists()
	store := ratelimit.NewStore(nil)
	detector := ratelimit.NewDetector(lists, cfg.SuspiciousRetention, logger, nil)
	verifier := identity.NewTokenStore(redisClient, cfg.TokenPrefix, cfg.VerifierTimeout)
	dirService := directory.NewService(directory.NewRepository(pool), cfg.DirectoryTimeout, logger)
	grants := authz.NewGrantStore(pool, cfg.GrantTimeout, logger)
	engine := authz.NewEngine(grants, logger)
	metrics := observability.NewMetrics()

	g := gate.New(gate.Config{
		Verifier:      verifier,
		Directory:     dirService,
		Engine:        engine,
		Store:         store,
		Limits:        limits,
		Detector:      detector,
		Lists:         lists,
		Logger:        logger,
		ExcludedPaths: cfg.ExcludedPaths,
		Observer: func(code gate.Code) {
			metrics.ObserveDecision(string(code))
		},
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Gate:         g,
		AdminHandler: admin.NewHandler(g, logger),
		JobsHandler:  jobs.NewHandler(inspector, logger),
		Metrics:      metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	group.Go(func() error {
		// Window GC keeps the counter map bounded regardless of traffic.
		store.StartGC(groupCtx, cfg.RateGCInterval, maxWindow(limits))
		return nil
	})

	// Maintenance runs in-process so the tasks see the live gate state;
	// rate-limit and abuse state are deliberately single-process.
	maintenance := jobs.NewMaintenance(detector, store, g, logger, jobs.NewTaskMetrics(metrics.Registerer()))
	pruneTask, err := jobs.NewAbusePruneTask("scheduler")
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}
	reportTask, err := jobs.NewUsageReportTask(true)
	if err != nil {
		logger.Error("build report task", slog.Any("error", err))
		os.Exit(1)
	}
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAbusePrune, Handler: maintenance.HandleAbusePrune},
			{Type: jobs.TaskUsageReport, Handler: maintenance.HandleUsageReport},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/15 * * * *", Task: reportTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}
	group.Go(func() error {
		if err := worker.Run(groupCtx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		logger.Error("run", slog.Any("error", err))
		os.Exit(1)
	}
}

func maxWindow(limits *ratelimit.LimitTable) time.Duration {
	longest := limits.For(ratelimit.Anonymous).Window
	for _, role := range identity.Roles() {
		if w := limits.For(role).Window; w > longest {
			longest = w
		}
	}
	return longest
}
