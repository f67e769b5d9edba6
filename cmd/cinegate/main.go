package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/JustinTDCT/CineGate/internal/analytics"
	"github.com/JustinTDCT/CineGate/internal/api"
	"github.com/JustinTDCT/CineGate/internal/audit"
	"github.com/JustinTDCT/CineGate/internal/cache"
	"github.com/JustinTDCT/CineGate/internal/catalog"
	"github.com/JustinTDCT/CineGate/internal/config"
	"github.com/JustinTDCT/CineGate/internal/db"
	"github.com/JustinTDCT/CineGate/internal/download"
	"github.com/JustinTDCT/CineGate/internal/jobs"
	"github.com/JustinTDCT/CineGate/internal/logger"
	"github.com/JustinTDCT/CineGate/internal/ratelimit"
	"github.com/JustinTDCT/CineGate/internal/related"
	"github.com/JustinTDCT/CineGate/internal/repository"
	"github.com/JustinTDCT/CineGate/internal/resolver"
	"github.com/JustinTDCT/CineGate/internal/scheduler"
	"github.com/JustinTDCT/CineGate/internal/sitemap"
	"github.com/JustinTDCT/CineGate/internal/version"
)

const (
	sitemapTTL     = 2 * time.Hour
	rollupSchedule = "5 0 * * *"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, FilePath: cfg.LogFile})
	ver := version.Load(log)

	if enabled, err := logger.InitSentry(cfg.SentryDSN, cfg.Environment, ver.Version); err != nil {
		log.WithError(err).Warn("sentry init failed, continuing without it")
	} else if enabled {
		log.AddHook(logger.NewSentryHook(nil))
		defer logger.Flush()
	}

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.WithFields(logrus.Fields{"version": ver.Version, "env": cfg.Environment}).Info("CineGate starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongo, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err != nil {
		log.WithError(err).Fatal("mongo connection failed")
	}
	defer mongo.Close(context.Background())
	repo := repository.NewContentRepository(mongo)

	// Response cache and token ledger. The ledger must outlive every token,
	// so the in-process fallback gets its own bound.
	var respCache, ledger cache.Cache
	var queue *jobs.Queue
	if cfg.RedisEnabled() {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		respCache = cache.NewRedis(rdb)
		ledger = respCache
		queue = jobs.NewQueue(cfg.RedisAddr, log)
	} else {
		log.Warn("REDIS_ADDR not set: using in-process cache, token ledger is per-replica")
		respCache = cache.NewMemory(cfg.CacheSize, cfg.CacheTTL)
		ledger = cache.NewMemory(cfg.CacheSize, cfg.TokenTTL+time.Minute)
	}

	// Audit trail: Postgres when configured, the log otherwise. With a queue,
	// events go through asynq and the worker writes them to the store.
	var store audit.Sink = audit.LogSink{Log: log}
	var rollup *analytics.Rollup
	if cfg.AuditStoreEnabled() {
		pg, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("audit database connection failed")
		}
		defer pg.Close()
		if err := db.Migrate(ctx, pg.DB); err != nil {
			log.WithError(err).Fatal("audit migration failed")
		}
		store = audit.Fallback{Primary: audit.NewPostgresSink(pg.DB), Secondary: audit.LogSink{Log: log}}
		rollup = analytics.NewRollup(pg.DB, log)
	}
	sink := store
	if queue != nil {
		sink = audit.Fallback{Primary: jobs.NewAuditSink(queue), Secondary: store}
	}
	recorder := audit.NewAsync(sink, log, audit.DefaultBuffer)

	catalogSvc := catalog.NewService(repo, log,
		catalog.WithCache(respCache, cfg.CacheTTL),
		catalog.WithPageSize(cfg.PageSize),
	)
	downloads := download.NewService(repo, cfg.DenylistedServices, recorder, log, download.WithRevealDelay(cfg.RevealDelay))
	tokens, err := download.NewTokens(cfg.AppSecret, cfg.TokenTTL, ledger, downloads, recorder, log)
	if err != nil {
		log.WithError(err).Fatal("token signer init failed")
	}
	sitemapGen := sitemap.New(repo, cfg.BaseURL, respCache, sitemapTTL, log)

	if queue != nil {
		jobs.RegisterHandlers(queue, store, sitemapGen)
		if err := queue.Start(); err != nil {
			log.WithError(err).Fatal("job queue start failed")
		}
		defer queue.Stop()
	}

	sched := scheduler.New(log)
	var enq scheduler.Enqueuer
	if queue != nil {
		enq = queue
	}
	if err := sched.Add("sitemap", cfg.SitemapSchedule, scheduler.SitemapJob(sitemapGen, enq)); err != nil {
		log.WithError(err).Fatal("scheduler setup failed")
	}
	if rollup != nil {
		if err := sched.Add("download-rollup", rollupSchedule, rollup.RunDaily); err != nil {
			log.WithError(err).Fatal("scheduler setup failed")
		}
	}
	sched.Start()
	defer sched.Stop()

	proxies, err := ratelimit.ParseProxies(cfg.TrustedProxies)
	if err != nil {
		log.WithError(err).Fatal("invalid TRUSTED_PROXIES")
	}
	limiter := ratelimit.PerMinute(cfg.DownloadRatePerMin).TrustProxies(proxies)
	defer limiter.Stop()

	srv := api.NewServer(api.Deps{
		Catalog:   catalogSvc,
		Resolver:  resolver.NewDefault(repo, log),
		Related:   related.NewDispatcher(repo, log, cfg.RelatedLimit),
		Downloads: downloads,
		Tokens:    tokens,
		Audit:     recorder,
		Sitemap:   sitemapGen,
		Limiter:   limiter,
		Proxies:   proxies,
		Store:     mongo,
		Version:   ver.Version,
		Log:       log,
	})

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("audit drain incomplete")
	}
}
