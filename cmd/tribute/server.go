package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/cache"
	"github.com/xxxsen/tribute/internal/config"
	"github.com/xxxsen/tribute/internal/filestore"
	"github.com/xxxsen/tribute/internal/handler"
	"github.com/xxxsen/tribute/internal/job"
	"github.com/xxxsen/tribute/internal/metrics"
	"github.com/xxxsen/tribute/internal/middleware"
	"github.com/xxxsen/tribute/internal/model"
	"github.com/xxxsen/tribute/internal/pkg/guesttoken"
	"github.com/xxxsen/tribute/internal/ratelimit"
	"github.com/xxxsen/tribute/internal/repo"
	"github.com/xxxsen/tribute/internal/schedule"
	"github.com/xxxsen/tribute/internal/service"
)

func seconds(n int64) time.Duration {
	return time.Duration(n) * time.Second
}

func newRedisClient(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// newTagStore shares tag state through redis when configured so every
// instance sees the same invalidations.
func newTagStore(cfg *config.Config, client *redis.Client) cache.TagStore {
	if client == nil {
		return cache.NewMemoryTagStore()
	}
	return cache.NewRedisTagStore(client, "", time.Duration(cfg.Cache.TagRetentionHours)*time.Hour)
}

func newPasswordLimiter(cfg *config.Config, client *redis.Client) ratelimit.Limiter {
	rl := cfg.RateLimit
	window := seconds(int64(rl.PasswordWindowSeconds))
	if client != nil {
		return ratelimit.NewRedisLimiter(client, "tribute:unlock:", rl.PasswordAttempts, window)
	}
	rps := float64(rl.PasswordAttempts) / window.Seconds()
	return ratelimit.NewMemoryLimiter(rps, rl.PasswordAttempts, 10000, 2*window)
}

func runServer(cfg *config.Config, sqlDB *sql.DB) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.Bool("redis", cfg.Redis.Addr != ""),
		zap.String("file_store", cfg.FileStore.Type),
	)
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}
	tags := newTagStore(cfg, redisClient)

	linkRepo := repo.NewShareLinkRepo(sqlDB)
	docRepo := repo.NewDocumentRepo(sqlDB)
	imageRepo := repo.NewImageRepo(sqlDB)
	memberRepo := repo.NewMemberRepo(sqlDB)
	commentRepo := repo.NewCommentRepo(sqlDB)
	commenterRepo := repo.NewGuestCommenterRepo(sqlDB)
	invalidationRepo := repo.NewInvalidationRepo(sqlDB)

	codec, err := guesttoken.NewCodec([]byte(cfg.GuestToken.Secret))
	if err != nil {
		return fmt.Errorf("init guest token codec: %w", err)
	}
	coord := cache.NewCoordinator(tags, invalidationRepo)

	cc := cfg.Cache
	ttl, maxStale := seconds(cc.TTLSeconds), seconds(cc.MaxStaleSeconds)
	resolver := service.NewShareResolver(codec, linkRepo, docRepo, imageRepo,
		newPasswordLimiter(cfg, redisClient), seconds(cfg.GuestToken.TTLSeconds))
	identity := service.NewGuestIdentity(commenterRepo)
	shareService := service.NewShareService(linkRepo, docRepo, imageRepo, memberRepo, coord, codec,
		cache.NewViews[[]model.ShareLink]("share_links", tags, cc.Size, ttl, maxStale),
		seconds(cfg.GuestToken.InviteTTLSeconds))
	commentService := service.NewCommentService(resolver, identity, commentRepo, docRepo, memberRepo, coord,
		cache.NewViews[[]model.DocumentComment]("comments", tags, cc.Size, ttl, maxStale))
	resourceService := service.NewResourceService(docRepo, imageRepo, memberRepo, coord,
		cache.NewViews[[]model.Image]("entry_images", tags, cc.Size, ttl, maxStale))

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	rl := cfg.RateLimit
	deps := handler.RouterDeps{
		Shares:         handler.NewShareHandler(shareService),
		Comments:       handler.NewCommentHandler(commentService),
		Resources:      handler.NewResourceHandler(resourceService),
		Public:         handler.NewPublicHandler(resolver, commentService, identity, codec, store, cfg.IsProduction()),
		CommentLimiter: ratelimit.NewMemoryLimiter(rl.CommentRPS, rl.CommentBurst, 10000, 10*time.Minute),
		JWTSecret:      []byte(cfg.JWTSecret),
	}

	scheduler := schedule.NewCronScheduler()
	reconcile := job.NewInvalidationReconcileJob(invalidationRepo, coord, cfg.Reconcile.BatchSize)
	if err := scheduler.AddJob(reconcile, cfg.Reconcile.Schedule); err != nil {
		return fmt.Errorf("schedule reconcile: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
