package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lostmedia/interaction-service/internal/config"
	"github.com/lostmedia/interaction-service/internal/gateway"
	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/middleware"
	"github.com/lostmedia/interaction-service/internal/model"
	"github.com/lostmedia/interaction-service/internal/repository"
	"github.com/lostmedia/interaction-service/internal/service"
	"github.com/lostmedia/interaction-service/internal/util"
	"github.com/lostmedia/interaction-service/internal/validate"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	connectAttempts   = 5
	connectBaseDelay  = 2 * time.Second
	connectMaxDelay   = 30 * time.Second
	shutdownTimeout   = 15 * time.Second
	rateLimitSweepGap = time.Minute
)

// Server owns every long-lived resource of the HTTP process.
type Server struct {
	cfg      *config.Config
	db       *gorm.DB
	redis    *util.RedisClient
	rabbitMQ *util.RabbitMQClient
	notifier *service.NotificationService
	limiter  *middleware.RateLimiter
	engine   *gin.Engine
}

// NewServer connects to the stores and the broker and wires the request pipeline.
// Postgres is required; Redis and RabbitMQ are optional and only degrade caching and events.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := InitDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		db:       db,
		redis:    initRedisWithRetry(ctx, cfg),
		rabbitMQ: initRabbitMQWithRetry(ctx, cfg),
	}

	var publisher service.Publisher
	if s.rabbitMQ != nil {
		if err := s.rabbitMQ.DeclareTopicExchange(cfg.EventsExchange); err != nil {
			return nil, fmt.Errorf("declare exchange %s: %w", cfg.EventsExchange, err)
		}
		publisher = s.rabbitMQ
	}
	s.notifier = service.NewNotificationService(publisher, cfg.EventsExchange, cfg.NotifyTimeout)

	var gwOpts []gateway.Option
	if s.redis != nil {
		gwOpts = append(gwOpts, gateway.WithIdentityCache(s.redis, cfg.IdentityCacheTTL))
	}
	gw := gateway.NewClient(cfg.GatewayURL, cfg.GatewayTimeout, gwOpts...)

	v := validate.New()
	commentRepo := repository.NewCommentRepository(db)
	reactionRepo := repository.NewReactionRepository(db, s.redis)
	commentService := service.NewCommentService(commentRepo, gw, s.notifier, v)
	reactionService := service.NewReactionService(reactionRepo, gw, s.notifier, v)
	interactionService := service.NewInteractionService(commentRepo, reactionRepo, v)

	if cfg.RateLimitEnabled {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	s.engine = NewRouter(cfg, Handlers{
		Comments:     NewCommentHandler(commentService),
		Reactions:    NewReactionHandler(reactionService),
		Interactions: NewInteractionHandler(interactionService),
		HealthChecks: s.healthChecks(),
		RateLimiter:  s.limiter,
	})
	return s, nil
}

func (s *Server) healthChecks() map[string]func(c *gin.Context) error {
	checks := map[string]func(c *gin.Context) error{
		"postgres": func(c *gin.Context) error {
			sqlDB, err := s.db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(c.Request.Context())
		},
	}
	if s.redis != nil {
		checks["redis"] = func(c *gin.Context) error {
			return s.redis.Ping(c.Request.Context())
		}
	}
	return checks
}

// Run serves until ctx is cancelled, then drains requests and pending events.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%s", s.cfg.ServerHost, s.cfg.ServerPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan struct{})
	defer close(stop)
	if s.limiter != nil {
		s.limiter.StartCleanup(rateLimitSweepGap, stop)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.For(ctx).Infof("Server starting on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.For(ctx).Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	if werr := s.notifier.Wait(shutdownCtx); werr != nil {
		logger.For(ctx).WithError(werr).Warn("pending events were not all published")
	}
	s.close()
	return err
}

func (s *Server) close() {
	if s.rabbitMQ != nil {
		s.rabbitMQ.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}

// InitDB opens Postgres and migrates the comment and reaction tables.
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.GinMode == gin.DebugMode {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&model.Comment{}, &model.Reaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// backoff returns the delay before the given retry attempt (1-based).
func backoff(attempt int) time.Duration {
	delay := connectBaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > connectMaxDelay {
		delay = connectMaxDelay
	}
	return delay
}

// retry calls connect until it succeeds, attempts run out or ctx ends.
func retry[T any](ctx context.Context, name string, connect func() (T, error)) (T, error) {
	var zero T
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		var v T
		if v, err = connect(); err == nil {
			logger.For(ctx).Infof("%s connected successfully on attempt %d", name, attempt)
			return v, nil
		}
		if attempt == connectAttempts {
			break
		}

		delay := backoff(attempt)
		logger.For(ctx).WithError(err).Warnf("Failed to connect to %s (attempt %d/%d). Retrying in %v...", name, attempt, connectAttempts, delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, err
}

func initRedisWithRetry(ctx context.Context, cfg *config.Config) *util.RedisClient {
	client, err := retry(ctx, "Redis", func() (*util.RedisClient, error) {
		return util.NewRedisClient(ctx, cfg)
	})
	if err != nil {
		logger.For(ctx).WithError(err).Warn("Redis unavailable. Caching will be disabled.")
		return nil
	}
	return client
}

func initRabbitMQWithRetry(ctx context.Context, cfg *config.Config) *util.RabbitMQClient {
	client, err := retry(ctx, "RabbitMQ", func() (*util.RabbitMQClient, error) {
		return util.NewRabbitMQClient(cfg.RabbitMQURL)
	})
	if err != nil {
		logger.For(ctx).WithError(err).Warn("RabbitMQ unavailable. Interaction events will be dropped.")
		return nil
	}
	return client
}
