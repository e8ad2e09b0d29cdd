package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"recording-uploader/config"
	"recording-uploader/constant"
	recordingHandler "recording-uploader/handler"
	"recording-uploader/pkg/blobstore"
	"recording-uploader/pkg/rabbitmq"
	"recording-uploader/pkg/retry"
	"recording-uploader/repository"
	"recording-uploader/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	sessions, err := repository.NewStore(cfg.DB, repository.StoreConfig{Timeout: cfg.Upload.OpTimeout})
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to open session store")
	}

	blobs := blobstore.NewClient(cfg.Storage, cfg.MinIOBucket, cfg.Upload.OpTimeout)

	var validator service.SessionValidator
	if cfg.Upload.ValidatorURL != "" {
		validator = service.NewHTTPValidator(cfg.Upload.ValidatorURL, cfg.Upload.OpTimeout)
	}

	var events service.EventPublisher
	if cfg.Queue != nil {
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn, continuing without events")
		} else {
			events = rabbitmq.NewPublisher(conn, cfg.Queue)
		}
	}

	coordinator := service.NewCoordinator(blobs, sessions, validator, events, service.CoordinatorConfig{
		RetryPolicy: retry.Policy{
			MaxAttempts: cfg.Upload.MaxAttempts,
			BaseDelay:   cfg.Upload.BaseDelay,
			MaxDelay:    cfg.Upload.MaxDelay,
		},
		LinkSessionRecord: cfg.Upload.LinkSessionRecord,
	})

	r := gin.Default()
	r.Use(requestLogger(ctx))
	addHealth(r)
	recordingHandler.New(coordinator).Register(r)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	// the signal context is already cancelled here; drain on a fresh deadline
	drainCtx, drainCancel := context.WithTimeout(zerolog.Ctx(ctx).WithContext(context.Background()), 15*time.Second)
	defer drainCancel()
	if err := handler.Shutdown(drainCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

// requestLogger attaches the process logger to every request context.
// Without it gin hands the service bare contexts and zerolog.Ctx resolves to
// a disabled logger, losing chunk-failure and cleanup warnings.
func requestLogger(ctx context.Context) gin.HandlerFunc {
	logger := zerolog.Ctx(ctx)
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
