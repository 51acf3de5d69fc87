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

	"vod-automation/config"
	"vod-automation/constant"
	retryHandler "vod-automation/handler"
	"vod-automation/pkg/blob"
	"vod-automation/pkg/games"
	"vod-automation/pkg/media"
	"vod-automation/pkg/notify"
	"vod-automation/pkg/poller"
	"vod-automation/pkg/rabbitmq"
	"vod-automation/pkg/twitch"
	"vod-automation/pkg/youtube"
	"vod-automation/repository"
	"vod-automation/service"
)

const retryQueueName = "vod_download_retry"

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	}

	repo := repository.NewRepo(cfg.DB)

	scheduler, err := service.NewScheduler(cfg.Pipeline.Timezone)
	if err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("invalid timezone")
	}

	twitchClient := twitch.NewClient(cfg.Twitch)
	youtubeClient := youtube.NewClient(cfg.YouTube)
	providers := []games.Provider{games.NewIGDB(cfg.Games), games.NewRAWG(cfg.Games)}
	store := blob.NewMinioStore(cfg.Storage, cfg.MinIOBucket)
	notifier := notify.NewAMQPNotifier(conn, cfg.Pipeline.NotificationExchange)

	resolver := service.NewResolver(repo, twitchClient, providers, cfg.Pipeline.MetadataCacheTTL)
	detector := service.NewDetector(repo, twitchClient, cfg.Pipeline)
	discovery := service.NewDiscovery(repo, twitchClient, cfg.Pipeline)
	pipeline := service.NewPipeline(repo, resolver, scheduler, twitchClient, youtubeClient, media.Runner{}, store, notifier, cfg.Pipeline, cfg.YouTube)
	publisher := service.NewPublisher(repo, youtubeClient, cfg.Pipeline)

	serviceDeps := retryHandler.ServiceDependencies{Repo: repo}

	// Operator re-trigger consumer for failed downloads.
	retryConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, rabbitmq.Binding{
		ExchangeName: cfg.Queue.ExchangeName,
		QueueName:    retryQueueName,
		RoutingKey:   "download.retry",
	}, cfg.Server.Workers, retryHandler.DownloadRetryHandler)
	go func() {
		if err := retryConsumer.Consume(ctx, serviceDeps); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Download retry consumer error")
		}
	}()

	go poller.New("live-status", cfg.Pipeline.PollInterval, detector.Scan).Run(ctx)
	go poller.New("upload-scan", cfg.Pipeline.UploadScanInterval, func(ctx context.Context) error {
		if err := discovery.Scan(ctx); err != nil {
			return err
		}
		return pipeline.Scan(ctx)
	}).Run(ctx)
	go poller.New("publish-scan", cfg.Pipeline.PublishScanInterval, publisher.Scan).Run(ctx)

	r := gin.Default()
	addHealth(r)
	addStatus(r, repo)
	addSchedule(r, repo)

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
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func addStatus(r *gin.Engine, repo repository.Repository) {
	r.GET("/status", func(c *gin.Context) {
		ctx := c.Request.Context()
		counts, err := repo.GetStatusCounts(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var nextPublishAt *time.Time
		if upcoming, err := repo.ListUpcomingPublishes(ctx, time.Now().AddDate(0, 0, 7)); err == nil && len(upcoming) > 0 {
			nextPublishAt = upcoming[0].ScheduledPublishAt
		}

		c.JSON(http.StatusOK, gin.H{
			"counts":          counts,
			"next_publish_at": nextPublishAt,
		})
	})
}

type scheduleEntry struct {
	UploadId           string    `json:"upload_id"`
	Title              string    `json:"title"`
	ContentType        string    `json:"content_type"`
	ScheduledPublishAt time.Time `json:"scheduled_publish_at"`
}

func addSchedule(r *gin.Engine, repo repository.Repository) {
	r.GET("/schedule", func(c *gin.Context) {
		until := time.Now().AddDate(0, 0, 7)
		uploads, err := repo.ListUpcomingPublishes(c.Request.Context(), until)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		byDay := make(map[string][]scheduleEntry)
		for _, upload := range uploads {
			if upload.ScheduledPublishAt == nil {
				continue
			}
			day := upload.ScheduledPublishAt.Format("2006-01-02")
			byDay[day] = append(byDay[day], scheduleEntry{
				UploadId:           upload.ID.String(),
				Title:              upload.Title,
				ContentType:        string(upload.ContentType),
				ScheduledPublishAt: *upload.ScheduledPublishAt,
			})
		}
		c.JSON(http.StatusOK, byDay)
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
