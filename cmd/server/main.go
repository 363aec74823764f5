package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bonus-drops/internal/bot"
	"bonus-drops/internal/config"
	"bonus-drops/internal/database"
	"bonus-drops/internal/dedup"
	"bonus-drops/internal/httpapi"
	"bonus-drops/internal/ingest"
	"bonus-drops/internal/queue"
	"bonus-drops/internal/sweeper"
	"bonus-drops/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrEmptyDBPassword) {
			fmt.Fprintln(os.Stderr, "Error: DB_PASSWORD environment variable is required")
		} else if errors.Is(err, config.ErrEmptyAdminToken) {
			fmt.Fprintln(os.Stderr, "Error: HTTP_ADMIN_TOKEN environment variable is required")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}
		os.Exit(1)
	}

	logger.Init(cfg.App.LogLevel, nil)
	logger.Info("Starting bonus-drops",
		logger.String("app", cfg.App.Name),
		logger.String("environment", cfg.App.Environment),
	)

	if err := run(cfg); err != nil {
		logger.Error("Server stopped with error", logger.Err(err))
		os.Exit(1)
	}

	logger.Info("Server stopped gracefully")
}

// adminNotifier picks where new-code announcements go. Queued messages are
// only delivered by the bot, so without one there is nothing to notify.
func adminNotifier(q *queue.NATS, b *bot.Bot) ingest.Notifier {
	switch {
	case b == nil:
		return nil
	case q != nil:
		return q
	default:
		return b
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		var dbErr *database.ConnectionError
		if errors.As(err, &dbErr) {
			logger.Error("Failed to connect to database",
				logger.Err(dbErr),
				logger.String("host", cfg.Database.Host),
				logger.Int("port", cfg.Database.Port),
			)
		}
		return err
	}
	defer db.Close()
	logger.Info("Connected to database")

	repo := database.NewBonusCodeRepository(db)

	allowlist, err := config.LoadAllowlist(
		cfg.Telegram.AllowlistPath, cfg.Telegram.AllowedChatIDs, cfg.Telegram.AllowedUserIDs,
	)
	if err != nil {
		return err
	}

	opts := []ingest.Option{ingest.WithAllowlist(allowlist)}

	if cfg.Redis.Enabled() {
		client, err := dedup.Connect(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, ingest.WithDeliveryGuard(dedup.New(client, cfg.Redis.GuardTTL)))
		logger.Info("Connected to Redis", logger.String("addr", cfg.Redis.Addr))
	}

	var q *queue.NATS
	if cfg.NATS.Enabled() {
		q, err = queue.New(cfg.NATS)
		if err != nil {
			return err
		}
		defer q.Close()
		opts = append(opts, ingest.WithPublisher(q))
		logger.Info("Connected to NATS", logger.String("url", cfg.NATS.URL))
	}

	var telegramBot *bot.Bot
	if cfg.Telegram.BotToken != "" {
		var botQueue bot.Queue
		if q != nil {
			botQueue = q
		}
		telegramBot, err = bot.New(cfg.Telegram, repo, botQueue)
		if err != nil {
			return err
		}
		if err := telegramBot.Start(); err != nil {
			return err
		}
		logger.Info("Telegram bot ready")
	}

	if n := adminNotifier(q, telegramBot); n != nil {
		opts = append(opts, ingest.WithNotifier(n, cfg.Telegram.AdminChatID))
	}

	svc := ingest.New(repo, opts...)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	apiOpts := []httpapi.Option{
		httpapi.WithAdminToken(cfg.HTTP.AdminToken),
		httpapi.WithWebhookSecret(cfg.Telegram.WebhookSecret),
		httpapi.WithRateLimit(cfg.HTTP.RateRPS, cfg.HTTP.RateBurst),
		httpapi.WithPinger(db),
	}
	if telegramBot != nil {
		apiOpts = append(apiOpts, httpapi.WithUpdateProcessor(telegramBot))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           httpapi.New(repo, svc, apiOpts...).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if q != nil {
		g.Go(func() error {
			logger.Info("Starting bonus code consumer...")
			err := q.ConsumeBonusCodes(gCtx, svc.Store)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("bonus code consumer: %w", err)
			}
			return nil
		})
	}

	if telegramBot != nil {
		g.Go(func() error {
			return telegramBot.ConsumeNotifications(gCtx)
		})
	}

	g.Go(func() error {
		err := sweeper.New(cfg.Sweeper, repo).Start(gCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("sweeper: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("HTTP server starting", logger.Int("port", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
