// Package main запускает HTTP-сервер лотерейного сервиса и планировщик тиражей.
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

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/lottery-ledger/internal/cache"
	"github.com/mmeshcher/lottery-ledger/internal/config"
	"github.com/mmeshcher/lottery-ledger/internal/handler"
	"github.com/mmeshcher/lottery-ledger/internal/middleware"
	"github.com/mmeshcher/lottery-ledger/internal/model"
	"github.com/mmeshcher/lottery-ledger/internal/notify"
	"github.com/mmeshcher/lottery-ledger/internal/repository"
	"github.com/mmeshcher/lottery-ledger/internal/service"
	"github.com/mmeshcher/lottery-ledger/internal/settings"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	// без Redis сервис работает, но без кэша
	var c *cache.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			sugar.Warnw("redis unavailable, cache disabled", "addr", cfg.RedisAddr, "error", err.Error())
		} else {
			c = cache.New(rdb)
		}
	}

	sinks := []notify.Sink{notify.NewStoreSink(repo)}
	if len(cfg.KafkaBrokers) > 0 {
		kw := notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kw.Close()
		sinks = append(sinks, notify.NewKafkaSink(kw))
		sugar.Infow("kafka notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}
	dispatcher := notify.NewDispatcher(logger, cfg.NotifyTimeout, sinks...)

	provider := settings.NewProvider(repo, c, cfg.SettingsCacheTTL, logger)

	svc := service.NewService(repo, repo, provider, dispatcher, c, logger)
	defer svc.Close()

	if cfg.AdminUsername != "" {
		if err := seedAdmin(context.Background(), svc, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			sugar.Fatalw("admin seed error", "error", err.Error())
		}
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, sessions will not survive restart")
	}
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Проведение истёкших тиражей по расписанию
	g.Go(func() error {
		return svc.RunDrawSettlement(ctx, cfg.SettlementInterval)
	})

	g.Go(func() error {
		sugar.Infow("starting lottery server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}

	// уведомления дописываются до закрытия пула соединений
	dispatcher.Wait()
}

// adminCreator описывает создание администратора при старте.
type adminCreator interface {
	CreateAdminUser(ctx context.Context, username, password, location string) (*model.User, error)
}

// seedAdmin создаёт администратора из ADMIN_USERNAME/ADMIN_PASSWORD.
// Уже существующий логин не считается ошибкой.
func seedAdmin(ctx context.Context, svc adminCreator, username, password string) error {
	_, err := svc.CreateAdminUser(ctx, username, password, "")
	if err != nil && !errors.Is(err, service.ErrUserExists) {
		return fmt.Errorf("create admin %q: %w", username, err)
	}
	return nil
}
