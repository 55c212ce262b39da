package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/app"
	"github.com/Freeeeeet/fieldsched/internal/cache"
	"github.com/Freeeeeet/fieldsched/internal/config"
	"github.com/Freeeeeet/fieldsched/internal/controller/httpapi"
	"github.com/Freeeeeet/fieldsched/internal/dispatcher"
	"github.com/Freeeeeet/fieldsched/internal/notifier"
	"github.com/Freeeeeet/fieldsched/internal/repository"
	"github.com/Freeeeeet/fieldsched/internal/service"
)

// container держит собранные компоненты и их ресурсы
type container struct {
	pool       *pgxpool.Pool
	redis      *redis.Client
	closeChans func()
	logger     *zap.Logger

	dispatcher *dispatcher.Dispatcher
	api        *httpapi.API
}

func newContainer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*container, error) {
	pool, err := app.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	c := &container{pool: pool, logger: logger}

	var calendar service.CalendarStore = repository.NewCalendarRepository(pool)
	if cfg.RedisAddr != "" {
		client, err := cache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn("Redis cache unavailable, running without caching", zap.Error(err))
		} else {
			c.redis = client
			calendar = cache.NewCalendarCache(client, calendar, cfg.CalendarCacheTTL, logger)
			logger.Info("Redis calendar cache enabled", zap.String("addr", cfg.RedisAddr))
		}
	}

	store := repository.NewStore(pool)
	outbox := repository.NewOutboxRepository(pool)

	availability := service.NewAvailabilityService(calendar, repository.NewBookingRepository(pool), cfg.Location, cfg.DefaultSlotMinutes, logger)
	suggestions := service.NewSuggestionService(availability, logger)
	bookings := service.NewBookingService(store, logger)

	channels, closeChans, err := notifier.FromConfig(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.closeChans = closeChans

	c.dispatcher = dispatcher.New(outbox, channels, dispatcher.Options{
		BatchSize:      cfg.DispatchBatchSize,
		MaxRetries:     cfg.DispatchMaxRetries,
		Concurrency:    cfg.DispatchConcurrency,
		ChannelTimeout: cfg.ChannelTimeout,
		Budget:         cfg.DispatchBudget,
		Retention:      cfg.OutboxRetention,
	}, logger)

	c.api = httpapi.New(httpapi.Deps{
		Availability: availability,
		Suggester:    suggestions,
		Bookings:     bookings,
		Outbox:       outbox,
		Dispatcher:   c.dispatcher,
		MaxRetries:   cfg.DispatchMaxRetries,
		Pinger:       pool.Ping,
	}, logger)

	return c, nil
}

func (c *container) migrate(ctx context.Context) error {
	mg, err := app.NewMigrator(c.pool, c.logger)
	if err != nil {
		return err
	}
	defer mg.Close()

	return mg.Run(ctx)
}

func (c *container) Close() {
	if c.closeChans != nil {
		c.closeChans()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	c.pool.Close()
}
