// Package cache кэширует правила рабочих часов в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/model"
)

const keyWorkingHours = "fieldsched:cache:working_hours:" // + technician_id

// CalendarStore — источник правил календаря
type CalendarStore interface {
	ActiveWorkingHours(ctx context.Context, technicianID int64) ([]model.WorkingHoursRule, error)
	ApprovedTimeOff(ctx context.Context, technicianID int64, from, to time.Time) ([]model.TimeOff, error)
}

// CalendarCache кэширует рабочие часы. Отпуска не кэшируются: окно запроса
// каждый раз разное. Любая ошибка Redis означает чтение из источника
type CalendarCache struct {
	client *redis.Client
	inner  CalendarStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewCalendarCache(client *redis.Client, inner CalendarStore, ttl time.Duration, logger *zap.Logger) *CalendarCache {
	return &CalendarCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		logger: logger.Named("cache"),
	}
}

// Dial создаёт клиент и проверяет соединение
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (c *CalendarCache) ActiveWorkingHours(ctx context.Context, technicianID int64) ([]model.WorkingHoursRule, error) {
	key := keyWorkingHours + strconv.FormatInt(technicianID, 10)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rules []model.WorkingHoursRule
		if jsonErr := json.Unmarshal(data, &rules); jsonErr == nil {
			return rules, nil
		}
		c.logger.Warn("Corrupted working hours cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Debug("Redis get failed, reading from store", zap.String("key", key), zap.Error(err))
	}

	rules, err := c.inner.ActiveWorkingHours(ctx, technicianID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rules); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("Redis set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return rules, nil
}

func (c *CalendarCache) ApprovedTimeOff(ctx context.Context, technicianID int64, from, to time.Time) ([]model.TimeOff, error) {
	return c.inner.ApprovedTimeOff(ctx, technicianID, from, to)
}
