// Package dispatcher доставляет накопленные события outbox в каналы уведомлений.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/notifier"
	"github.com/Freeeeeet/fieldsched/internal/telemetry"
)

// OutboxStore — операции outbox, нужные диспетчеру
type OutboxStore interface {
	FetchPending(ctx context.Context, limit, maxRetries int) ([]model.OutboxEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) (int, error)
	PurgeProcessed(ctx context.Context, before time.Time) (int64, error)
}

type Options struct {
	BatchSize      int
	MaxRetries     int
	Concurrency    int
	ChannelTimeout time.Duration
	// Budget ограничивает время доставки одного запуска
	Budget    time.Duration
	Retention time.Duration
}

func DefaultOptions() Options {
	return Options{
		BatchSize:      50,
		MaxRetries:     5,
		Concurrency:    4,
		ChannelTimeout: 10 * time.Second,
		Budget:         50 * time.Second,
		Retention:      7 * 24 * time.Hour,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	// SetLimit(0) заблокировал бы errgroup.Go навсегда
	if o.Concurrency <= 0 {
		o.Concurrency = def.Concurrency
	}
	if o.ChannelTimeout <= 0 {
		o.ChannelTimeout = def.ChannelTimeout
	}
	if o.Budget <= 0 {
		o.Budget = def.Budget
	}
	if o.Retention <= 0 {
		o.Retention = def.Retention
	}
	return o
}

// Report — итог одного запуска
type Report struct {
	Fetched      int   `json:"fetched"`
	Delivered    int   `json:"delivered"`
	Failed       int   `json:"failed"`
	DeadLettered int   `json:"dead_lettered"`
	Skipped      int   `json:"skipped"`
	Purged       int64 `json:"purged"`
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeFailed
	outcomeDeadLettered
	outcomeSkipped
)

var errNoChannels = errors.New("no notification channels configured")

type Dispatcher struct {
	store    OutboxStore
	channels []notifier.Channel
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// New подставляет значения DefaultOptions вместо неположительных полей opts
func New(store OutboxStore, channels []notifier.Channel, opts Options, logger *zap.Logger) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		store:    store,
		channels: channels,
		opts:     opts,
		logger:   logger.Named("dispatcher"),
		now:      time.Now,
	}
}

// RunOnce обрабатывает одну пачку событий и чистит старые обработанные.
// Ошибки доставки не прерывают пачку: они записываются в last_error
func (d *Dispatcher) RunOnce(ctx context.Context) (Report, error) {
	started := time.Now()
	defer func() { telemetry.DispatchDuration.Observe(time.Since(started).Seconds()) }()

	var report Report

	events, err := d.store.FetchPending(ctx, d.opts.BatchSize, d.opts.MaxRetries)
	if err != nil {
		return report, fmt.Errorf("fetch pending outbox events: %w", err)
	}
	report.Fetched = len(events)

	budgetCtx, cancel := context.WithTimeout(ctx, d.opts.Budget)
	defer cancel()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.opts.Concurrency)

	for i := range events {
		ev := &events[i]
		g.Go(func() error {
			res, err := d.process(ctx, budgetCtx, ev)
			if err != nil {
				// Событие останется в очереди до следующего запуска
				d.logger.Error("Failed to record delivery result",
					zap.String("event_id", ev.ID.String()),
					zap.Error(err),
				)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			switch res {
			case outcomeDelivered:
				report.Delivered++
			case outcomeFailed:
				report.Failed++
			case outcomeDeadLettered:
				report.Failed++
				report.DeadLettered++
			case outcomeSkipped:
				report.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	purged, err := d.store.PurgeProcessed(ctx, d.now().Add(-d.opts.Retention))
	if err != nil {
		return report, fmt.Errorf("purge processed outbox events: %w", err)
	}
	report.Purged = purged
	telemetry.OutboxPurged.Add(float64(purged))

	if report.Fetched > 0 || purged > 0 {
		d.logger.Info("Outbox batch processed",
			zap.Int("fetched", report.Fetched),
			zap.Int("delivered", report.Delivered),
			zap.Int("failed", report.Failed),
			zap.Int("dead_lettered", report.DeadLettered),
			zap.Int("skipped", report.Skipped),
			zap.Int64("purged", report.Purged),
		)
	}

	return report, nil
}

// process доставляет событие и фиксирует результат. Запись в store идёт
// через storeCtx, чтобы исчерпанный бюджет не потерял уже выполненную доставку
func (d *Dispatcher) process(storeCtx, deliverCtx context.Context, ev *model.OutboxEvent) (outcome, error) {
	if deliverCtx.Err() != nil {
		return outcomeSkipped, nil
	}

	delivered, errs := d.deliver(deliverCtx, ev)
	if delivered {
		if err := d.store.MarkProcessed(storeCtx, ev.ID, d.now()); err != nil {
			return 0, err
		}
		telemetry.OutboxEvents.WithLabelValues("delivered").Inc()
		return outcomeDelivered, nil
	}

	lastError := joinErrors(errs)
	retries, err := d.store.MarkFailed(storeCtx, ev.ID, lastError)
	if err != nil {
		return 0, err
	}

	if retries >= d.opts.MaxRetries {
		telemetry.OutboxEvents.WithLabelValues("dead_lettered").Inc()
		d.logger.Warn("Outbox event dead-lettered, manual inspection required",
			zap.String("event_id", ev.ID.String()),
			zap.Int64("booking_id", ev.BookingID),
			zap.String("event_type", string(ev.EventType)),
			zap.Int("retry_count", retries),
			zap.String("last_error", lastError),
		)
		return outcomeDeadLettered, nil
	}

	telemetry.OutboxEvents.WithLabelValues("failed").Inc()
	d.logger.Warn("Outbox event delivery failed",
		zap.String("event_id", ev.ID.String()),
		zap.Int("retry_count", retries),
		zap.String("last_error", lastError),
	)
	return outcomeFailed, nil
}

// deliver вызывает все каналы параллельно, у каждого свой таймаут.
// Успех, если доставил хотя бы один канал
func (d *Dispatcher) deliver(ctx context.Context, ev *model.OutboxEvent) (bool, []error) {
	if len(d.channels) == 0 {
		return false, []error{errNoChannels}
	}

	errs := make([]error, len(d.channels))
	var g errgroup.Group
	for i, ch := range d.channels {
		i, ch := i, ch
		g.Go(func() error {
			chCtx, cancel := context.WithTimeout(ctx, d.opts.ChannelTimeout)
			defer cancel()

			if err := ch.Deliver(chCtx, ev); err != nil {
				errs[i] = apperr.ChannelDelivery(ch.Name(), err)
				telemetry.ChannelDeliveries.WithLabelValues(ch.Name(), "error").Inc()
				d.logger.Debug("Channel delivery failed",
					zap.String("channel", ch.Name()),
					zap.String("event_id", ev.ID.String()),
					zap.Error(err),
				)
				return nil
			}
			telemetry.ChannelDeliveries.WithLabelValues(ch.Name(), "ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	return len(failed) < len(d.channels), failed
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
