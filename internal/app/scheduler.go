package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/dispatcher"
)

// DispatchRunner — один запуск диспетчера outbox
type DispatchRunner interface {
	RunOnce(ctx context.Context) (dispatcher.Report, error)
}

// Scheduler периодически запускает диспетчер outbox
type Scheduler struct {
	runner   DispatchRunner
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(runner DispatchRunner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start запускает фоновую задачу
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting outbox dispatch scheduler", zap.Duration("interval", s.interval))

	go s.runDispatchTask(ctx)
}

// Stop останавливает фоновую задачу и ждёт завершения текущего запуска
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping outbox dispatch scheduler")
		close(s.stopChan)
	})
	<-s.done
}

func (s *Scheduler) runDispatchTask(ctx context.Context) {
	defer close(s.done)

	// Первый запуск сразу при старте
	s.dispatch(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.dispatch(ctx)
		case <-s.stopChan:
			s.logger.Info("Outbox dispatch task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Outbox dispatch task cancelled")
			return
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	if _, err := s.runner.RunOnce(ctx); err != nil {
		s.logger.Error("Outbox dispatch failed", zap.Error(err))
	}
}
