package polling

import (
	"context"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"ifsync/internal/infrastructure/metrics"
)

// Strategy decides how long to wait before the next polling cycle
type Strategy interface {
	// NextInterval returns the wait after a cycle that succeeded or failed
	NextInterval(success bool) time.Duration
	Reset()
}

// FixedIntervalStrategy always waits the same interval
type FixedIntervalStrategy struct {
	interval time.Duration
}

func NewFixedIntervalStrategy(interval time.Duration) *FixedIntervalStrategy {
	return &FixedIntervalStrategy{interval: interval}
}

func (s *FixedIntervalStrategy) NextInterval(success bool) time.Duration {
	return s.interval
}

func (s *FixedIntervalStrategy) Reset() {}

// ExponentialBackoffStrategy stretches the interval after consecutive
// failures, up to maxInterval
type ExponentialBackoffStrategy struct {
	baseInterval   time.Duration
	maxInterval    time.Duration
	multiplier     float64
	currentBackoff int
	logger         *logrus.Logger
}

func NewExponentialBackoffStrategy(
	baseInterval time.Duration,
	maxInterval time.Duration,
	multiplier float64,
	logger *logrus.Logger,
) *ExponentialBackoffStrategy {
	if multiplier <= 1 {
		multiplier = 2.0
	}

	return &ExponentialBackoffStrategy{
		baseInterval: baseInterval,
		maxInterval:  maxInterval,
		multiplier:   multiplier,
		logger:       logger,
	}
}

func (s *ExponentialBackoffStrategy) NextInterval(success bool) time.Duration {
	if success {
		if s.currentBackoff > 0 {
			s.logger.Debug("Resetting backoff after success")
			s.Reset()
		}
		return s.baseInterval
	}

	s.currentBackoff++
	metrics.SetBackoffLevel(float64(s.currentBackoff))

	backoff := float64(s.baseInterval) * math.Pow(s.multiplier, float64(s.currentBackoff-1))
	next := time.Duration(backoff)
	if next > s.maxInterval {
		next = s.maxInterval
	}

	s.logger.WithFields(logrus.Fields{
		"backoff_count": s.currentBackoff,
		"next_interval": next,
		"max_interval":  s.maxInterval,
	}).Debug("Exponential backoff calculated")

	return next
}

func (s *ExponentialBackoffStrategy) Reset() {
	s.currentBackoff = 0
	metrics.SetBackoffLevel(0)
}

// PollingController runs a task on the schedule of a Strategy
type PollingController struct {
	strategy Strategy
	logger   *logrus.Logger
}

func NewPollingController(strategy Strategy, logger *logrus.Logger) *PollingController {
	return &PollingController{
		strategy: strategy,
		logger:   logger,
	}
}

// Start runs task once right away and then after every interval until ctx
// is done. Task errors are logged and only change the next interval.
func (c *PollingController) Start(ctx context.Context, task func(context.Context) error) error {
	timer := time.NewTimer(c.run(ctx, task))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			timer.Reset(c.run(ctx, task))
		}
	}
}

func (c *PollingController) run(ctx context.Context, task func(context.Context) error) time.Duration {
	err := task(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Polling task failed")
	}
	return c.strategy.NextInterval(err == nil)
}
