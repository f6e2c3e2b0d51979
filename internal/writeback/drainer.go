package writeback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/transferdesk/internal/core"
)

// ChangeHandler reacts to one drained ride change.
type ChangeHandler interface {
	HandleChange(ctx context.Context, change *core.RideChange) error
}

// ChangeHandlerFunc adapts a function to ChangeHandler.
type ChangeHandlerFunc func(ctx context.Context, change *core.RideChange) error

// HandleChange calls f.
func (f ChangeHandlerFunc) HandleChange(ctx context.Context, change *core.RideChange) error {
	return f(ctx, change)
}

// DrainerConfig controls the drainer pace.
type DrainerConfig struct {
	BatchSize    int
	DrainRate    int // changes per second, 0 means unlimited
	PollInterval time.Duration
}

// Drainer moves ride changes from the queue to a handler on one
// goroutine, paced by a token bucket.
type Drainer struct {
	queue   core.ChangeQueue
	handler ChangeHandler
	config  DrainerConfig
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDrainer creates a drainer. Call Start to begin processing.
func NewDrainer(queue core.ChangeQueue, handler ChangeHandler, config DrainerConfig) *Drainer {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}

	limit := rate.Inf
	if config.DrainRate > 0 {
		limit = rate.Limit(config.DrainRate)
	}

	return &Drainer{
		queue:   queue,
		handler: handler,
		config:  config,
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.With().Str("component", "drainer").Logger(),
	}
}

// Start launches the drain loop. Calling Start on a running drainer is a no-op.
func (d *Drainer) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})

	go d.run(ctx, d.stopCh, d.doneCh)
	d.logger.Info().
		Int("batch_size", d.config.BatchSize).
		Int("drain_rate", d.config.DrainRate).
		Dur("poll_interval", d.config.PollInterval).
		Msg("drainer started")
}

// Stop signals the loop to exit and waits for the current batch.
func (d *Drainer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stopCh)
	done := d.doneCh
	d.mu.Unlock()

	<-done
	d.logger.Info().Msg("drainer stopped")
}

func (d *Drainer) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := d.DrainOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("drain failed")
		}
		if n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.config.PollInterval):
		}
	}
}

// DrainOnce dequeues one batch and hands every change to the handler.
// Handler failures are logged and counted; the change is not retried.
// It returns the number of changes taken off the queue.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	changes, err := d.queue.Dequeue(ctx, d.config.BatchSize)
	if err != nil {
		return len(changes), err
	}

	for _, change := range changes {
		if err := d.limiter.Wait(ctx); err != nil {
			return len(changes), err
		}

		result := "ok"
		if err := d.handler.HandleChange(ctx, change); err != nil {
			result = "error"
			d.logger.Warn().Err(err).
				Str("id", change.ID).
				Str("table", change.Table).
				Str("operation", string(change.Operation)).
				Msg("ride change handler failed")
		}
		drainedChanges.WithLabelValues(change.Table, string(change.Operation), result).Inc()
	}
	return len(changes), nil
}
