// Package sender runs Telegram calls off the update goroutine with retries.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/m3rciful/warnbot/core/logger"
	"github.com/m3rciful/warnbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when every queue slot is taken.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes a Dispatcher. Zero values pick the defaults.
type Options struct {
	QueueSize  int
	Workers    int
	MaxRetries int
	// RetryBackoff is the first retry delay; later delays grow exponentially.
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 500 * time.Millisecond
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes fire-and-forget Telegram calls (informational replies)
// on a small worker pool. Calls whose failure must reach the caller are made
// synchronously instead.
type Dispatcher struct {
	opts Options
	jobs chan job
	wg   sync.WaitGroup
	once sync.Once
	errs atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.execute(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run. It never blocks: a saturated queue yields
// ErrQueueFull. run may be called more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount reports how many jobs failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close drains the queue and waits for the workers. It is safe to call twice.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) policy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(d.opts.RetryBackoff),
		backoff.WithMaxElapsedTime(d.opts.MaxDuration),
	)
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(d.opts.MaxRetries)), ctx)
}

func (d *Dispatcher) execute(j job) {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	// the job outlives the update handler: keep its values, drop its cancellation
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := 0
	op := func() error {
		attempts++
		err := j.run()
		if err != nil && !netutil.ShouldRetry(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		d.log(ctx, j, slog.LevelDebug, "send.retry",
			slog.Int("attempt", attempts),
			slog.Duration("wait", wait),
			slog.String("err", netutil.Redact(err)),
		)
	}
	err := backoff.RetryNotify(op, d.policy(runCtx), notify)

	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.Int("attempts", attempts),
		slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		d.errs.Add(1)
		d.log(ctx, j, slog.LevelError, "send.fail", append(attrs,
			slog.String("err", netutil.Redact(err)),
			slog.String("err_kind", netutil.Classify(err)),
		)...)
		return
	}
	level := slog.LevelDebug
	if attempts > 1 {
		level = slog.LevelInfo
	}
	d.log(ctx, j, level, "send.done", attrs...)
}

// log adds the job identity; rid and update ids come from ctx.
func (d *Dispatcher) log(ctx context.Context, j job, level slog.Level, event string, attrs ...slog.Attr) {
	base := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		base = append(base, slog.String("endpoint", j.endpoint))
	}
	logger.LogEvent(ctx, logger.Component("tg.sender"), level, event, append(base, attrs...)...)
}
