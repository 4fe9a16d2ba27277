package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"stockledger/internal/metrics"
	"stockledger/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueLowStock = "alerts:low_stock"

	jobLowStock = "low_stock"
	maxAttempts = 3
)

// Tunables, overridden in tests.
var (
	popTimeout   = 5 * time.Second
	retryBackoff = 500 * time.Millisecond
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb     redis.Cmdable
	metrics *metrics.Registry
}

func NewDispatcher(rdb redis.Cmdable, m *metrics.Registry) *Dispatcher {
	return &Dispatcher{rdb: rdb, metrics: m}
}

// NotifyLowStock pushes a low-stock alert to Redis.
func (d *Dispatcher) NotifyLowStock(ctx context.Context, alert model.LowStockAlert) error {
	if err := d.enqueue(ctx, QueueLowStock, jobLowStock, alert); err != nil {
		return err
	}
	d.metrics.IncAlertEnqueued()
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the alert queue and hands each alert to a Sender.
type Pool struct {
	rdb     redis.Cmdable
	sender  Sender
	metrics *metrics.Registry
	wg      sync.WaitGroup
}

func NewPool(rdb redis.Cmdable, sender Sender, m *metrics.Registry) *Pool {
	return &Pool{rdb: rdb, sender: sender, metrics: m}
}

// Start launches numWorkers goroutines. Each blocks on BRPOP, so idle
// workers cost nothing. They exit once ctx is cancelled.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to popTimeout then loops to check ctx
			result, err := p.rdb.BRPop(ctx, popTimeout, QueueLowStock).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("worker: pop failed")
					sleep(ctx, time.Second)
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	if job.Type != jobLowStock {
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("worker: unknown job type")
		return
	}

	var alert model.LowStockAlert
	if err := json.Unmarshal(job.Payload, &alert); err != nil {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, "invalid payload: "+err.Error(), 0)
		p.metrics.IncAlertDeadLettered()
		return
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if lastErr = p.sender.Send(ctx, alert); lastErr == nil {
			p.metrics.IncAlertDelivered()
			log.Info().Str("sku", alert.SKU).Int("attempt", attempt).Msg("worker: low-stock alert delivered")
			return
		}
		log.Warn().Err(lastErr).Str("sku", alert.SKU).Int("attempt", attempt).Msg("worker: alert delivery failed")
		if attempt < maxAttempts && !sleep(ctx, time.Duration(attempt)*retryBackoff) {
			break
		}
	}
	SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, lastErr.Error(), maxAttempts)
	p.metrics.IncAlertDeadLettered()
}

// sleep waits d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
