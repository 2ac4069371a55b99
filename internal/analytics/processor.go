// Package analytics decouples redirect latency from analytics persistence:
// clicks are queued on a bounded channel and folded into the store by a small
// worker pool. Losing a click under pressure is acceptable; slowing a
// redirect is not.
package analytics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ClickEvent is one observed redirect, captured on the request path.
type ClickEvent struct {
	LinkID    int64
	OwnerID   int64
	Alias     string
	UserID    *int64 // authenticated visitor, when known
	IP        string
	UserAgent string
	At        time.Time
}

// Recorder folds a click event into persistent analytics.
type Recorder interface {
	RecordClick(ctx context.Context, ev ClickEvent) error
}

// Config tunes the worker pool.
type Config struct {
	Workers         int
	BufferSize      int
	RetryAttempts   int
	RetryDelay      time.Duration
	ShutdownTimeout time.Duration
}

// Stats is a point-in-time snapshot of processor counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Processed int64 `json:"processed"`
	Dropped   int64 `json:"dropped"`
	Failed    int64 `json:"failed"`
	QueueLen  int   `json:"queueLength"`
	QueueCap  int   `json:"queueCapacity"`
}

// Processor is the asynchronous click pipeline.
type Processor struct {
	recorder Recorder
	cfg      Config
	events   chan ClickEvent
	wg       sync.WaitGroup
	log      *zap.Logger

	submitted atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewProcessor creates a processor; call Start before submitting.
func NewProcessor(recorder Recorder, cfg Config, log *zap.Logger) *Processor {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 100
	}
	return &Processor{
		recorder: recorder,
		cfg:      cfg,
		events:   make(chan ClickEvent, cfg.BufferSize),
		log:      log,
	}
}

// Start launches the worker pool.
func (p *Processor) Start() {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info("analytics processor started",
		zap.Int("workers", p.cfg.Workers),
		zap.Int("buffer_size", p.cfg.BufferSize))
}

// Submit enqueues a click without blocking. A full queue drops the event and
// counts it, keeping the redirect path fast under load.
func (p *Processor) Submit(ev ClickEvent) {
	p.submitted.Add(1)
	select {
	case p.events <- ev:
	default:
		p.dropped.Add(1)
		p.log.Warn("analytics queue full, dropping click", zap.String("alias", ev.Alias))
	}
}

// Stop closes the queue and waits for in-flight events to drain, up to the
// configured shutdown timeout.
func (p *Processor) Stop() {
	close(p.events)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timeout := p.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	select {
	case <-done:
		p.log.Info("analytics processor drained")
	case <-time.After(timeout):
		p.log.Warn("analytics processor shutdown timed out", zap.Int("remaining", len(p.events)))
	}
}

// Stats returns current counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Processed: p.processed.Load(),
		Dropped:   p.dropped.Load(),
		Failed:    p.failed.Load(),
		QueueLen:  len(p.events),
		QueueCap:  cap(p.events),
	}
}

func (p *Processor) worker(id int) {
	defer p.wg.Done()
	for ev := range p.events {
		p.process(ev)
	}
	p.log.Debug("analytics worker stopped", zap.Int("worker", id))
}

// process records one event, retrying transient failures with exponential
// backoff.
func (p *Processor) process(ev ClickEvent) {
	attempts := p.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = p.recorder.RecordClick(ctx, ev)
		cancel()

		if err == nil {
			p.processed.Add(1)
			return
		}

		if attempt < attempts {
			p.log.Debug("click record failed, retrying",
				zap.String("alias", ev.Alias),
				zap.Int("attempt", attempt),
				zap.Error(err))
			time.Sleep(delay)
			delay *= 2
		}
	}

	p.failed.Add(1)
	p.log.Error("failed to record click",
		zap.String("alias", ev.Alias),
		zap.Int64("link_id", ev.LinkID),
		zap.Error(err))
}
