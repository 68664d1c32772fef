package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/voucher-wallet/internal/queue"
	"github.com/nimasrn/voucher-wallet/pkg/logger"
	"github.com/nimasrn/voucher-wallet/pkg/redis"
	"github.com/nimasrn/voucher-wallet/pkg/worker"
)

const (
	ProcessingTimeout = 10 * time.Second
	HealthInterval    = 30 * time.Second
	ReportInterval    = 30 * time.Second
	ShutdownTimeout   = time.Minute
	laggingPending    = 10_000
)

// Processor handles one stream entry. A nil error acks it.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type Options struct {
	Queue     queue.Config
	Consumers int
	Workers   int
}

// ProcessorService runs queue consumers that hand entries to a worker pool and
// wait for the verdict, plus the periodic background jobs of the processor
// binary.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	opts      Options
	processor Processor
	sweeper   *ExpirySweeper
	queues    []*queue.Queue
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

func NewProcessorService(adapter redis.RedisAdapter, processor Processor, opts Options) *ProcessorService {
	if opts.Consumers <= 0 {
		opts.Consumers = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	return &ProcessorService{
		adapter:   adapter,
		opts:      opts,
		processor: processor,
		metrics:   NewServiceMetrics(),
		worker:    worker.NewWorkerManager(opts.Workers*100, opts.Workers, nil),
	}
}

func (s *ProcessorService) WithSweeper(sweeper *ExpirySweeper) *ProcessorService {
	s.sweeper = sweeper
	return s
}

func (s *ProcessorService) Metrics() *ServiceMetrics { return s.metrics }

func (s *ProcessorService) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	logger.Info("starting processor service", "processor", s.processor.GetType())

	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(ctx); err != nil {
			logger.Info("worker manager stopped", "reason", err)
		}
	}()

	for i := 0; i < s.opts.Consumers; i++ {
		cfg := s.opts.Queue
		cfg.ConsumerName = fmt.Sprintf("%s-%d", cfg.ConsumerName, i)

		q, err := queue.New(ctx, s.adapter, cfg)
		if err != nil {
			s.Stop()
			return fmt.Errorf("create consumer %d: %w", i, err)
		}
		if err := q.Consume(ctx, s.messageHandler); err != nil {
			s.Stop()
			return fmt.Errorf("start consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	if s.sweeper != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sweeper.Run(ctx)
		}()
	}

	s.wg.Add(2)
	go s.every(ctx, ReportInterval, s.reportMetrics)
	go s.every(ctx, HealthInterval, s.healthCheck)

	logger.Info("processor service started", "consumers", len(s.queues), "workers", s.opts.Workers, "stream", s.opts.Queue.Name)
	return nil
}

func (s *ProcessorService) every(ctx context.Context, d time.Duration, fn func(ctx context.Context)) {
	defer s.wg.Done()
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics(ctx context.Context) {
	snap := s.metrics.Snapshot()
	logger.Info("processor metrics",
		"total_processed", snap.Processed,
		"total_failed", snap.Failed,
		"rate_per_second", snap.RatePerSecond,
		"avg_duration_ms", snap.AvgDuration.Milliseconds(),
		"uptime_seconds", snap.Uptime.Seconds())

	if len(s.queues) == 0 {
		return
	}
	if stats, err := s.queues[0].Stats(ctx); err == nil {
		logger.Info("stream stats", "total", stats.TotalMessages, "pending", stats.PendingMessages, "dead_letters", stats.DeadLetters)
	}
}

func (s *ProcessorService) healthCheck(ctx context.Context) {
	if err := s.adapter.Ping(ctx); err != nil {
		logger.Error("health check failed: redis", "error", err)
		return
	}
	if len(s.queues) > 0 {
		stats, err := s.queues[0].Stats(ctx)
		if err != nil {
			logger.Warn("health check: stream stats unavailable", "error", err)
			return
		}
		if stats.PendingMessages > laggingPending {
			logger.Warn("health check: stream lagging", "pending_messages", stats.PendingMessages)
		}
	}
	logger.Debug("health check ok")
}

func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service")
	if s.cancel != nil {
		s.cancel()
	}

	var stopping sync.WaitGroup
	for i, q := range s.queues {
		stopping.Add(1)
		go func(i int, q *queue.Queue) {
			defer stopping.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("consumer did not stop", "consumer", i, "error", err)
			}
		}(i, q)
	}
	stopping.Wait()

	s.worker.Exit()
	s.wg.Wait()
	s.reportMetrics(context.Background())
	logger.Info("processor service stopped")
}

type job struct {
	ctx    context.Context
	msg    *queue.Message
	result chan error
}

// messageHandler runs on a consumer goroutine and blocks until a worker has
// handled the entry, so the ack decision stays with the consumer.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	j := &job{ctx: ctx, msg: msg, result: make(chan error, 1)}
	if err := s.worker.Enqueue(ctx, j); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for worker: %w", ctx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, v interface{}) {
	j, ok := v.(*job)
	if !ok {
		logger.Error("invalid job type", "worker", workerIndex)
		return
	}
	if j.ctx.Err() != nil {
		logger.Warn("job expired before processing", "worker", workerIndex, "stream_id", j.msg.ID)
		return
	}

	started := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Warn("processing failed", "worker", workerIndex, "stream_id", j.msg.ID, "attempts", j.msg.Attempts, "error", err)
	} else {
		s.metrics.RecordSuccess(time.Since(started))
	}
	// result is buffered, the send never blocks.
	j.result <- err
}
