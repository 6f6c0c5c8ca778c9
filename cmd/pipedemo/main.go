// Command pipedemo wires a representative pipeline — action, validating
// and tagging events; batch, aggregating validated events on size and
// time; fork-join, running an audit log and a checksum computation over
// every batched event concurrently — and serves its live counters over
// an admin HTTP surface, for manual exercise of the library.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fermilabs/pipeflow/block"
	"github.com/fermilabs/pipeflow/internal/adminserver"
	"github.com/fermilabs/pipeflow/internal/config"
	"github.com/fermilabs/pipeflow/internal/health"
	"github.com/fermilabs/pipeflow/internal/metrics"
	"github.com/fermilabs/pipeflow/limiter"
	"github.com/fermilabs/pipeflow/pipe"
	"github.com/fermilabs/pipeflow/pipeline"
)

// Event is the element type flowing through pipedemo's pipeline.
// Pointers give ParallelBlock's completion tracker a stable, comparable
// identity per event.
type Event struct {
	ID       string
	Payload  string
	Valid    bool
	Checksum uint32
}

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.Admin.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder := metrics.NewRecorder("pipeflow")

	rejected, err := pipe.Action[*Event](block.FromItemFunc(func(_ context.Context, e *Event) error {
		logger.Warn("event rejected", zap.String("id", e.ID))
		return nil
	})).
		Id("rejected").
		Logger(logger).
		Observer(recorder.For("rejected")).
		Build()
	if err != nil {
		logger.Fatal("building rejected pipe", zap.Error(err))
	}

	validate, err := pipe.Action[*Event](block.FromItemFunc(func(_ context.Context, e *Event) error {
		e.Valid = e.Payload != ""
		return nil
	})).
		Id("validate").
		DegreeOfParallelism(cfg.Pipe.ActionParallelism).
		Route(func(e *Event) *pipe.Pipe[*Event] {
			if !e.Valid {
				return rejected
			}
			return nil
		}).
		CancellationToken(ctx).
		Logger(logger).
		Observer(recorder.For("validate")).
		Build()
	if err != nil {
		logger.Fatal("building validate pipe", zap.Error(err))
	}

	batch, err := pipe.Batch[*Event](cfg.Pipe.BatchSize, func(_ context.Context, events []*Event) error {
		logger.Info("batch ready", zap.Int("size", len(events)))
		return nil
	}).
		Id("batch").
		BatchTriggerPeriod(cfg.Pipe.BatchFlushPeriod).
		CancellationToken(ctx).
		Logger(logger).
		Observer(recorder.For("batch")).
		Build()
	if err != nil {
		logger.Fatal("building batch pipe", zap.Error(err))
	}

	fork, err := pipe.Fork[*Event](
		block.InnerBuilder[*Event]{
			ID: "audit",
			Build: func(done block.Done[*Event]) (block.Block[*Event], error) {
				return block.NewActionBlock(block.ActionBlockOptions[*Event]{
					Capacity:    cfg.Pipe.ForkParallelism * 2,
					Parallelism: cfg.Pipe.ForkParallelism,
					Action: block.FromItemFunc(func(_ context.Context, e *Event) error {
						logger.Info("audit log", zap.String("id", e.ID))
						return nil
					}),
					Done:     done,
					Context:  ctx,
					Observer: recorder.For("fork.audit"),
					Logger:   logger,
					Name:     "fork.audit",
				})
			},
		},
		block.InnerBuilder[*Event]{
			ID: "checksum",
			Build: func(done block.Done[*Event]) (block.Block[*Event], error) {
				return block.NewActionBlock(block.ActionBlockOptions[*Event]{
					Capacity:    cfg.Pipe.ForkParallelism * 2,
					Parallelism: cfg.Pipe.ForkParallelism,
					Action: block.FromItemFunc(func(_ context.Context, e *Event) error {
						e.Checksum = checksum(e.Payload)
						return nil
					}),
					Done:     done,
					Context:  ctx,
					Observer: recorder.For("fork.checksum"),
					Logger:   logger,
					Name:     "fork.checksum",
				})
			},
		},
	).
		Id("fork").
		DegreeOfParallelism(cfg.Pipe.ForkParallelism).
		Join(func(_ context.Context, e *Event) error {
			logger.Debug("event joined", zap.String("id", e.ID), zap.Uint32("checksum", e.Checksum))
			return nil
		}).
		CancellationToken(ctx).
		Logger(logger).
		Observer(recorder.For("fork")).
		Build()
	if err != nil {
		logger.Fatal("building fork pipe", zap.Error(err))
	}

	pl := pipeline.New[*Event](nil)
	for _, p := range []*pipe.Pipe[*Event]{validate, batch, fork} {
		if err := pl.Add(p); err != nil {
			logger.Fatal("adding pipe", zap.Error(err))
		}
	}

	var rateLimiter *limiter.KeyedRateLimiter
	if cfg.Limiter.RateLimitPerSec > 0 {
		rateLimiter = limiter.NewKeyedRateLimiter(cfg.Limiter.RateLimitPerSec, cfg.Limiter.RateLimitBurst, cfg.Limiter.RateLimitIdleTTL)
		defer rateLimiter.Close()
	}

	var wipLimiter *limiter.PipelineLimiter[*Event]
	wipLimiter, err = limiter.NewPipelineLimiter(limiter.PipelineLimiterOptions[*Event]{
		MaxWork: cfg.Limiter.MaxWork,
		Dispatch: func(ctx context.Context, e *Event) error {
			defer wipLimiter.TrackDone()
			return pl.Send(ctx, block.Of(e), "")
		},
		RateLimiter:  rateLimiter,
		RateLimitKey: "validate",
		Context:      ctx,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal("building pipeline limiter", zap.Error(err))
	}

	checker := health.NewChecker()
	checker.Register("pipeline", func() error { return nil })

	admin := &http.Server{
		Addr: ":" + cfg.Admin.Port,
		Handler: adminserver.New(adminserver.Options{
			AllowedOrigins: cfg.Admin.AllowedOrigins,
			Checker:        checker,
			Inspector:      pipelineInspector{pl},
			Logger:         logger,
		}),
	}
	go func() {
		logger.Info("admin server listening", zap.String("addr", admin.Addr))
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", zap.Error(err))
		}
	}()

	go generateLoad(ctx, wipLimiter, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown error", zap.Error(err))
	}

	if err := wipLimiter.Complete(); err != nil {
		logger.Error("pipeline limiter shutdown error", zap.Error(err))
	}
	if err := pl.Complete(); err != nil {
		logger.Error("pipeline shutdown error", zap.Error(err))
	}
	if err := rejected.Wait(); err != nil {
		logger.Error("rejected pipe shutdown error", zap.Error(err))
	}
	logger.Info("pipedemo stopped")
}

func generateLoad(ctx context.Context, l *limiter.PipelineLimiter[*Event], logger *zap.Logger) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			e := &Event{ID: fmt.Sprintf("evt-%d", n), Payload: randomPayload(n)}
			if err := l.Send(ctx, e); err != nil {
				logger.Debug("send stopped", zap.Error(err))
				return
			}
		}
	}
}

func randomPayload(n int) string {
	if n%17 == 0 {
		return ""
	}
	return fmt.Sprintf("payload-%d-%d", n, rand.Intn(1000))
}

func checksum(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

type pipelineInspector struct {
	pl *pipeline.Pipeline[*Event]
}

func (i pipelineInspector) Stats() []adminserver.PipeStats {
	stats := i.pl.Stats()
	out := make([]adminserver.PipeStats, len(stats))
	for idx, s := range stats {
		out[idx] = adminserver.PipeStats{ID: s.ID, Metrics: s.Metrics}
	}
	return out
}

func newLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}
