package retryqueue

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/havenpay/mpesa-bridge/internal/app/service/reconciler"
)

func runWorker(lc fx.Lifecycle, w *Worker, log *zap.SugaredLogger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting callback retry worker", "interval", w.interval, "max_attempts", w.maxAttempts)
			go w.Run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping callback retry worker")
			return w.Shutdown(ctx)
		},
	})
}

// Module exposes the deferred retry queue and its worker via Fx.
var Module = fx.Options(
	fx.Provide(NewQueue),
	fx.Provide(func(q *Queue) reconciler.RetryEnqueuer { return q }),
	fx.Provide(func(q *Queue) QueueStore { return q }),
	fx.Provide(func(r *reconciler.Service) Processor { return r }),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)
