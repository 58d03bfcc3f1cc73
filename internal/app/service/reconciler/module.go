package reconciler

import (
	"go.uber.org/fx"

	"github.com/havenpay/mpesa-bridge/internal/app/service/callbacklog"
	"github.com/havenpay/mpesa-bridge/internal/app/service/notifier"
	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
)

// Module exposes the callback reconciler via Fx. The RetryEnqueuer binding
// lives in the retryqueue module to keep the dependency graph acyclic.
var Module = fx.Options(
	fx.Provide(func(s *store.Service) TransactionStore { return s }),
	fx.Provide(func(n *notifier.Service) Notifier { return n }),
	fx.Provide(func(a *callbacklog.Service) AuditLog { return a }),
	fx.Provide(NewService),
)
