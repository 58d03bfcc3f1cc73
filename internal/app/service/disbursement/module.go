package disbursement

import (
	"go.uber.org/fx"

	"github.com/havenpay/mpesa-bridge/internal/app/service/store"
	"github.com/havenpay/mpesa-bridge/internal/platform/daraja"
)

var Module = fx.Options(
	fx.Provide(func(c *daraja.Client) Gateway { return c }),
	fx.Provide(func(s *store.Service) Store { return s }),
	fx.Provide(NewService),
)
