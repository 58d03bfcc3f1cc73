package store

import "go.uber.org/fx"

// Module exposes the transaction store via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
