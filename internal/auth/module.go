package auth

import (
	"go.uber.org/fx"
)

// Module provides the OAuth login flow services
var Module = fx.Options(
	fx.Provide(
		NewStateManager,
		NewExchanger,
		NewService,
	),
)
