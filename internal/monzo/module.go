package monzo

import (
	"go.uber.org/fx"
)

// Module provides the Monzo API client
var Module = fx.Options(
	fx.Provide(NewClient),
)
