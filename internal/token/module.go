package token

import (
	"go.uber.org/fx"
)

// Module provides the token manager
var Module = fx.Options(
	fx.Provide(NewManager),
)
