package accounts

import (
	"go.uber.org/fx"
)

// Module provides the account resolver
var Module = fx.Options(
	fx.Provide(NewResolver),
)
