package balances

import (
	"go.uber.org/fx"
)

// Module provides the balance reporter
var Module = fx.Options(
	fx.Provide(NewReporter),
)
