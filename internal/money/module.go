package money

import (
	"go.uber.org/fx"

	"github.com/potwatch/potwatch/internal/config"
)

// Module provides the currency formatter for the configured display locale
var Module = fx.Options(
	fx.Provide(NewConfiguredFormatter),
)

// NewConfiguredFormatter builds a Formatter from the balances display locale
func NewConfiguredFormatter(cfg *config.Config) (*Formatter, error) {
	return NewFormatter(cfg.Balances.Locale)
}
