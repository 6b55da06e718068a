package secrets

import (
	"github.com/CredenceNG/confirmd-platform/internal/config"
	"go.uber.org/fx"
)

func newFromConfig(cfg config.Config) (*Sealer, error) {
	return NewSealer(cfg.SecretKey)
}

var Module = fx.Module("secrets",
	fx.Provide(newFromConfig),
)
