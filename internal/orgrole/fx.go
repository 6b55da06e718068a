package orgrole

import (
	"github.com/CredenceNG/confirmd-platform/internal/orgrole/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("orgrole",
	fx.Provide(repository.NewRepository),
)
