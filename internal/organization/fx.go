package organization

import (
	"github.com/CredenceNG/confirmd-platform/internal/organization/repository"
	"github.com/CredenceNG/confirmd-platform/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
