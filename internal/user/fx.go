package user

import (
	"github.com/CredenceNG/confirmd-platform/internal/user/repository"
	"github.com/CredenceNG/confirmd-platform/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
