package rolesync

import (
	"github.com/CredenceNG/confirmd-platform/internal/rolesync/repository"
	"github.com/CredenceNG/confirmd-platform/internal/rolesync/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rolesync",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
