package activity

import (
	"github.com/CredenceNG/confirmd-platform/internal/activity/repository"
	"github.com/CredenceNG/confirmd-platform/internal/activity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activity",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
