package idp

import (
	"github.com/CredenceNG/confirmd-platform/internal/idp/keycloak"
	"go.uber.org/fx"
)

var Module = fx.Module("idp",
	fx.Provide(keycloak.NewService),
)
