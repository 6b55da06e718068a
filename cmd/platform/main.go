package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/CredenceNG/confirmd-platform/internal/activity"
	"github.com/CredenceNG/confirmd-platform/internal/authorization"
	"github.com/CredenceNG/confirmd-platform/internal/clock"
	"github.com/CredenceNG/confirmd-platform/internal/config"
	"github.com/CredenceNG/confirmd-platform/internal/idp"
	"github.com/CredenceNG/confirmd-platform/internal/metricspush"
	"github.com/CredenceNG/confirmd-platform/internal/migration"
	"github.com/CredenceNG/confirmd-platform/internal/observability"
	"github.com/CredenceNG/confirmd-platform/internal/organization"
	"github.com/CredenceNG/confirmd-platform/internal/orgrole"
	"github.com/CredenceNG/confirmd-platform/internal/providers"
	"github.com/CredenceNG/confirmd-platform/internal/ratelimit"
	"github.com/CredenceNG/confirmd-platform/internal/rolesync"
	"github.com/CredenceNG/confirmd-platform/internal/rpc"
	"github.com/CredenceNG/confirmd-platform/internal/scheduler"
	"github.com/CredenceNG/confirmd-platform/internal/secrets"
	"github.com/CredenceNG/confirmd-platform/internal/server"
	"github.com/CredenceNG/confirmd-platform/internal/storage"
	"github.com/CredenceNG/confirmd-platform/internal/user"
	"github.com/CredenceNG/confirmd-platform/pkg/db"
)

// RegisterSnowflake provides the process-wide ID generator.
func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func main() {
	fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		secrets.Module,
		storage.Module,
		providers.Module,
		idp.Module,

		orgrole.Module,
		rolesync.Module,
		user.Module,
		activity.Module,
		organization.Module,
		authorization.Module,

		rpc.Module,
		ratelimit.Module,
		server.Module,
		scheduler.Module,
		metricspush.Module,
	).Run()
}
