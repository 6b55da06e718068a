package rpc

import (
	"context"

	"github.com/CredenceNG/confirmd-platform/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rpc",
	fx.Provide(NewDispatcher),
	fx.Provide(newBus),
	fx.Invoke(RegisterHandlers),
)

func newBus(lc fx.Lifecycle, cfg config.Config, d *Dispatcher, log *zap.Logger) Bus {
	if cfg.RPCMode != "redis" {
		return NewLocalBus(d)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	worker := NewWorker(client, d, log)

	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go worker.Run(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return client.Close()
		},
	})

	return NewRedisBus(client, log)
}
