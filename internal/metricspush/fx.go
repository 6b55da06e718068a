package metricspush

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pushInterval = 15 * time.Minute

var Module = fx.Module("metricspush",
	fx.Provide(NewPusher),
	fx.Provide(NewAccounting),
	fx.Invoke(start),
)

func start(lc fx.Lifecycle, pusher Pusher, accounting *Accounting, db *gorm.DB, log *zap.Logger) {
	if pusher == nil {
		return
	}
	log = log.Named("metricspush")

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ticker := time.NewTicker(pushInterval)
				defer ticker.Stop()

				run := func() {
					if err := accounting.Sample(ctx, db); err != nil {
						log.Warn("accounting sample incomplete", zap.Error(err))
					}
					if err := pusher.Push(ctx, accounting.Registry()); err != nil {
						log.Error("metrics push failed", zap.Error(err))
					}
				}

				run()
				for {
					select {
					case <-ticker.C:
						run()
					case <-ctx.Done():
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
