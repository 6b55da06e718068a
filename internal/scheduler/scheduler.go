// Package scheduler runs the platform's periodic maintenance jobs: draining
// the role-sync outbox, repairing organizations whose identity-provider
// registration never completed, and purging expired one-time tokens. Each job
// takes a Redis lock so only one replica works at a time.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/CredenceNG/confirmd-platform/internal/clock"
	obsmetrics "github.com/CredenceNG/confirmd-platform/internal/observability/metrics"
	orgdomain "github.com/CredenceNG/confirmd-platform/internal/organization/domain"
	"github.com/CredenceNG/confirmd-platform/internal/ratelimit"
	rolesyncdomain "github.com/CredenceNG/confirmd-platform/internal/rolesync/domain"
	userdomain "github.com/CredenceNG/confirmd-platform/internal/user/domain"
)

const (
	jobRoleSyncDrain = "rolesync_drain"
	jobOrgRepair     = "org_repair"
	jobTokenPurge    = "token_purge"
)

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	Locker       *ratelimit.Locker `optional:"true"`
	RoleSync     rolesyncdomain.Service
	RoleSyncRepo rolesyncdomain.Repository
	Orgs         orgdomain.Service
	Users        userdomain.Repository
	Config       Config `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	locker       *ratelimit.Locker
	roleSync     rolesyncdomain.Service
	roleSyncRepo rolesyncdomain.Repository
	orgs         orgdomain.Service
	users        userdomain.Repository
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.RoleSync == nil || p.RoleSyncRepo == nil || p.Orgs == nil || p.Users == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler"),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		locker:       p.Locker,
		roleSync:     p.RoleSync,
		roleSyncRepo: p.RoleSyncRepo,
		orgs:         p.Orgs,
		users:        p.Users,
	}, nil
}

// RunOnce executes one maintenance pass. Job failures are logged and counted
// but never stop the other jobs.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.runJob(ctx, jobRoleSyncDrain, s.drainRoleSync)
	s.runJob(ctx, jobOrgRepair, s.repairOrgs)
	s.runJob(ctx, jobTokenPurge, s.purgeTokens)
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	if s.locker != nil {
		key := "scheduler:lock:" + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("job lock unavailable, skipping",
				zap.String("job", name),
				zap.Error(err),
			)
			return
		}
		if !ok {
			return
		}
		defer func() {
			if err := s.locker.Release(ctx, key, token); err != nil {
				s.log.Warn("job lock release failed",
					zap.String("job", name),
					zap.Error(err),
				)
			}
		}()
	}

	started := time.Now()
	err := fn(ctx)
	obsmetrics.Jobs().ObserveRun(name, started, err)
	if err != nil {
		s.log.Error("job failed",
			zap.String("job", name),
			zap.Error(err),
		)
	}
}

func (s *Scheduler) drainRoleSync(ctx context.Context) error {
	processed, err := s.roleSync.Drain(ctx, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("drain role sync outbox: %w", err)
	}
	if processed > 0 {
		s.log.Info("role sync outbox drained", zap.Int("processed", processed))
	}

	pending, err := s.roleSyncRepo.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("count pending outbox entries: %w", err)
	}
	obsmetrics.Jobs().SetBacklog(jobRoleSyncDrain, float64(pending))
	return nil
}

func (s *Scheduler) repairOrgs(ctx context.Context) error {
	repaired, err := s.orgs.RegisterOrgsMapUsers(ctx, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("repair unregistered organizations: %w", err)
	}
	if repaired > 0 {
		s.log.Info("organizations repaired", zap.Int("repaired", repaired))
	}
	return nil
}

func (s *Scheduler) purgeTokens(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.TokenRetention)
	purged, err := s.users.PurgeExpiredTokens(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge expired tokens: %w", err)
	}
	if purged > 0 {
		s.log.Info("expired tokens purged", zap.Int64("purged", purged))
	}
	return nil
}

// Run loops until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
