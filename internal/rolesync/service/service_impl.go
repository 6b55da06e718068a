package service

import (
	"context"
	"sync"
	"time"

	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	"github.com/CredenceNG/confirmd-platform/internal/observability/metrics"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	"github.com/CredenceNG/confirmd-platform/internal/rolesync/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

const maxOutboxAttempts = 5

type service struct {
	repo    domain.Repository
	idp     idpdomain.Service
	genID   *snowflake.Node
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewService(repo domain.Repository, idp idpdomain.Service, genID *snowflake.Node, m *metrics.Metrics, log *zap.Logger) domain.Service {
	return &service{
		repo:    repo,
		idp:     idp,
		genID:   genID,
		metrics: m,
		log:     log.Named("rolesync"),
	}
}

func (s *service) Plan(requested []orgroledomain.OrgRole, available []idpdomain.Role) ([]domain.Binding, error) {
	if len(requested) == 0 {
		return nil, nil
	}

	// First provider role wins when names collide.
	byName := make(map[string]idpdomain.Role, len(available))
	for _, role := range available {
		if _, seen := byName[role.Name]; !seen {
			byName[role.Name] = role
		}
	}

	bindings := make([]domain.Binding, 0, len(requested))
	for _, role := range requested {
		idpRole, ok := byName[role.Name]
		if !ok {
			return nil, domain.ErrRoleNotFound
		}
		bindings = append(bindings, domain.Binding{
			OrgRoleID: role.ID,
			Name:      role.Name,
			IdpRoleID: idpRole.ID,
		})
	}

	if len(bindings) != len(requested) {
		return nil, domain.ErrRoleNotFound
	}
	return bindings, nil
}

func (s *service) Assign(ctx context.Context, token, clientIdpID, userIdpID string, orgID snowflake.ID, bindings []domain.Binding) error {
	return s.apply(ctx, domain.OpAssign, token, clientIdpID, userIdpID, orgID, bindings)
}

func (s *service) Remove(ctx context.Context, token, clientIdpID, userIdpID string, orgID snowflake.ID, bindings []domain.Binding) error {
	return s.apply(ctx, domain.OpRemove, token, clientIdpID, userIdpID, orgID, bindings)
}

func (s *service) apply(ctx context.Context, op, token, clientIdpID, userIdpID string, orgID snowflake.ID, bindings []domain.Binding) error {
	if len(bindings) == 0 {
		return nil
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(200 * time.Millisecond):
			}
		}
		err = s.applyOnce(ctx, op, token, clientIdpID, userIdpID, bindings)
		if err == nil {
			s.metrics.RecordRoleSync(ctx, op, "applied")
			return nil
		}
	}

	// Provider unavailable. Persist the operations so the drain job finishes
	// them; the local assignment has already been decided.
	s.log.Warn("role operation deferred to outbox",
		zap.String("operation", op),
		zap.String("user_idp_id", userIdpID),
		zap.Error(err),
	)
	s.metrics.RecordRoleSync(ctx, op, "deferred")

	now := time.Now().UTC()
	entries := make([]domain.OutboxEntry, 0, len(bindings))
	for _, binding := range bindings {
		entries = append(entries, domain.OutboxEntry{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			UserIdpID:   userIdpID,
			ClientIdpID: clientIdpID,
			Operation:   op,
			IdpRoleID:   binding.IdpRoleID,
			RoleName:    binding.Name,
			Status:      domain.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return s.repo.Enqueue(ctx, entries)
}

func (s *service) applyOnce(ctx context.Context, op, token, clientIdpID, userIdpID string, bindings []domain.Binding) error {
	roles := make([]idpdomain.Role, 0, len(bindings))
	for _, binding := range bindings {
		roles = append(roles, idpdomain.Role{
			ID:          binding.IdpRoleID,
			Name:        binding.Name,
			ClientRole:  true,
			ContainerID: clientIdpID,
		})
	}
	if op == domain.OpRemove {
		return s.idp.RemoveUserClientRoles(ctx, token, clientIdpID, userIdpID, roles)
	}
	return s.idp.AssignUserClientRoles(ctx, token, clientIdpID, userIdpID, roles)
}

func (s *service) UnbindMembers(ctx context.Context, token string, members []domain.MemberBindings, policy domain.BatchPolicy) error {
	if len(members) == 0 {
		return nil
	}

	type outcome struct {
		index int
		err   error
	}

	results := make([]outcome, len(members))
	var wg sync.WaitGroup
	for i, member := range members {
		wg.Add(1)
		go func(i int, member domain.MemberBindings) {
			defer wg.Done()
			err := s.applyOnce(ctx, domain.OpRemove, token, member.ClientIdpID, member.UserIdpID, member.Bindings)
			results[i] = outcome{index: i, err: err}
		}(i, member)
	}
	wg.Wait()

	successes := 0
	var firstErr error
	for _, result := range results {
		if result.err == nil {
			successes++
			continue
		}
		if firstErr == nil {
			firstErr = result.err
		}
		s.log.Warn("member unbind failed",
			zap.String("user_idp_id", members[result.index].UserIdpID),
			zap.Error(result.err),
		)
	}

	if policy.OnPartialFailure == domain.PartialAbort && firstErr != nil {
		return firstErr
	}
	if successes < policy.MinSuccess {
		s.metrics.RecordRoleSync(ctx, domain.OpRemove, "batch_failed")
		return domain.ErrBatchFailed
	}
	return nil
}

func (s *service) Drain(ctx context.Context, limit int) (int, error) {
	entries, err := s.repo.FetchPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	tokens, err := s.idp.ManagementToken(ctx, idpdomain.Principal{PlatformAdmin: true})
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, entry := range entries {
		binding := []domain.Binding{{
			Name:      entry.RoleName,
			IdpRoleID: entry.IdpRoleID,
		}}
		applyErr := s.applyOnce(ctx, entry.Operation, tokens.AccessToken, entry.ClientIdpID, entry.UserIdpID, binding)
		if applyErr == nil {
			if err := s.repo.MarkDone(ctx, entry.ID); err != nil {
				return processed, err
			}
			processed++
			s.metrics.RecordRoleSync(ctx, entry.Operation, "drained")
			continue
		}

		attempts := entry.Attempts + 1
		terminal := attempts >= maxOutboxAttempts
		if terminal {
			s.log.Error("outbox entry exhausted retries",
				zap.Int64("entry_id", int64(entry.ID)),
				zap.String("operation", entry.Operation),
				zap.Error(applyErr),
			)
			s.metrics.RecordRoleSync(ctx, entry.Operation, "abandoned")
		}
		if err := s.repo.MarkFailed(ctx, entry.ID, attempts, applyErr.Error(), terminal); err != nil {
			return processed, err
		}
	}
	return processed, nil
}
