package service

import (
	"context"
	"errors"
	"testing"

	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	obsmetrics "github.com/CredenceNG/confirmd-platform/internal/observability/metrics"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	"github.com/CredenceNG/confirmd-platform/internal/rolesync/domain"
	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeIdp struct {
	idpdomain.Service

	assignErr error
	removeErr error
	assigned  [][]idpdomain.Role
	removed   [][]idpdomain.Role
}

func (f *fakeIdp) ManagementToken(ctx context.Context, p idpdomain.Principal) (idpdomain.TokenSet, error) {
	return idpdomain.TokenSet{AccessToken: "admin-token"}, nil
}

func (f *fakeIdp) AssignUserClientRoles(ctx context.Context, token, idpID, userID string, roles []idpdomain.Role) error {
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assigned = append(f.assigned, roles)
	return nil
}

func (f *fakeIdp) RemoveUserClientRoles(ctx context.Context, token, idpID, userID string, roles []idpdomain.Role) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, roles)
	return nil
}

type fakeRepo struct {
	entries map[snowflake.ID]domain.OutboxEntry
	order   []snowflake.ID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: make(map[snowflake.ID]domain.OutboxEntry)}
}

func (r *fakeRepo) WithTx(tx *gorm.DB) domain.Repository { return r }

func (r *fakeRepo) Enqueue(ctx context.Context, entries []domain.OutboxEntry) error {
	for _, entry := range entries {
		r.entries[entry.ID] = entry
		r.order = append(r.order, entry.ID)
	}
	return nil
}

func (r *fakeRepo) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEntry, error) {
	var pending []domain.OutboxEntry
	for _, id := range r.order {
		entry := r.entries[id]
		if entry.Status == domain.StatusPending {
			pending = append(pending, entry)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (r *fakeRepo) MarkDone(ctx context.Context, id snowflake.ID) error {
	entry := r.entries[id]
	entry.Status = domain.StatusDone
	r.entries[id] = entry
	return nil
}

func (r *fakeRepo) MarkFailed(ctx context.Context, id snowflake.ID, attempts int, lastError string, terminal bool) error {
	entry := r.entries[id]
	entry.Attempts = attempts
	entry.LastError = lastError
	entry.Status = domain.StatusPending
	if terminal {
		entry.Status = domain.StatusFailed
	}
	r.entries[id] = entry
	return nil
}

func (r *fakeRepo) CountPending(ctx context.Context) (int64, error) {
	var count int64
	for _, entry := range r.entries {
		if entry.Status == domain.StatusPending {
			count++
		}
	}
	return count, nil
}

func newTestService(t *testing.T, repo domain.Repository, idp idpdomain.Service) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	m, err := obsmetrics.New(obsmetrics.Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("failed to build metrics: %v", err)
	}
	return NewService(repo, idp, node, m, zap.NewNop())
}

func catalogRole(id int64, name string) orgroledomain.OrgRole {
	return orgroledomain.OrgRole{ID: snowflake.ID(id), Name: name}
}

func TestPlanJoinsByName(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), &fakeIdp{})

	bindings, err := svc.Plan(
		[]orgroledomain.OrgRole{catalogRole(1, "owner"), catalogRole(2, "member")},
		[]idpdomain.Role{
			{ID: "idp-owner", Name: "owner"},
			{ID: "idp-member", Name: "member"},
		},
	)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if len(bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(bindings))
	}
	if bindings[0].IdpRoleID != "idp-owner" || bindings[1].IdpRoleID != "idp-member" {
		t.Fatalf("unexpected bindings: %+v", bindings)
	}
}

func TestPlanMissingProviderRoleFails(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), &fakeIdp{})

	_, err := svc.Plan(
		[]orgroledomain.OrgRole{catalogRole(1, "owner"), catalogRole(2, "auditor")},
		[]idpdomain.Role{{ID: "idp-owner", Name: "owner"}},
	)
	if !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestPlanFirstProviderRoleWinsOnCollision(t *testing.T) {
	svc := newTestService(t, newFakeRepo(), &fakeIdp{})

	bindings, err := svc.Plan(
		[]orgroledomain.OrgRole{catalogRole(1, "owner")},
		[]idpdomain.Role{
			{ID: "idp-a", Name: "owner"},
			{ID: "idp-b", Name: "owner"},
		},
	)
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if bindings[0].IdpRoleID != "idp-a" {
		t.Fatalf("expected first provider role to win, got %q", bindings[0].IdpRoleID)
	}
}

func TestAssignAppliesOnProvider(t *testing.T) {
	idp := &fakeIdp{}
	repo := newFakeRepo()
	svc := newTestService(t, repo, idp)

	err := svc.Assign(context.Background(), "token", "client-1", "user-1", snowflake.ID(10), []domain.Binding{
		{OrgRoleID: snowflake.ID(1), Name: "owner", IdpRoleID: "idp-owner"},
	})
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if len(idp.assigned) != 1 {
		t.Fatalf("expected one provider call, got %d", len(idp.assigned))
	}
	if count, _ := repo.CountPending(context.Background()); count != 0 {
		t.Fatalf("expected no outbox entries, got %d", count)
	}
}

func TestAssignFallsBackToOutbox(t *testing.T) {
	idp := &fakeIdp{assignErr: errors.New("provider down")}
	repo := newFakeRepo()
	svc := newTestService(t, repo, idp)

	err := svc.Assign(context.Background(), "token", "client-1", "user-1", snowflake.ID(10), []domain.Binding{
		{OrgRoleID: snowflake.ID(1), Name: "owner", IdpRoleID: "idp-owner"},
		{OrgRoleID: snowflake.ID(2), Name: "member", IdpRoleID: "idp-member"},
	})
	if err != nil {
		t.Fatalf("expected outbox fallback, got %v", err)
	}

	count, _ := repo.CountPending(context.Background())
	if count != 2 {
		t.Fatalf("expected 2 pending entries, got %d", count)
	}
	for _, entry := range repo.entries {
		if entry.Operation != domain.OpAssign {
			t.Fatalf("unexpected operation: %q", entry.Operation)
		}
	}
}

func TestDrainAppliesPendingEntries(t *testing.T) {
	idp := &fakeIdp{}
	repo := newFakeRepo()
	svc := newTestService(t, repo, idp)

	node, _ := snowflake.NewNode(2)
	id := node.Generate()
	_ = repo.Enqueue(context.Background(), []domain.OutboxEntry{{
		ID:          id,
		OrgID:       snowflake.ID(10),
		UserIdpID:   "user-1",
		ClientIdpID: "client-1",
		Operation:   domain.OpAssign,
		IdpRoleID:   "idp-owner",
		RoleName:    "owner",
		Status:      domain.StatusPending,
	}})

	processed, err := svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}
	if repo.entries[id].Status != domain.StatusDone {
		t.Fatalf("expected done, got %q", repo.entries[id].Status)
	}
}

func TestDrainMarksTerminalAfterMaxAttempts(t *testing.T) {
	idp := &fakeIdp{assignErr: errors.New("still down")}
	repo := newFakeRepo()
	svc := newTestService(t, repo, idp)

	node, _ := snowflake.NewNode(2)
	id := node.Generate()
	_ = repo.Enqueue(context.Background(), []domain.OutboxEntry{{
		ID:          id,
		OrgID:       snowflake.ID(10),
		UserIdpID:   "user-1",
		ClientIdpID: "client-1",
		Operation:   domain.OpAssign,
		IdpRoleID:   "idp-owner",
		RoleName:    "owner",
		Attempts:    maxOutboxAttempts - 1,
		Status:      domain.StatusPending,
	}})

	processed, err := svc.Drain(context.Background(), 10)
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected 0 processed, got %d", processed)
	}
	entry := repo.entries[id]
	if entry.Status != domain.StatusFailed {
		t.Fatalf("expected terminal failure, got %q", entry.Status)
	}
	if entry.Attempts != maxOutboxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxOutboxAttempts, entry.Attempts)
	}
}

func TestUnbindMembersPolicy(t *testing.T) {
	idp := &fakeIdp{removeErr: errors.New("down")}
	svc := newTestService(t, newFakeRepo(), idp)

	members := []domain.MemberBindings{{
		UserIdpID:   "user-1",
		ClientIdpID: "client-1",
		Bindings:    []domain.Binding{{Name: "owner", IdpRoleID: "idp-owner"}},
	}}

	err := svc.UnbindMembers(context.Background(), "token", members, domain.BatchPolicy{
		MinSuccess:       1,
		OnPartialFailure: domain.PartialContinue,
	})
	if !errors.Is(err, domain.ErrBatchFailed) {
		t.Fatalf("expected ErrBatchFailed, got %v", err)
	}

	idp.removeErr = nil
	err = svc.UnbindMembers(context.Background(), "token", members, domain.BatchPolicy{
		MinSuccess:       1,
		OnPartialFailure: domain.PartialContinue,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}
