package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	activitydomain "github.com/CredenceNG/confirmd-platform/internal/activity/domain"
	activityrepo "github.com/CredenceNG/confirmd-platform/internal/activity/repository"
	activityservice "github.com/CredenceNG/confirmd-platform/internal/activity/service"
	"github.com/CredenceNG/confirmd-platform/internal/config"
	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	obsmetrics "github.com/CredenceNG/confirmd-platform/internal/observability/metrics"
	"github.com/CredenceNG/confirmd-platform/internal/organization/domain"
	orgrepo "github.com/CredenceNG/confirmd-platform/internal/organization/repository"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	orgrolerepo "github.com/CredenceNG/confirmd-platform/internal/orgrole/repository"
	"github.com/CredenceNG/confirmd-platform/internal/providers/email"
	"github.com/CredenceNG/confirmd-platform/internal/providers/pdf"
	rolesyncdomain "github.com/CredenceNG/confirmd-platform/internal/rolesync/domain"
	rolesyncrepo "github.com/CredenceNG/confirmd-platform/internal/rolesync/repository"
	rolesyncservice "github.com/CredenceNG/confirmd-platform/internal/rolesync/service"
	"github.com/CredenceNG/confirmd-platform/internal/secrets"
	"github.com/CredenceNG/confirmd-platform/internal/seed"
	userdomain "github.com/CredenceNG/confirmd-platform/internal/user/domain"
	userrepo "github.com/CredenceNG/confirmd-platform/internal/user/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeIdp stands in for the provider. Clients are handed out sequentially and
// every org client exposes the standard role set unless a role name is hidden.
type fakeIdp struct {
	idpdomain.Service

	mu             sync.Mutex
	hiddenRoles    map[string]bool
	deletedClients []string
	assigns        int
	removes        int
}

func (f *fakeIdp) ManagementToken(ctx context.Context, p idpdomain.Principal) (idpdomain.TokenSet, error) {
	return idpdomain.TokenSet{AccessToken: "admin-token"}, nil
}

func (f *fakeIdp) CreateClient(ctx context.Context, token, orgName, orgID string) (idpdomain.Client, error) {
	return idpdomain.Client{
		IdpID:        "idp-" + orgID,
		ClientID:     "client-" + orgID,
		ClientSecret: "plain-client-secret",
		Name:         orgName,
	}, nil
}

func (f *fakeIdp) CreateClientRole(ctx context.Context, token, idpID, name, description string) error {
	return nil
}

func (f *fakeIdp) ClientRoles(ctx context.Context, token, idpID string) ([]idpdomain.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var roles []idpdomain.Role
	for _, name := range orgroledomain.DefaultClientRoles {
		if f.hiddenRoles[name] {
			continue
		}
		roles = append(roles, idpdomain.Role{ID: "role-" + name, Name: name, ClientRole: true})
	}
	return roles, nil
}

func (f *fakeIdp) AssignUserClientRoles(ctx context.Context, token, idpID, userID string, roles []idpdomain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigns++
	return nil
}

func (f *fakeIdp) RemoveUserClientRoles(ctx context.Context, token, idpID, userID string, roles []idpdomain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	return nil
}

func (f *fakeIdp) DeleteClient(ctx context.Context, token, idpID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedClients = append(f.deletedClients, idpID)
	return nil
}

func (f *fakeIdp) RegenerateClientSecret(ctx context.Context, token, idpID string) (string, error) {
	return "rotated-client-secret", nil
}

func (f *fakeIdp) hideRole(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hiddenRoles == nil {
		f.hiddenRoles = map[string]bool{}
	}
	f.hiddenRoles[name] = true
}

type orgFixture struct {
	db    *gorm.DB
	svc   domain.Service
	idp   *fakeIdp
	repo  domain.Repository
	roles orgroledomain.Repository
	users userdomain.Repository
	node  *snowflake.Node
}

func newOrgFixture(t *testing.T, maxOrgs int) *orgFixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	err = conn.AutoMigrate(
		&domain.Organization{},
		&domain.Invitation{},
		&domain.OrgDid{},
		&orgroledomain.OrgRole{},
		&orgroledomain.UserOrgRole{},
		&userdomain.User{},
		&activitydomain.Activity{},
		&rolesyncdomain.OutboxEntry{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := seed.EnsureRoleCatalog(conn); err != nil {
		t.Fatalf("failed to seed roles: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	m, err := obsmetrics.New(obsmetrics.Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("failed to build metrics: %v", err)
	}
	sealer, err := secrets.NewSealer("org-service-test-key")
	if err != nil {
		t.Fatalf("failed to build sealer: %v", err)
	}
	holder, err := config.NewPlatformConfigHolder()
	if err != nil {
		t.Fatalf("failed to build platform config: %v", err)
	}

	log := zap.NewNop()
	idp := &fakeIdp{}
	roles := orgrolerepo.NewRepository(conn)
	users := userrepo.NewRepository(conn)
	repo := orgrepo.NewRepository(conn)

	rolesyncSvc := rolesyncservice.NewService(rolesyncrepo.NewRepository(conn), idp, node, m, log)
	activitySvc := activityservice.NewService(activityservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  activityrepo.Provide(),
	})

	svc := NewService(Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Cfg:      config.Config{MaxOrgLimit: maxOrgs},
		Platform: holder,
		Repo:     repo,
		Roles:    roles,
		Users:    users,
		Idp:      idp,
		RoleSync: rolesyncSvc,
		Sealer:   sealer,
		Mailer:   &email.NoOpProvider{},
		PDF:      &pdf.NoOpProvider{},
		Activity: activitySvc,
		Metrics:  m,
	})

	return &orgFixture{db: conn, svc: svc, idp: idp, repo: repo, roles: roles, users: users, node: node}
}

func (f *orgFixture) newUser(t *testing.T, address string) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	err := f.users.Create(context.Background(), userdomain.User{
		ID:              id,
		Email:           address,
		Username:        address,
		FirstName:       "Test",
		LastName:        "User",
		IsEmailVerified: true,
		KeycloakUserID:  "kc-" + id.String(),
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return id
}

func (f *orgFixture) createOrg(t *testing.T, userID snowflake.ID, name string) snowflake.ID {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), userID, domain.CreateOrganizationRequest{Name: name})
	if err != nil {
		t.Fatalf("failed to create org %q: %v", name, err)
	}
	id, err := snowflake.ParseString(resp.ID)
	if err != nil {
		t.Fatalf("bad org id %q: %v", resp.ID, err)
	}
	return id
}

func (f *orgFixture) roleID(t *testing.T, name string) snowflake.ID {
	t.Helper()
	role, err := f.roles.GetRoleByName(context.Background(), name)
	if err != nil {
		t.Fatalf("role %q missing from catalog: %v", name, err)
	}
	return role.ID
}

func TestCreateAssignsOwnerAndRegisters(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")

	resp, err := f.svc.Create(context.Background(), owner, domain.CreateOrganizationRequest{
		Name:        "Acme Health Network",
		Description: "clinics",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if resp.Slug != "acme-health-network" {
		t.Fatalf("unexpected slug: %q", resp.Slug)
	}

	orgID, _ := snowflake.ParseString(resp.ID)
	memberships, err := f.roles.ListUserRoles(context.Background(), owner, orgID)
	if err != nil {
		t.Fatalf("listing roles failed: %v", err)
	}
	if len(memberships) != 1 || memberships[0].RoleName != orgroledomain.RoleOwner {
		t.Fatalf("expected owner membership, got %+v", memberships)
	}

	org, err := f.repo.GetByID(context.Background(), orgID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !org.Registered() {
		t.Fatal("expected provider registration after create")
	}
	if org.ClientSecret == "plain-client-secret" {
		t.Fatal("client secret stored unsealed")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, 0, domain.CreateOrganizationRequest{Name: "x"}); !errors.Is(err, domain.ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if _, err := f.svc.Create(ctx, owner, domain.CreateOrganizationRequest{Name: "  "}); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	if _, err := f.svc.Create(ctx, owner, domain.CreateOrganizationRequest{
		Name:       "Hooked",
		WebhookURL: "ftp://example.com/hook",
	}); !errors.Is(err, domain.ErrInvalidWebhookURL) {
		t.Fatalf("expected ErrInvalidWebhookURL, got %v", err)
	}

	incomplete := f.node.Generate()
	if err := f.users.Create(ctx, userdomain.User{ID: incomplete, Email: "no-kc@example.com", IsEmailVerified: true}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	if _, err := f.svc.Create(ctx, incomplete, domain.CreateOrganizationRequest{Name: "Nope"}); !errors.Is(err, userdomain.ErrSignupIncomplete) {
		t.Fatalf("expected ErrSignupIncomplete, got %v", err)
	}
}

func TestCreateSlugTaken(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	other := f.newUser(t, "other@example.com")

	f.createOrg(t, owner, "Acme Corp")
	_, err := f.svc.Create(context.Background(), other, domain.CreateOrganizationRequest{Name: "Acme Corp"})
	if !errors.Is(err, domain.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
}

func TestCreateSlugDerivation(t *testing.T) {
	f := newOrgFixture(t, 20)
	owner := f.newUser(t, "owner@example.com")
	ctx := context.Background()

	// Lowercase, hyphen-separated, no leading/trailing or doubled hyphens.
	wellFormed := regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

	for _, tc := range []struct {
		name string
		slug string
	}{
		{"Acme  Health -- Network!", "acme-health-network"},
		{"ÀCMÉ Research", "acme-research"},
		{"Data & Trust, Inc.", "data-and-trust-inc"},
		{"Tabs\tand   runs...", "tabs-and-runs"},
		{"plain-slug-input", "plain-slug-input"},
	} {
		resp, err := f.svc.Create(ctx, owner, domain.CreateOrganizationRequest{Name: tc.name})
		if err != nil {
			t.Fatalf("create %q failed: %v", tc.name, err)
		}
		if resp.Slug != tc.slug {
			t.Fatalf("name %q: expected slug %q, got %q", tc.name, tc.slug, resp.Slug)
		}
		if !wellFormed.MatchString(resp.Slug) {
			t.Fatalf("malformed slug %q", resp.Slug)
		}
	}

	// Derivation is idempotent: a name equal to an existing slug re-derives
	// to the same slug and collides.
	_, err := f.svc.Create(ctx, owner, domain.CreateOrganizationRequest{Name: "acme-health-network"})
	if !errors.Is(err, domain.ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken for re-derived slug, got %v", err)
	}
}

func TestCreateMaxOrgLimit(t *testing.T) {
	f := newOrgFixture(t, 2)
	owner := f.newUser(t, "owner@example.com")

	f.createOrg(t, owner, "First")
	f.createOrg(t, owner, "Second")
	_, err := f.svc.Create(context.Background(), owner, domain.CreateOrganizationRequest{Name: "Third"})
	if !errors.Is(err, domain.ErrMaxOrgLimit) {
		t.Fatalf("expected ErrMaxOrgLimit, got %v", err)
	}
}

func TestInviteValidation(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	stranger := f.newUser(t, "stranger@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	memberRole := f.roleID(t, orgroledomain.RoleMember)
	ctx := context.Background()

	if _, err := f.svc.Invite(ctx, stranger, orgID, domain.InviteRequest{
		Email:      "x@example.com",
		OrgRoleIDs: []snowflake.ID{memberRole},
	}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Invite(ctx, owner, orgID, domain.InviteRequest{
		Email:      "not-an-address",
		OrgRoleIDs: []snowflake.ID{memberRole},
	}); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := f.svc.Invite(ctx, owner, orgID, domain.InviteRequest{
		Email: "x@example.com",
	}); !errors.Is(err, orgroledomain.ErrInvalidOrgRole) {
		t.Fatalf("expected ErrInvalidOrgRole for empty roles, got %v", err)
	}
	if _, err := f.svc.Invite(ctx, owner, orgID, domain.InviteRequest{
		Email:      "x@example.com",
		OrgRoleIDs: []snowflake.ID{snowflake.ID(424242)},
	}); !errors.Is(err, orgroledomain.ErrInvalidOrgRole) {
		t.Fatalf("expected ErrInvalidOrgRole for unknown role, got %v", err)
	}
}

func TestInviteDuplicate(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	memberRole := f.roleID(t, orgroledomain.RoleMember)
	ctx := context.Background()

	req := domain.InviteRequest{Email: "Bob@Example.com", OrgRoleIDs: []snowflake.ID{memberRole}}
	inv, err := f.svc.Invite(ctx, owner, orgID, req)
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if inv.Email != "bob@example.com" {
		t.Fatalf("invitee address not normalized: %q", inv.Email)
	}

	if _, err := f.svc.Invite(ctx, owner, orgID, req); !errors.Is(err, domain.ErrInvitationExists) {
		t.Fatalf("expected ErrInvitationExists, got %v", err)
	}
}

func TestReinviteAfterRejection(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	bob := f.newUser(t, "bob@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	memberRole := f.roleID(t, orgroledomain.RoleMember)
	ctx := context.Background()

	req := domain.InviteRequest{Email: "bob@example.com", OrgRoleIDs: []snowflake.ID{memberRole}}
	inv, err := f.svc.Invite(ctx, owner, orgID, req)
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if err := f.svc.ResolveInvitation(ctx, bob, inv.ID, domain.StatusRejected); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	// A rejected row does not block a fresh invitation.
	second, err := f.svc.Invite(ctx, owner, orgID, req)
	if err != nil {
		t.Fatalf("re-invite after rejection failed: %v", err)
	}
	if second.ID == inv.ID {
		t.Fatal("expected a new invitation row")
	}
	if second.Status != domain.StatusPending {
		t.Fatalf("expected pending re-invite, got %q", second.Status)
	}
}

func TestDeleteInvitationScopedToOrg(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	orgA := f.createOrg(t, owner, "Acme Corp")
	orgB := f.createOrg(t, owner, "Beta Corp")
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, owner, orgA, domain.InviteRequest{
		Email:      "bob@example.com",
		OrgRoleIDs: []snowflake.ID{f.roleID(t, orgroledomain.RoleMember)},
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	if err := f.svc.DeleteInvitation(ctx, orgB, inv.ID); !errors.Is(err, domain.ErrOrgMismatch) {
		t.Fatalf("expected ErrOrgMismatch, got %v", err)
	}
	if err := f.svc.DeleteInvitation(ctx, orgA, inv.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := f.repo.GetInvitationByID(ctx, inv.ID); !errors.Is(err, domain.ErrInvitationNotFound) {
		t.Fatalf("expected ErrInvitationNotFound, got %v", err)
	}
}

func TestResolveInvitationEmailMismatch(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	mallory := f.newUser(t, "mallory@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")

	inv, err := f.svc.Invite(context.Background(), owner, orgID, domain.InviteRequest{
		Email:      "bob@example.com",
		OrgRoleIDs: []snowflake.ID{f.roleID(t, orgroledomain.RoleMember)},
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	err = f.svc.ResolveInvitation(context.Background(), mallory, inv.ID, domain.StatusAccepted)
	if !errors.Is(err, domain.ErrEmailMismatch) {
		t.Fatalf("expected ErrEmailMismatch, got %v", err)
	}
}

func TestResolveInvitationReject(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	bob := f.newUser(t, "bob@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, owner, orgID, domain.InviteRequest{
		Email:      "bob@example.com",
		OrgRoleIDs: []snowflake.ID{f.roleID(t, orgroledomain.RoleMember)},
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	if err := f.svc.ResolveInvitation(ctx, bob, inv.ID, domain.StatusRejected); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	// Rejected is terminal.
	err = f.svc.ResolveInvitation(ctx, bob, inv.ID, domain.StatusAccepted)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestResolveInvitationAccept(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	bob := f.newUser(t, "bob@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, owner, orgID, domain.InviteRequest{
		Email:      "bob@example.com",
		OrgRoleIDs: []snowflake.ID{f.roleID(t, orgroledomain.RoleMember), f.roleID(t, orgroledomain.RoleIssuer)},
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if err := f.svc.ResolveInvitation(ctx, bob, inv.ID, domain.StatusAccepted); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	memberships, err := f.roles.ListUserRoles(ctx, bob, orgID)
	if err != nil {
		t.Fatalf("listing roles failed: %v", err)
	}
	if len(memberships) != 2 {
		t.Fatalf("expected 2 role bindings, got %d", len(memberships))
	}
	for _, m := range memberships {
		if m.IdpRoleID == "" {
			t.Fatalf("binding %q missing provider role id", m.RoleName)
		}
	}

	stored, err := f.repo.GetInvitationByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.Status != domain.StatusAccepted {
		t.Fatalf("expected accepted, got %q", stored.Status)
	}
}

func TestResolveInvitationPlanFailureWritesNothing(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	bob := f.newUser(t, "bob@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, owner, orgID, domain.InviteRequest{
		Email:      "bob@example.com",
		OrgRoleIDs: []snowflake.ID{f.roleID(t, orgroledomain.RoleMember)},
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	// The provider lost the role between invite and accept.
	f.idp.hideRole(orgroledomain.RoleMember)

	err = f.svc.ResolveInvitation(ctx, bob, inv.ID, domain.StatusAccepted)
	if !errors.Is(err, rolesyncdomain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}

	memberships, err := f.roles.ListUserRoles(ctx, bob, orgID)
	if err != nil {
		t.Fatalf("listing roles failed: %v", err)
	}
	if len(memberships) != 0 {
		t.Fatalf("failed accept must not write roles, got %+v", memberships)
	}
	stored, err := f.repo.GetInvitationByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if stored.Status != domain.StatusPending {
		t.Fatalf("invitation must stay pending, got %q", stored.Status)
	}
}

func TestResolveInvitationRechecksOrgLimit(t *testing.T) {
	f := newOrgFixture(t, 1)
	owner := f.newUser(t, "owner@example.com")
	bob := f.newUser(t, "bob@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, owner, orgID, domain.InviteRequest{
		Email:      "bob@example.com",
		OrgRoleIDs: []snowflake.ID{f.roleID(t, orgroledomain.RoleMember)},
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}

	// Bob joins another organization before accepting.
	f.createOrg(t, bob, "Bobs Own Org")

	err = f.svc.ResolveInvitation(ctx, bob, inv.ID, domain.StatusAccepted)
	if !errors.Is(err, domain.ErrMaxOrgLimit) {
		t.Fatalf("expected ErrMaxOrgLimit, got %v", err)
	}
}

func TestUpdateUserRolesReplacesBindings(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	bob := f.newUser(t, "bob@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, owner, orgID, domain.InviteRequest{
		Email:      "bob@example.com",
		OrgRoleIDs: []snowflake.ID{f.roleID(t, orgroledomain.RoleMember)},
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if err := f.svc.ResolveInvitation(ctx, bob, inv.ID, domain.StatusAccepted); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	err = f.svc.UpdateUserRoles(ctx, owner, orgID, bob, []snowflake.ID{
		f.roleID(t, orgroledomain.RoleAdmin),
		f.roleID(t, orgroledomain.RoleIssuer),
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	memberships, err := f.roles.ListUserRoles(ctx, bob, orgID)
	if err != nil {
		t.Fatalf("listing roles failed: %v", err)
	}
	names := map[string]bool{}
	for _, m := range memberships {
		names[m.RoleName] = true
	}
	if len(names) != 2 || !names[orgroledomain.RoleAdmin] || !names[orgroledomain.RoleIssuer] {
		t.Fatalf("unexpected role set: %+v", memberships)
	}
}

func TestCredentialsMasking(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	ctx := context.Background()

	creds, err := f.svc.Credentials(ctx, owner, orgID)
	if err != nil {
		t.Fatalf("credentials failed: %v", err)
	}
	if creds.ClientSecret == "plain-client-secret" {
		t.Fatal("secret must be masked in reads")
	}
	if creds.ClientSecret != secrets.MaskString("plain-client-secret") {
		t.Fatalf("unexpected mask: %q", creds.ClientSecret)
	}

	rotated, err := f.svc.RegenerateCredentials(ctx, owner, orgID)
	if err != nil {
		t.Fatalf("regenerate failed: %v", err)
	}
	if rotated.ClientSecret != "rotated-client-secret" {
		t.Fatalf("rotation must return the plaintext once, got %q", rotated.ClientSecret)
	}

	creds, err = f.svc.Credentials(ctx, owner, orgID)
	if err != nil {
		t.Fatalf("credentials failed: %v", err)
	}
	if creds.ClientSecret != secrets.MaskString("rotated-client-secret") {
		t.Fatalf("expected rotated secret masked, got %q", creds.ClientSecret)
	}
}

func TestAddDidFirstBecomesPrimary(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	ctx := context.Background()

	first, err := f.svc.AddDid(ctx, orgID, "did:web:acme.example", false)
	if err != nil {
		t.Fatalf("add did failed: %v", err)
	}
	if !first.IsPrimary {
		t.Fatal("first DID must become primary")
	}

	second, err := f.svc.AddDid(ctx, orgID, "did:key:z6Mkacme", false)
	if err != nil {
		t.Fatalf("add did failed: %v", err)
	}
	if second.IsPrimary {
		t.Fatal("second DID must not steal primary")
	}
}

func TestSetPrimaryDid(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	otherOrg := f.createOrg(t, owner, "Other Corp")
	ctx := context.Background()

	first, err := f.svc.AddDid(ctx, orgID, "did:web:acme.example", false)
	if err != nil {
		t.Fatalf("add did failed: %v", err)
	}
	second, err := f.svc.AddDid(ctx, orgID, "did:key:z6Mkacme", false)
	if err != nil {
		t.Fatalf("add did failed: %v", err)
	}

	if err := f.svc.SetPrimaryDid(ctx, otherOrg, first.ID); !errors.Is(err, domain.ErrDidNotFound) {
		t.Fatalf("expected ErrDidNotFound across orgs, got %v", err)
	}

	if err := f.svc.SetPrimaryDid(ctx, orgID, second.ID); err != nil {
		t.Fatalf("set primary failed: %v", err)
	}

	dids, err := f.svc.ListDids(ctx, orgID)
	if err != nil {
		t.Fatalf("listing dids failed: %v", err)
	}
	primaries := 0
	for _, did := range dids {
		if did.IsPrimary {
			primaries++
			if did.ID != second.ID {
				t.Fatalf("wrong primary: %s", did.Did)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary, got %d", primaries)
	}
}

func TestDeleteCascade(t *testing.T) {
	f := newOrgFixture(t, 10)
	owner := f.newUser(t, "owner@example.com")
	bob := f.newUser(t, "bob@example.com")
	orgID := f.createOrg(t, owner, "Acme Corp")
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, owner, orgID, domain.InviteRequest{
		Email:      "bob@example.com",
		OrgRoleIDs: []snowflake.ID{f.roleID(t, orgroledomain.RoleMember)},
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if err := f.svc.ResolveInvitation(ctx, bob, inv.ID, domain.StatusAccepted); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if _, err := f.svc.AddDid(ctx, orgID, "did:web:acme.example", false); err != nil {
		t.Fatalf("add did failed: %v", err)
	}

	// Only the owner may delete.
	if _, err := f.svc.Delete(ctx, bob, orgID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	result, err := f.svc.Delete(ctx, owner, orgID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if result.Organization != 1 {
		t.Fatalf("expected 1 organization removed, got %d", result.Organization)
	}
	if result.UserRoles != 2 {
		t.Fatalf("expected 2 role bindings removed, got %d", result.UserRoles)
	}
	if result.Invitations != 1 {
		t.Fatalf("expected 1 invitation removed, got %d", result.Invitations)
	}
	if result.Dids != 1 {
		t.Fatalf("expected 1 did removed, got %d", result.Dids)
	}
	if result.Activities == 0 {
		t.Fatal("expected activity rows to be removed")
	}

	if len(f.idp.deletedClients) != 1 {
		t.Fatalf("expected provider client deletion, got %v", f.idp.deletedClients)
	}
	if _, err := f.svc.Get(ctx, orgID); !errors.Is(err, domain.ErrOrgNotFound) {
		t.Fatalf("expected ErrOrgNotFound after delete, got %v", err)
	}
}
