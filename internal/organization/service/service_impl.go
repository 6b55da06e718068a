package service

import (
	"context"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	activitydomain "github.com/CredenceNG/confirmd-platform/internal/activity/domain"
	"github.com/CredenceNG/confirmd-platform/internal/config"
	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	obsmetrics "github.com/CredenceNG/confirmd-platform/internal/observability/metrics"
	"github.com/CredenceNG/confirmd-platform/internal/organization/domain"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	"github.com/CredenceNG/confirmd-platform/internal/providers/email"
	"github.com/CredenceNG/confirmd-platform/internal/providers/pdf"
	rolesyncdomain "github.com/CredenceNG/confirmd-platform/internal/rolesync/domain"
	"github.com/CredenceNG/confirmd-platform/internal/secrets"
	userdomain "github.com/CredenceNG/confirmd-platform/internal/user/domain"
	pkgdb "github.com/CredenceNG/confirmd-platform/pkg/db"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Cfg      config.Config
	Platform *config.PlatformConfigHolder
	Repo     domain.Repository
	Roles    orgroledomain.Repository
	Users    userdomain.Repository
	Idp      idpdomain.Service
	RoleSync rolesyncdomain.Service
	Sealer   *secrets.Sealer
	Mailer   email.Provider
	PDF      pdf.Provider
	Activity activitydomain.Service
	Metrics  *obsmetrics.Metrics
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	cfg      config.Config
	platform *config.PlatformConfigHolder
	repo     domain.Repository
	roles    orgroledomain.Repository
	users    userdomain.Repository
	idp      idpdomain.Service
	rolesync rolesyncdomain.Service
	sealer   *secrets.Sealer
	mailer   email.Provider
	pdf      pdf.Provider
	activity activitydomain.Service
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("organization.service"),
		genID:    p.GenID,
		cfg:      p.Cfg,
		platform: p.Platform,
		repo:     p.Repo,
		roles:    p.Roles,
		users:    p.Users,
		idp:      p.Idp,
		rolesync: p.RoleSync,
		sealer:   p.Sealer,
		mailer:   p.Mailer,
		pdf:      p.PDF,
		activity: p.Activity,
		metrics:  p.Metrics,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.KeycloakUserID == "" {
		return nil, userdomain.ErrSignupIncomplete
	}

	count, err := s.roles.CountUserOrgs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if count >= int64(s.cfg.MaxOrgLimit) {
		return nil, domain.ErrMaxOrgLimit
	}

	orgSlug := slug.Make(name)
	if _, err := s.repo.GetBySlug(ctx, orgSlug); err == nil {
		return nil, domain.ErrSlugTaken
	} else if err != domain.ErrOrgNotFound {
		return nil, err
	}

	if req.WebhookURL != "" {
		if err := validateWebhookURL(req.WebhookURL); err != nil {
			return nil, err
		}
	}

	ownerRole, err := s.roles.GetRoleByName(ctx, orgroledomain.RoleOwner)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	org := domain.Organization{
		ID:          s.genID.Generate(),
		Name:        name,
		Slug:        orgSlug,
		Description: strings.TrimSpace(req.Description),
		LogoURL:     strings.TrimSpace(req.LogoURL),
		WebsiteURL:  strings.TrimSpace(req.WebsiteURL),
		WebhookURL:  strings.TrimSpace(req.WebhookURL),
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}
		return s.roles.WithTx(tx).AssignUserRole(ctx, orgroledomain.UserOrgRole{
			ID:        s.genID.Generate(),
			UserID:    userID,
			OrgID:     org.ID,
			OrgRoleID: ownerRole.ID,
			CreatedAt: now,
		})
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	// Identity-provider registration happens after the local commit. A
	// failure here leaves the organization unregistered; the repair job
	// re-registers it.
	if err := s.registerOrg(ctx, &org); err != nil {
		s.log.Warn("identity provider registration failed",
			zap.String("org_id", org.ID.String()), zap.Error(err))
	}

	s.metrics.RecordOrgCreated(ctx)
	s.recordActivity(ctx, &userID, &org.ID, "organization_created", "organization", org.ID.String(), map[string]any{
		"name": name,
		"slug": orgSlug,
	})

	resp := toResponse(org)
	return &resp, nil
}

// registerOrg creates the identity-provider client, provisions the standard
// client roles, persists the returned identifiers, and binds every existing
// member's roles on the provider. Used both at creation and by the repair
// job.
func (s *service) registerOrg(ctx context.Context, org *domain.Organization) error {
	token, err := s.idp.ManagementToken(ctx, idpdomain.Principal{PlatformAdmin: true})
	if err != nil {
		return err
	}

	client, err := s.idp.CreateClient(ctx, token.AccessToken, org.Name, org.ID.String())
	if err != nil {
		return err
	}

	for _, name := range orgroledomain.DefaultClientRoles {
		if err := s.idp.CreateClientRole(ctx, token.AccessToken, client.IdpID, name, name+" role"); err != nil {
			return err
		}
	}

	sealed, err := s.sealer.Seal(client.ClientSecret)
	if err != nil {
		return err
	}

	org.IdpID = client.IdpID
	org.ClientID = client.ClientID
	org.ClientSecret = sealed
	org.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateOrganization(ctx, *org); err != nil {
		return err
	}

	return s.mapMembers(ctx, token.AccessToken, *org, client.IdpID)
}

// mapMembers binds each local member's catalog roles on the provider client.
func (s *service) mapMembers(ctx context.Context, token string, org domain.Organization, clientIdpID string) error {
	memberships, err := s.roles.ListMembers(ctx, org.ID)
	if err != nil {
		return err
	}
	if len(memberships) == 0 {
		return nil
	}

	available, err := s.idp.ClientRoles(ctx, token, clientIdpID)
	if err != nil {
		return err
	}

	byUser := groupByUser(memberships)
	for userID, rows := range byUser {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil || user.KeycloakUserID == "" {
			s.log.Warn("skipping member without provider identity",
				zap.String("org_id", org.ID.String()),
				zap.String("user_id", userID.String()))
			continue
		}

		roleIDs := make([]snowflake.ID, 0, len(rows))
		for _, row := range rows {
			roleIDs = append(roleIDs, row.OrgRoleID)
		}
		requested, err := s.roles.GetRolesByIDs(ctx, roleIDs)
		if err != nil {
			return err
		}
		bindings, err := s.rolesync.Plan(requested, available)
		if err != nil {
			return err
		}
		if err := s.rolesync.Assign(ctx, token, clientIdpID, user.KeycloakUserID, org.ID, bindings); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Update(ctx context.Context, userID, orgID snowflake.ID, req domain.UpdateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if err := s.requireRole(ctx, userID, orgID, orgroledomain.RoleOwner, orgroledomain.RoleAdmin); err != nil {
		return nil, err
	}

	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		if name != org.Name {
			newSlug := slug.Make(name)
			if newSlug != org.Slug {
				if _, err := s.repo.GetBySlug(ctx, newSlug); err == nil {
					return nil, domain.ErrSlugTaken
				} else if err != domain.ErrOrgNotFound {
					return nil, err
				}
				org.Slug = newSlug
			}
			org.Name = name
		}
	}
	if req.Description != nil {
		org.Description = strings.TrimSpace(*req.Description)
	}
	if req.LogoURL != nil {
		org.LogoURL = strings.TrimSpace(*req.LogoURL)
	}
	if req.WebsiteURL != nil {
		org.WebsiteURL = strings.TrimSpace(*req.WebsiteURL)
	}
	org.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdateOrganization(ctx, *org); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.recordActivity(ctx, &userID, &orgID, "organization_updated", "organization", orgID.String(), nil)

	resp := toResponse(*org)
	return &resp, nil
}

func (s *service) Get(ctx context.Context, orgID snowflake.ID) (*domain.OrganizationResponse, error) {
	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	resp := toResponse(*org)
	return &resp, nil
}

func (s *service) List(ctx context.Context, req pagination.Request) ([]domain.OrganizationResponse, pagination.Page, error) {
	req = req.Normalize()
	orgs, total, err := s.repo.List(ctx, req)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	return toResponses(orgs), pagination.NewPage(req, total), nil
}

func (s *service) ListByUser(ctx context.Context, userID snowflake.ID, req pagination.Request) ([]domain.OrganizationResponse, pagination.Page, error) {
	if userID == 0 {
		return nil, pagination.Page{}, domain.ErrInvalidUser
	}
	req = req.Normalize()
	orgs, total, err := s.repo.ListByUser(ctx, userID, req)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	return toResponses(orgs), pagination.NewPage(req, total), nil
}

func (s *service) PublicProfile(ctx context.Context, orgSlug string) (*domain.PublicProfileResponse, error) {
	org, err := s.repo.GetBySlug(ctx, orgSlug)
	if err != nil {
		return nil, err
	}
	memberships, err := s.roles.ListMembers(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	return &domain.PublicProfileResponse{
		Name:        org.Name,
		Slug:        org.Slug,
		Description: org.Description,
		LogoURL:     org.LogoURL,
		WebsiteURL:  org.WebsiteURL,
		Members:     int64(len(groupByUser(memberships))),
	}, nil
}

func (s *service) Delete(ctx context.Context, userID, orgID snowflake.ID) (*domain.DeleteResult, error) {
	if err := s.requireRole(ctx, userID, orgID, orgroledomain.RoleOwner); err != nil {
		return nil, err
	}

	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	memberships, err := s.roles.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	// Addresses are collected before the cascade removes the rows.
	recipients, err := s.deletionRecipients(ctx, orgID, memberships)
	if err != nil {
		return nil, err
	}

	if org.Registered() {
		if err := s.unbindAllMembers(ctx, *org, memberships); err != nil {
			return nil, err
		}

		token, err := s.idp.ManagementToken(ctx, idpdomain.Principal{PlatformAdmin: true})
		if err != nil {
			return nil, err
		}
		if err := s.idp.DeleteClient(ctx, token.AccessToken, org.IdpID); err != nil && !idpdomain.IsNotFound(err) {
			return nil, err
		}
	}

	var result domain.DeleteResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		activities, err := repo.DeleteActivitiesByOrg(ctx, orgID)
		if err != nil {
			return err
		}
		userRoles, err := s.roles.WithTx(tx).DeleteAllUserRolesForOrg(ctx, orgID)
		if err != nil {
			return err
		}
		invitations, err := repo.DeleteInvitationsByOrg(ctx, orgID)
		if err != nil {
			return err
		}
		dids, err := repo.DeleteDidsByOrg(ctx, orgID)
		if err != nil {
			return err
		}
		orgs, err := repo.DeleteOrganization(ctx, orgID)
		if err != nil {
			return err
		}

		result = domain.DeleteResult{
			Activities:   activities,
			UserRoles:    userRoles,
			Invitations:  invitations,
			Dids:         dids,
			Organization: orgs,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrgDeleted(ctx)
	s.recordActivity(ctx, &userID, nil, "organization_deleted", "organization", orgID.String(), map[string]any{
		"name":        org.Name,
		"activities":  result.Activities,
		"user_roles":  result.UserRoles,
		"invitations": result.Invitations,
		"dids":        result.Dids,
	})

	// Notices are sent after the commit; a failed email never rolls back
	// the deletion.
	s.sendDeletionNotices(ctx, org.Name, recipients)

	return &result, nil
}

// unbindAllMembers removes every member's provider role bindings. The batch
// fails only when no member could be unbound; partial failure is logged and
// the deletion proceeds.
func (s *service) unbindAllMembers(ctx context.Context, org domain.Organization, memberships []orgroledomain.Membership) error {
	byUser := groupByUser(memberships)
	if len(byUser) == 0 {
		return nil
	}

	token, err := s.idp.ManagementToken(ctx, idpdomain.Principal{PlatformAdmin: true})
	if err != nil {
		return err
	}
	available, err := s.idp.ClientRoles(ctx, token.AccessToken, org.IdpID)
	if err != nil {
		s.log.Warn("listing provider roles failed, skipping unbind",
			zap.String("org_id", org.ID.String()), zap.Error(err))
		return nil
	}
	byName := make(map[string]idpdomain.Role, len(available))
	for _, role := range available {
		if _, ok := byName[role.Name]; !ok {
			byName[role.Name] = role
		}
	}

	members := make([]rolesyncdomain.MemberBindings, 0, len(byUser))
	for userID, rows := range byUser {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil || user.KeycloakUserID == "" {
			continue
		}
		bindings := make([]rolesyncdomain.Binding, 0, len(rows))
		for _, row := range rows {
			role, ok := byName[row.RoleName]
			if !ok {
				continue
			}
			bindings = append(bindings, rolesyncdomain.Binding{
				OrgRoleID: row.OrgRoleID,
				Name:      row.RoleName,
				IdpRoleID: role.ID,
			})
		}
		if len(bindings) == 0 {
			continue
		}
		members = append(members, rolesyncdomain.MemberBindings{
			UserIdpID:   user.KeycloakUserID,
			ClientIdpID: org.IdpID,
			Bindings:    bindings,
		})
	}
	if len(members) == 0 {
		return nil
	}

	return s.rolesync.UnbindMembers(ctx, token.AccessToken, members, rolesyncdomain.BatchPolicy{
		MinSuccess:       1,
		OnPartialFailure: rolesyncdomain.PartialContinue,
	})
}

func (s *service) deletionRecipients(ctx context.Context, orgID snowflake.ID, memberships []orgroledomain.Membership) ([]string, error) {
	seen := map[string]struct{}{}
	var recipients []string

	for userID := range groupByUser(memberships) {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			continue
		}
		if _, ok := seen[user.Email]; !ok {
			seen[user.Email] = struct{}{}
			recipients = append(recipients, user.Email)
		}
	}

	invitees, err := s.repo.ListInviteesByStatus(ctx, orgID, []string{domain.StatusPending, domain.StatusAccepted})
	if err != nil {
		return nil, err
	}
	for _, inv := range invitees {
		if _, ok := seen[inv.Email]; !ok {
			seen[inv.Email] = struct{}{}
			recipients = append(recipients, inv.Email)
		}
	}

	sort.Strings(recipients)
	return recipients, nil
}

func (s *service) sendDeletionNotices(ctx context.Context, orgName string, recipients []string) {
	platform := s.platform.Get()
	for _, to := range recipients {
		err := s.mailer.SendTemplate(ctx, []string{to}, email.TemplateOrgDeletion, map[string]interface{}{
			"platformName": platform.PlatformName,
			"orgName":      orgName,
			"supportEmail": platform.SupportEmail,
		})
		s.metrics.RecordEmailSent(ctx, email.TemplateOrgDeletion, err == nil)
		if err != nil {
			s.log.Warn("deletion notice not delivered", zap.String("to", to), zap.Error(err))
		}
	}
}

func (s *service) Credentials(ctx context.Context, userID, orgID snowflake.ID) (*domain.CredentialsResponse, error) {
	if err := s.requireRole(ctx, userID, orgID, orgroledomain.RoleOwner, orgroledomain.RoleAdmin); err != nil {
		return nil, err
	}
	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.Registered() {
		return nil, domain.ErrNotRegistered
	}

	secret, err := s.sealer.Open(org.ClientSecret)
	if err != nil {
		return nil, err
	}
	return &domain.CredentialsResponse{
		ClientID:     org.ClientID,
		ClientSecret: secrets.MaskString(secret),
	}, nil
}

func (s *service) RegenerateCredentials(ctx context.Context, userID, orgID snowflake.ID) (*domain.CredentialsResponse, error) {
	if err := s.requireRole(ctx, userID, orgID, orgroledomain.RoleOwner, orgroledomain.RoleAdmin); err != nil {
		return nil, err
	}
	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.Registered() {
		return nil, domain.ErrNotRegistered
	}

	token, err := s.idp.ManagementToken(ctx, idpdomain.Principal{PlatformAdmin: true})
	if err != nil {
		return nil, err
	}
	secret, err := s.idp.RegenerateClientSecret(ctx, token.AccessToken, org.IdpID)
	if err != nil {
		return nil, err
	}

	sealed, err := s.sealer.Seal(secret)
	if err != nil {
		return nil, err
	}
	org.ClientSecret = sealed
	org.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateOrganization(ctx, *org); err != nil {
		return nil, err
	}

	s.recordActivity(ctx, &userID, &orgID, "credentials_regenerated", "organization", orgID.String(), map[string]any{
		"client_id": org.ClientID,
	})

	// The plaintext secret leaves the service exactly here.
	return &domain.CredentialsResponse{
		ClientID:     org.ClientID,
		ClientSecret: secret,
	}, nil
}

func (s *service) SetWebhook(ctx context.Context, userID, orgID snowflake.ID, rawURL string) error {
	if err := s.requireRole(ctx, userID, orgID, orgroledomain.RoleOwner, orgroledomain.RoleAdmin); err != nil {
		return err
	}
	if err := validateWebhookURL(rawURL); err != nil {
		return err
	}

	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return err
	}
	org.WebhookURL = strings.TrimSpace(rawURL)
	org.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateOrganization(ctx, *org); err != nil {
		return err
	}

	s.recordActivity(ctx, &userID, &orgID, "webhook_updated", "organization", orgID.String(), nil)
	return nil
}

func (s *service) GetWebhook(ctx context.Context, userID, orgID snowflake.ID) (string, error) {
	if err := s.requireRole(ctx, userID, orgID, orgroledomain.RoleOwner, orgroledomain.RoleAdmin); err != nil {
		return "", err
	}
	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return "", err
	}
	return org.WebhookURL, nil
}

func (s *service) Dashboard(ctx context.Context, orgID snowflake.ID) (*domain.DashboardCounts, error) {
	if _, err := s.repo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		counts   domain.DashboardCounts
		firstErr error
	)

	record := func(err error, assign func()) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		assign()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		memberships, err := s.roles.ListMembers(ctx, orgID)
		record(err, func() { counts.Members = int64(len(groupByUser(memberships))) })
	}()
	go func() {
		defer wg.Done()
		n, err := s.repo.CountInvitationsByStatus(ctx, orgID, domain.StatusPending)
		record(err, func() { counts.PendingInvitations = n })
	}()
	go func() {
		defer wg.Done()
		n, err := s.repo.CountInvitationsByStatus(ctx, orgID, domain.StatusAccepted)
		record(err, func() { counts.AcceptedInvitations = n })
	}()
	go func() {
		defer wg.Done()
		n, err := s.repo.CountDids(ctx, orgID)
		record(err, func() { counts.Dids = n })
	}()
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return &counts, nil
}

func (s *service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberResponse, error) {
	if _, err := s.repo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}

	memberships, err := s.roles.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	byUser := groupByUser(memberships)
	members := make([]domain.MemberResponse, 0, len(byUser))
	for userID, rows := range byUser {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			continue
		}
		roleNames := make([]string, 0, len(rows))
		joined := rows[0].CreatedAt
		for _, row := range rows {
			roleNames = append(roleNames, row.RoleName)
			if row.CreatedAt.Before(joined) {
				joined = row.CreatedAt
			}
		}
		sort.Strings(roleNames)
		members = append(members, domain.MemberResponse{
			UserID:    userID.String(),
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Roles:     roleNames,
			JoinedAt:  joined,
		})
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Email < members[j].Email })
	return members, nil
}

func (s *service) MembershipReport(ctx context.Context, orgID snowflake.ID) ([]byte, error) {
	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	members, err := s.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	rows := make([]pdf.MembershipReportRow, 0, len(members))
	for _, member := range members {
		rows = append(rows, pdf.MembershipReportRow{
			Email:    member.Email,
			Name:     strings.TrimSpace(member.FirstName + " " + member.LastName),
			Roles:    strings.Join(member.Roles, ", "),
			JoinedAt: member.JoinedAt.Format("2006-01-02"),
		})
	}

	reader, err := s.pdf.GenerateMembershipReport(ctx, pdf.MembershipReportData{
		PlatformName: s.platform.Get().PlatformName,
		OrgName:      org.Name,
		OrgSlug:      org.Slug,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		Members:      rows,
	})
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

func (s *service) AddDid(ctx context.Context, orgID snowflake.ID, didValue string, setPrimary bool) (*domain.OrgDid, error) {
	didValue = strings.TrimSpace(didValue)
	if didValue == "" {
		return nil, domain.ErrDidNotFound
	}
	if _, err := s.repo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}

	existing, err := s.repo.CountDids(ctx, orgID)
	if err != nil {
		return nil, err
	}

	did := domain.OrgDid{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Did:       didValue,
		IsPrimary: setPrimary || existing == 0,
		CreatedAt: time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if did.IsPrimary {
			if err := repo.UnsetPrimaryDids(ctx, orgID); err != nil {
				return err
			}
		}
		return repo.CreateDid(ctx, did)
	})
	if err != nil {
		return nil, err
	}
	return &did, nil
}

func (s *service) ListDids(ctx context.Context, orgID snowflake.ID) ([]domain.OrgDid, error) {
	if _, err := s.repo.GetByID(ctx, orgID); err != nil {
		return nil, err
	}
	return s.repo.ListDids(ctx, orgID)
}

func (s *service) SetPrimaryDid(ctx context.Context, orgID, didID snowflake.ID) error {
	did, err := s.repo.GetDid(ctx, didID)
	if err != nil {
		return err
	}
	if did.OrgID != orgID {
		return domain.ErrDidNotFound
	}

	// Unset-then-set runs in one transaction so exactly one primary DID
	// survives.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UnsetPrimaryDids(ctx, orgID); err != nil {
			return err
		}
		return repo.MarkPrimaryDid(ctx, didID)
	})
}

func (s *service) RegisterOrgsMapUsers(ctx context.Context, limit int) (int, error) {
	orgs, err := s.repo.ListUnregistered(ctx, limit)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for i := range orgs {
		org := orgs[i]
		if err := s.registerOrg(ctx, &org); err != nil {
			s.log.Warn("organization repair failed",
				zap.String("org_id", org.ID.String()), zap.Error(err))
			continue
		}
		repaired++
	}
	return repaired, nil
}

// requireRole fails with ErrForbidden unless the user holds one of the
// allowed roles in the organization.
func (s *service) requireRole(ctx context.Context, userID, orgID snowflake.ID, allowed ...string) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}
	memberships, err := s.roles.ListUserRoles(ctx, userID, orgID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		for _, name := range allowed {
			if m.RoleName == name {
				return nil
			}
		}
	}
	return domain.ErrForbidden
}

func (s *service) orgToken(ctx context.Context, org domain.Organization) (idpdomain.TokenSet, error) {
	if !org.Registered() {
		return idpdomain.TokenSet{}, domain.ErrNotRegistered
	}
	secret, err := s.sealer.Open(org.ClientSecret)
	if err != nil {
		return idpdomain.TokenSet{}, err
	}
	return s.idp.ManagementToken(ctx, idpdomain.Principal{
		ClientID:     org.ClientID,
		ClientSecret: secret,
	})
}

func (s *service) recordActivity(ctx context.Context, userID, orgID *snowflake.ID, action, targetType, targetID string, details map[string]any) {
	entry := activitydomain.Entry{
		UserID:     userID,
		OrgID:      orgID,
		Action:     action,
		TargetType: targetType,
		Details:    details,
	}
	if targetID != "" {
		entry.TargetID = &targetID
	}
	if err := s.activity.Record(ctx, entry); err != nil {
		s.log.Warn("activity not recorded", zap.String("action", action), zap.Error(err))
	}
}

func validateWebhookURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.ErrInvalidWebhookURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return domain.ErrInvalidWebhookURL
	}
	if parsed.Host == "" {
		return domain.ErrInvalidWebhookURL
	}
	return nil
}

func groupByUser(memberships []orgroledomain.Membership) map[snowflake.ID][]orgroledomain.Membership {
	byUser := make(map[snowflake.ID][]orgroledomain.Membership)
	for _, m := range memberships {
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}
	return byUser
}

func toResponse(org domain.Organization) domain.OrganizationResponse {
	return domain.OrganizationResponse{
		ID:          org.ID.String(),
		Name:        org.Name,
		Slug:        org.Slug,
		Description: org.Description,
		LogoURL:     org.LogoURL,
		WebsiteURL:  org.WebsiteURL,
		ClientID:    org.ClientID,
		CreatedBy:   org.CreatedBy.String(),
		CreatedAt:   org.CreatedAt,
	}
}

func toResponses(orgs []domain.Organization) []domain.OrganizationResponse {
	resp := make([]domain.OrganizationResponse, 0, len(orgs))
	for _, org := range orgs {
		resp = append(resp, toResponse(org))
	}
	return resp
}
