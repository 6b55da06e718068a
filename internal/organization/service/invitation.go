package service

import (
	"context"
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	idpdomain "github.com/CredenceNG/confirmd-platform/internal/idp/domain"
	"github.com/CredenceNG/confirmd-platform/internal/organization/domain"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	"github.com/CredenceNG/confirmd-platform/internal/providers/email"
	rolesyncdomain "github.com/CredenceNG/confirmd-platform/internal/rolesync/domain"
	userdomain "github.com/CredenceNG/confirmd-platform/internal/user/domain"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func (s *service) Invite(ctx context.Context, inviterID, orgID snowflake.ID, req domain.InviteRequest) (*domain.Invitation, error) {
	if err := s.requireRole(ctx, inviterID, orgID, orgroledomain.RoleOwner, orgroledomain.RoleAdmin); err != nil {
		return nil, err
	}

	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	address, err := mail.ParseAddress(strings.TrimSpace(req.Email))
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	invitee := strings.ToLower(address.Address)

	if len(req.OrgRoleIDs) == 0 {
		return nil, orgroledomain.ErrInvalidOrgRole
	}
	requested, err := s.roles.GetRolesByIDs(ctx, req.OrgRoleIDs)
	if err != nil {
		return nil, err
	}
	if len(requested) != len(req.OrgRoleIDs) {
		return nil, orgroledomain.ErrInvalidOrgRole
	}

	exists, err := s.repo.PendingOrAcceptedExists(ctx, invitee, orgID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrInvitationExists
	}

	now := time.Now().UTC()
	inv := domain.Invitation{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		InviterID:  inviterID,
		Email:      invitee,
		OrgRoleIDs: encodeRoleIDs(req.OrgRoleIDs),
		Status:     domain.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, err
	}

	s.metrics.RecordInvitationSent(ctx, orgID.String())
	s.recordActivity(ctx, &inviterID, &orgID, "invitation_sent", "invitation", inv.ID.String(), map[string]any{
		"email": invitee,
	})

	s.sendInvitationEmail(ctx, *org, inv, inviterID)

	return &inv, nil
}

// sendInvitationEmail is best-effort; the invitation row is already
// committed.
func (s *service) sendInvitationEmail(ctx context.Context, org domain.Organization, inv domain.Invitation, inviterID snowflake.ID) {
	platform := s.platform.Get()

	inviterName := platform.PlatformName
	if inviter, err := s.users.GetByID(ctx, inviterID); err == nil {
		if name := strings.TrimSpace(inviter.FirstName + " " + inviter.LastName); name != "" {
			inviterName = name
		}
	}

	err := s.mailer.SendTemplate(ctx, []string{inv.Email}, email.TemplateInvitation, map[string]interface{}{
		"platformName": platform.PlatformName,
		"orgName":      org.Name,
		"inviterName":  inviterName,
		"acceptURL":    strings.TrimRight(platform.PublicURL, "/") + "/invitations/" + inv.ID.String(),
		"supportEmail": platform.SupportEmail,
	})
	s.metrics.RecordEmailSent(ctx, email.TemplateInvitation, err == nil)
	if err != nil {
		s.log.Warn("invitation email not delivered",
			zap.String("invitation_id", inv.ID.String()), zap.Error(err))
	}
}

func (s *service) ListOrgInvitations(ctx context.Context, orgID snowflake.ID, req pagination.Request) ([]domain.Invitation, pagination.Page, error) {
	if _, err := s.repo.GetByID(ctx, orgID); err != nil {
		return nil, pagination.Page{}, err
	}
	req = req.Normalize()
	invitations, total, err := s.repo.ListInvitationsByOrg(ctx, orgID, req)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	return invitations, pagination.NewPage(req, total), nil
}

func (s *service) ListUserInvitations(ctx context.Context, emailAddr string, req pagination.Request) ([]domain.Invitation, pagination.Page, error) {
	if _, err := mail.ParseAddress(strings.TrimSpace(emailAddr)); err != nil {
		return nil, pagination.Page{}, domain.ErrInvalidEmail
	}
	req = req.Normalize()
	invitations, total, err := s.repo.ListInvitationsByEmail(ctx, emailAddr, req)
	if err != nil {
		return nil, pagination.Page{}, err
	}
	return invitations, pagination.NewPage(req, total), nil
}

func (s *service) ResolveInvitation(ctx context.Context, userID, invitationID snowflake.ID, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))

	inv, err := s.repo.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(inv.Email, user.Email) {
		return domain.ErrEmailMismatch
	}
	if !domain.CanTransition(inv.Status, status) {
		return domain.ErrInvalidTransition
	}

	if status == domain.StatusRejected {
		if err := s.repo.UpdateInvitationStatus(ctx, invitationID, domain.StatusRejected); err != nil {
			return err
		}
		s.metrics.RecordInvitationResolved(ctx, domain.StatusRejected)
		s.recordActivity(ctx, &userID, &inv.OrgID, "invitation_rejected", "invitation", invitationID.String(), nil)
		return nil
	}

	// Membership can change between invite and accept; the cap is checked
	// again here.
	count, err := s.roles.CountUserOrgs(ctx, userID)
	if err != nil {
		return err
	}
	if count >= int64(s.cfg.MaxOrgLimit) {
		return domain.ErrMaxOrgLimit
	}

	if user.KeycloakUserID == "" {
		return userdomain.ErrSignupIncomplete
	}

	org, err := s.repo.GetByID(ctx, inv.OrgID)
	if err != nil {
		return err
	}
	if !org.Registered() {
		return domain.ErrNotRegistered
	}

	roleIDs, err := decodeRoleIDs(inv.OrgRoleIDs)
	if err != nil {
		return err
	}
	requested, err := s.roles.GetRolesByIDs(ctx, roleIDs)
	if err != nil {
		return err
	}
	if len(requested) != len(roleIDs) {
		return orgroledomain.ErrInvalidOrgRole
	}

	token, err := s.orgToken(ctx, *org)
	if err != nil {
		return err
	}
	available, err := s.idp.ClientRoles(ctx, token.AccessToken, org.IdpID)
	if err != nil {
		return err
	}

	// Planning happens before any write: a stale or forged role id fails
	// the whole acceptance.
	bindings, err := s.rolesync.Plan(requested, available)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles := s.roles.WithTx(tx)
		for _, binding := range bindings {
			assignment := orgroledomain.UserOrgRole{
				ID:        s.genID.Generate(),
				UserID:    userID,
				OrgID:     org.ID,
				OrgRoleID: binding.OrgRoleID,
				IdpRoleID: binding.IdpRoleID,
				CreatedAt: now,
			}
			if err := roles.AssignUserRole(ctx, assignment); err != nil {
				return err
			}
		}
		return s.repo.WithTx(tx).UpdateInvitationStatus(ctx, invitationID, domain.StatusAccepted)
	})
	if err != nil {
		return err
	}

	if err := s.rolesync.Assign(ctx, token.AccessToken, org.IdpID, user.KeycloakUserID, org.ID, bindings); err != nil {
		return err
	}

	s.metrics.RecordInvitationResolved(ctx, domain.StatusAccepted)
	s.recordActivity(ctx, &userID, &inv.OrgID, "invitation_accepted", "invitation", invitationID.String(), nil)
	return nil
}

func (s *service) DeleteInvitation(ctx context.Context, orgID, invitationID snowflake.ID) error {
	inv, err := s.repo.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if inv.OrgID != orgID {
		return domain.ErrOrgMismatch
	}
	if err := s.repo.DeleteInvitation(ctx, invitationID); err != nil {
		return err
	}
	s.recordActivity(ctx, nil, &orgID, "invitation_deleted", "invitation", invitationID.String(), nil)
	return nil
}

func (s *service) UpdateUserRoles(ctx context.Context, actorID, orgID, userID snowflake.ID, roleIDs []snowflake.ID) error {
	if err := s.requireRole(ctx, actorID, orgID, orgroledomain.RoleOwner, orgroledomain.RoleAdmin); err != nil {
		return err
	}

	member, err := s.roles.IsMember(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !member {
		return orgroledomain.ErrNotMember
	}

	if len(roleIDs) == 0 {
		return orgroledomain.ErrInvalidOrgRole
	}
	requested, err := s.roles.GetRolesByIDs(ctx, roleIDs)
	if err != nil {
		return err
	}
	if len(requested) != len(roleIDs) {
		return orgroledomain.ErrInvalidOrgRole
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.KeycloakUserID == "" {
		return userdomain.ErrSignupIncomplete
	}

	org, err := s.repo.GetByID(ctx, orgID)
	if err != nil {
		return err
	}

	token, err := s.orgToken(ctx, *org)
	if err != nil {
		return err
	}
	available, err := s.idp.ClientRoles(ctx, token.AccessToken, org.IdpID)
	if err != nil {
		return err
	}

	newBindings, err := s.rolesync.Plan(requested, available)
	if err != nil {
		return err
	}

	existing, err := s.roles.ListUserRoles(ctx, userID, orgID)
	if err != nil {
		return err
	}
	oldBindings := bindingsFromMemberships(existing, available)

	// Delete-then-create: a crash between the two phases leaves the user
	// with no roles, never with a partial overwrite.
	if len(oldBindings) > 0 {
		if err := s.rolesync.Remove(ctx, token.AccessToken, org.IdpID, user.KeycloakUserID, orgID, oldBindings); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roles := s.roles.WithTx(tx)
		if _, err := roles.DeleteUserRoles(ctx, userID, orgID); err != nil {
			return err
		}
		for _, binding := range newBindings {
			assignment := orgroledomain.UserOrgRole{
				ID:        s.genID.Generate(),
				UserID:    userID,
				OrgID:     orgID,
				OrgRoleID: binding.OrgRoleID,
				IdpRoleID: binding.IdpRoleID,
				CreatedAt: now,
			}
			if err := roles.AssignUserRole(ctx, assignment); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.rolesync.Assign(ctx, token.AccessToken, org.IdpID, user.KeycloakUserID, orgID, newBindings); err != nil {
		return err
	}

	s.recordActivity(ctx, &actorID, &orgID, "user_roles_updated", "user", userID.String(), map[string]any{
		"roles": roleNames(requested),
	})
	return nil
}

func bindingsFromMemberships(memberships []orgroledomain.Membership, available []idpdomain.Role) []rolesyncdomain.Binding {
	byName := make(map[string]string, len(available))
	for _, role := range available {
		if _, ok := byName[role.Name]; !ok {
			byName[role.Name] = role.ID
		}
	}

	bindings := make([]rolesyncdomain.Binding, 0, len(memberships))
	for _, m := range memberships {
		idpRoleID := m.IdpRoleID
		if idpRoleID == "" {
			idpRoleID = byName[m.RoleName]
		}
		if idpRoleID == "" {
			continue
		}
		bindings = append(bindings, rolesyncdomain.Binding{
			OrgRoleID: m.OrgRoleID,
			Name:      m.RoleName,
			IdpRoleID: idpRoleID,
		})
	}
	return bindings
}

func roleNames(roles []orgroledomain.OrgRole) []string {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}

func encodeRoleIDs(ids []snowflake.ID) datatypes.JSON {
	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, id.String())
	}
	raw, _ := json.Marshal(values)
	return datatypes.JSON(raw)
}

func decodeRoleIDs(raw datatypes.JSON) ([]snowflake.ID, error) {
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		id, err := snowflake.ParseString(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
