package rpc

import (
	"context"
	"strings"

	activitydomain "github.com/CredenceNG/confirmd-platform/internal/activity/domain"
	orgdomain "github.com/CredenceNG/confirmd-platform/internal/organization/domain"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	userdomain "github.com/CredenceNG/confirmd-platform/internal/user/domain"
	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

// Handlers groups the workflow services the command table binds to.
type Handlers struct {
	fx.In

	Orgs     orgdomain.Service
	Users    userdomain.Service
	Activity activitydomain.Service
	Roles    orgroledomain.Repository
}

type listPage struct {
	Items any             `json:"items"`
	Page  pagination.Page `json:"page"`
}

type orgCreateReq struct {
	UserID string `json:"userId"`
	orgdomain.CreateOrganizationRequest
}

type orgUpdateReq struct {
	UserID string `json:"userId"`
	OrgID  string `json:"orgId"`
	orgdomain.UpdateOrganizationRequest
}

type orgIDReq struct {
	OrgID string `json:"orgId"`
}

type userOrgReq struct {
	UserID string `json:"userId"`
	OrgID  string `json:"orgId"`
}

type orgListReq struct {
	pagination.Request
}

type orgListByUserReq struct {
	UserID string `json:"userId"`
	pagination.Request
}

type slugReq struct {
	Slug string `json:"slug"`
}

type webhookSetReq struct {
	UserID string `json:"userId"`
	OrgID  string `json:"orgId"`
	URL    string `json:"url"`
}

type didAddReq struct {
	OrgID      string `json:"orgId"`
	Did        string `json:"did"`
	SetPrimary bool   `json:"setPrimary"`
}

type didSetPrimaryReq struct {
	OrgID string `json:"orgId"`
	DidID string `json:"didId"`
}

type updateUserRolesReq struct {
	ActorID    string   `json:"actorId"`
	OrgID      string   `json:"orgId"`
	UserID     string   `json:"userId"`
	OrgRoleIDs []string `json:"orgRoleIds"`
}

type invitationCreateReq struct {
	InviterID  string   `json:"inviterId"`
	OrgID      string   `json:"orgId"`
	Email      string   `json:"email"`
	OrgRoleIDs []string `json:"orgRoleIds"`
}

type invitationListOrgReq struct {
	OrgID string `json:"orgId"`
	pagination.Request
}

type invitationListUserReq struct {
	Email string `json:"email"`
	pagination.Request
}

type invitationResolveReq struct {
	UserID       string `json:"userId"`
	InvitationID string `json:"invitationId"`
	Status       string `json:"status"`
}

type invitationDeleteReq struct {
	OrgID        string `json:"orgId"`
	InvitationID string `json:"invitationId"`
}

type emailReq struct {
	Email string `json:"email"`
}

type verifyEmailReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type completeSignupReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type clientLoginReq struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type resetPasswordReq struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type userIDReq struct {
	UserID string `json:"userId"`
}

type updateProfileReq struct {
	UserID string `json:"userId"`
	userdomain.UpdateProfileRequest
}

type userSearchReq struct {
	pagination.Request
}

type activityListReq struct {
	OrgID      string `json:"orgId"`
	UserID     string `json:"userId"`
	Action     string `json:"action"`
	TargetType string `json:"targetType"`
	pagination.Request
}

// RegisterHandlers binds the closed command set. One command, one workflow
// method.
func RegisterHandlers(d *Dispatcher, h Handlers) {
	registerOrgHandlers(d, h)
	registerInvitationHandlers(d, h)
	registerUserHandlers(d, h)
	registerAuxHandlers(d, h)
}

func registerOrgHandlers(d *Dispatcher, h Handlers) {
	Register(d, CmdOrgCreate, func(ctx context.Context, req orgCreateReq) (any, error) {
		userID, err := parseID(req.UserID, orgdomain.ErrInvalidUser)
		if err != nil {
			return nil, err
		}
		return h.Orgs.Create(ctx, userID, req.CreateOrganizationRequest)
	})

	Register(d, CmdOrgUpdate, func(ctx context.Context, req orgUpdateReq) (any, error) {
		userID, orgID, err := parseUserOrg(req.UserID, req.OrgID)
		if err != nil {
			return nil, err
		}
		return h.Orgs.Update(ctx, userID, orgID, req.UpdateOrganizationRequest)
	})

	Register(d, CmdOrgGet, func(ctx context.Context, req orgIDReq) (any, error) {
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		return h.Orgs.Get(ctx, orgID)
	})

	Register(d, CmdOrgList, func(ctx context.Context, req orgListReq) (any, error) {
		items, page, err := h.Orgs.List(ctx, req.Request)
		if err != nil {
			return nil, err
		}
		return listPage{Items: items, Page: page}, nil
	})

	Register(d, CmdOrgListByUser, func(ctx context.Context, req orgListByUserReq) (any, error) {
		userID, err := parseID(req.UserID, orgdomain.ErrInvalidUser)
		if err != nil {
			return nil, err
		}
		items, page, err := h.Orgs.ListByUser(ctx, userID, req.Request)
		if err != nil {
			return nil, err
		}
		return listPage{Items: items, Page: page}, nil
	})

	Register(d, CmdOrgPublicProfile, func(ctx context.Context, req slugReq) (any, error) {
		return h.Orgs.PublicProfile(ctx, req.Slug)
	})

	Register(d, CmdOrgDelete, func(ctx context.Context, req userOrgReq) (any, error) {
		userID, orgID, err := parseUserOrg(req.UserID, req.OrgID)
		if err != nil {
			return nil, err
		}
		return h.Orgs.Delete(ctx, userID, orgID)
	})

	Register(d, CmdOrgCredentials, func(ctx context.Context, req userOrgReq) (any, error) {
		userID, orgID, err := parseUserOrg(req.UserID, req.OrgID)
		if err != nil {
			return nil, err
		}
		return h.Orgs.Credentials(ctx, userID, orgID)
	})

	Register(d, CmdOrgCredentialsReset, func(ctx context.Context, req userOrgReq) (any, error) {
		userID, orgID, err := parseUserOrg(req.UserID, req.OrgID)
		if err != nil {
			return nil, err
		}
		return h.Orgs.RegenerateCredentials(ctx, userID, orgID)
	})

	Register(d, CmdOrgWebhookSet, func(ctx context.Context, req webhookSetReq) (any, error) {
		userID, orgID, err := parseUserOrg(req.UserID, req.OrgID)
		if err != nil {
			return nil, err
		}
		return nil, h.Orgs.SetWebhook(ctx, userID, orgID, req.URL)
	})

	Register(d, CmdOrgWebhookGet, func(ctx context.Context, req userOrgReq) (any, error) {
		userID, orgID, err := parseUserOrg(req.UserID, req.OrgID)
		if err != nil {
			return nil, err
		}
		url, err := h.Orgs.GetWebhook(ctx, userID, orgID)
		if err != nil {
			return nil, err
		}
		return map[string]string{"url": url}, nil
	})

	Register(d, CmdOrgDashboard, func(ctx context.Context, req orgIDReq) (any, error) {
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		return h.Orgs.Dashboard(ctx, orgID)
	})

	Register(d, CmdOrgMembers, func(ctx context.Context, req orgIDReq) (any, error) {
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		return h.Orgs.ListMembers(ctx, orgID)
	})

	Register(d, CmdOrgMembershipReport, func(ctx context.Context, req orgIDReq) (any, error) {
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		report, err := h.Orgs.MembershipReport(ctx, orgID)
		if err != nil {
			return nil, err
		}
		return map[string][]byte{"pdf": report}, nil
	})

	Register(d, CmdOrgDidAdd, func(ctx context.Context, req didAddReq) (any, error) {
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		return h.Orgs.AddDid(ctx, orgID, req.Did, req.SetPrimary)
	})

	Register(d, CmdOrgDidList, func(ctx context.Context, req orgIDReq) (any, error) {
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		return h.Orgs.ListDids(ctx, orgID)
	})

	Register(d, CmdOrgDidSetPrimary, func(ctx context.Context, req didSetPrimaryReq) (any, error) {
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		didID, err := parseID(req.DidID, orgdomain.ErrDidNotFound)
		if err != nil {
			return nil, err
		}
		return nil, h.Orgs.SetPrimaryDid(ctx, orgID, didID)
	})

	Register(d, CmdOrgUpdateUserRoles, func(ctx context.Context, req updateUserRolesReq) (any, error) {
		actorID, err := parseID(req.ActorID, orgdomain.ErrInvalidUser)
		if err != nil {
			return nil, err
		}
		userID, orgID, err := parseUserOrg(req.UserID, req.OrgID)
		if err != nil {
			return nil, err
		}
		roleIDs, err := parseIDs(req.OrgRoleIDs, orgroledomain.ErrInvalidOrgRole)
		if err != nil {
			return nil, err
		}
		return nil, h.Orgs.UpdateUserRoles(ctx, actorID, orgID, userID, roleIDs)
	})
}

func registerInvitationHandlers(d *Dispatcher, h Handlers) {
	Register(d, CmdInvitationCreate, func(ctx context.Context, req invitationCreateReq) (any, error) {
		inviterID, err := parseID(req.InviterID, orgdomain.ErrInvalidUser)
		if err != nil {
			return nil, err
		}
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		roleIDs, err := parseIDs(req.OrgRoleIDs, orgroledomain.ErrInvalidOrgRole)
		if err != nil {
			return nil, err
		}
		return h.Orgs.Invite(ctx, inviterID, orgID, orgdomain.InviteRequest{
			Email:      req.Email,
			OrgRoleIDs: roleIDs,
		})
	})

	Register(d, CmdInvitationListOrg, func(ctx context.Context, req invitationListOrgReq) (any, error) {
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		items, page, err := h.Orgs.ListOrgInvitations(ctx, orgID, req.Request)
		if err != nil {
			return nil, err
		}
		return listPage{Items: items, Page: page}, nil
	})

	Register(d, CmdInvitationListUser, func(ctx context.Context, req invitationListUserReq) (any, error) {
		items, page, err := h.Orgs.ListUserInvitations(ctx, req.Email, req.Request)
		if err != nil {
			return nil, err
		}
		return listPage{Items: items, Page: page}, nil
	})

	Register(d, CmdInvitationResolve, func(ctx context.Context, req invitationResolveReq) (any, error) {
		userID, err := parseID(req.UserID, orgdomain.ErrInvalidUser)
		if err != nil {
			return nil, err
		}
		invitationID, err := parseID(req.InvitationID, orgdomain.ErrInvitationNotFound)
		if err != nil {
			return nil, err
		}
		return nil, h.Orgs.ResolveInvitation(ctx, userID, invitationID, req.Status)
	})

	Register(d, CmdInvitationDelete, func(ctx context.Context, req invitationDeleteReq) (any, error) {
		orgID, err := parseID(req.OrgID, orgdomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		invitationID, err := parseID(req.InvitationID, orgdomain.ErrInvitationNotFound)
		if err != nil {
			return nil, err
		}
		return nil, h.Orgs.DeleteInvitation(ctx, orgID, invitationID)
	})
}

func registerUserHandlers(d *Dispatcher, h Handlers) {
	Register(d, CmdUserSendVerification, func(ctx context.Context, req emailReq) (any, error) {
		return nil, h.Users.SendVerificationEmail(ctx, req.Email)
	})

	Register(d, CmdUserVerifyEmail, func(ctx context.Context, req verifyEmailReq) (any, error) {
		return nil, h.Users.VerifyEmail(ctx, req.Email, req.Code)
	})

	Register(d, CmdUserCompleteSignup, func(ctx context.Context, req completeSignupReq) (any, error) {
		return h.Users.CompleteSignup(ctx, userdomain.CompleteSignupRequest{
			Email:     req.Email,
			Password:  req.Password,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		})
	})

	Register(d, CmdUserLogin, func(ctx context.Context, req loginReq) (any, error) {
		return h.Users.Login(ctx, req.Email, req.Password)
	})

	Register(d, CmdUserClientLogin, func(ctx context.Context, req clientLoginReq) (any, error) {
		return h.Users.ClientLogin(ctx, req.ClientID, req.ClientSecret)
	})

	Register(d, CmdUserRefreshToken, func(ctx context.Context, req refreshReq) (any, error) {
		return h.Users.RefreshToken(ctx, req.RefreshToken)
	})

	Register(d, CmdUserForgotPassword, func(ctx context.Context, req emailReq) (any, error) {
		return nil, h.Users.ForgotPassword(ctx, req.Email)
	})

	Register(d, CmdUserResetPassword, func(ctx context.Context, req resetPasswordReq) (any, error) {
		return nil, h.Users.ResetPassword(ctx, req.Email, req.Code, req.NewPassword)
	})

	Register(d, CmdUserProfile, func(ctx context.Context, req userIDReq) (any, error) {
		userID, err := parseID(req.UserID, userdomain.ErrUserNotFound)
		if err != nil {
			return nil, err
		}
		return h.Users.Profile(ctx, userID)
	})

	Register(d, CmdUserUpdateProfile, func(ctx context.Context, req updateProfileReq) (any, error) {
		userID, err := parseID(req.UserID, userdomain.ErrUserNotFound)
		if err != nil {
			return nil, err
		}
		return h.Users.UpdateProfile(ctx, userID, req.UpdateProfileRequest)
	})

	Register(d, CmdUserSearch, func(ctx context.Context, req userSearchReq) (any, error) {
		items, page, err := h.Users.Search(ctx, req.Request)
		if err != nil {
			return nil, err
		}
		return listPage{Items: items, Page: page}, nil
	})
}

func registerAuxHandlers(d *Dispatcher, h Handlers) {
	Register(d, CmdActivityList, func(ctx context.Context, req activityListReq) (any, error) {
		orgID, err := parseID(req.OrgID, activitydomain.ErrInvalidOrganization)
		if err != nil {
			return nil, err
		}
		filter := activitydomain.ListFilter{
			OrgID:      orgID,
			Action:     req.Action,
			TargetType: req.TargetType,
		}
		if strings.TrimSpace(req.UserID) != "" {
			userID, err := parseID(req.UserID, userdomain.ErrUserNotFound)
			if err != nil {
				return nil, err
			}
			filter.UserID = &userID
		}
		items, page, err := h.Activity.List(ctx, filter, req.Request)
		if err != nil {
			return nil, err
		}
		return listPage{Items: items, Page: page}, nil
	})

	Register(d, CmdRoleCatalog, func(ctx context.Context, _ struct{}) (any, error) {
		return h.Roles.ListRoles(ctx)
	})
}

func parseID(raw string, sentinel error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, sentinel
	}
	return id, nil
}

func parseIDs(raw []string, sentinel error) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(raw))
	for _, value := range raw {
		id, err := parseID(value, sentinel)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseUserOrg(userRaw, orgRaw string) (snowflake.ID, snowflake.ID, error) {
	userID, err := parseID(userRaw, orgdomain.ErrInvalidUser)
	if err != nil {
		return 0, 0, err
	}
	orgID, err := parseID(orgRaw, orgdomain.ErrInvalidOrganization)
	if err != nil {
		return 0, 0, err
	}
	return userID, orgID, nil
}
