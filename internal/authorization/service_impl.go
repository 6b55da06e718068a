// Package authorization enforces per-route, organization-scoped capability
// checks with casbin. Subjects are mapped to their organization role at
// check time; policies are seeded per role.
package authorization

import (
	"context"
	_ "embed"
	"errors"
	"strings"

	activitydomain "github.com/CredenceNG/confirmd-platform/internal/activity/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrForbidden           = errors.New("forbidden")
)

const (
	ObjectOrganization = "organization"
	ObjectInvitation   = "invitation"
	ObjectCredentials  = "credentials"
	ObjectWebhook      = "webhook"
	ObjectDid          = "did"
	ObjectMember       = "member"
	ObjectActivity     = "activity"
	ObjectDashboard    = "dashboard"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	ActionCredentialsRotate = "credentials.rotate"
	ActionMemberRolesUpdate = "member.roles_update"
	ActionDidSetPrimary     = "did.set_primary"
	ActionReportExport      = "report.export"
)

type Service interface {
	Authorize(ctx context.Context, actor, orgID, object, action string) error
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Activity activitydomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	activity activitydomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		activity: p.Activity,
	}
}

// Authorize checks one (actor, org, object, action) tuple. Actors are
// "system" or "user:<id>".
func (s *ServiceImpl) Authorize(ctx context.Context, actor, orgID, object, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleNames, err := s.resolveActor(ctx, actor, orgID)
	if err != nil {
		s.recordDenied(ctx, actor, orgID, object, action)
		return err
	}

	domain := "org:" + orgID
	if err := s.ensureGroupings(subject, roleNames, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.recordDenied(ctx, actor, orgID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor, orgID string) (string, []string, error) {
	if actor == "system" {
		return actor, []string{"role:system"}, nil
	}
	if !strings.HasPrefix(actor, "user:") {
		return "", nil, ErrInvalidActor
	}

	userID, err := snowflake.ParseString(strings.TrimPrefix(actor, "user:"))
	if err != nil || userID == 0 {
		return "", nil, ErrInvalidActor
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return "", nil, ErrInvalidOrganization
	}

	roles, err := s.rolesForUser(ctx, parsedOrgID, userID)
	if err != nil {
		return "", nil, err
	}
	if len(roles) == 0 {
		return "", nil, ErrForbidden
	}

	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, "role:"+strings.ToLower(role))
	}
	return actor, roleNames, nil
}

func (s *ServiceImpl) rolesForUser(ctx context.Context, orgID, userID snowflake.ID) ([]string, error) {
	var roles []string
	err := s.db.WithContext(ctx).Raw(
		`SELECT r.name
		 FROM user_org_roles uor
		 JOIN org_roles r ON r.id = uor.org_role_id
		 WHERE uor.org_id = ? AND uor.user_id = ?`,
		orgID,
		userID,
	).Scan(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

// ensureGroupings keeps the subject's grouping policies in sync with its
// current organization roles; stale groupings are removed.
func (s *ServiceImpl) ensureGroupings(subject string, roleNames []string, domain string) error {
	wanted := make(map[string]struct{}, len(roleNames))
	for _, name := range roleNames {
		wanted[name] = struct{}{}
	}

	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if _, ok := wanted[rule[1]]; ok {
			delete(wanted, rule[1])
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	for name := range wanted {
		if _, err := s.enforcer.AddGroupingPolicy(subject, name, domain); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServiceImpl) recordDenied(ctx context.Context, actor, orgID, object, action string) {
	if s.activity == nil {
		return
	}
	parsedOrgID, err := snowflake.ParseString(orgID)
	if err != nil || parsedOrgID == 0 {
		return
	}
	targetID := "capability"
	entry := activitydomain.Entry{
		OrgID:      &parsedOrgID,
		Action:     "authorization_denied",
		TargetType: "authorization",
		TargetID:   &targetID,
		Details: map[string]any{
			"object":  object,
			"action":  action,
			"subject": actor,
		},
	}
	if strings.HasPrefix(actor, "user:") {
		if userID, err := snowflake.ParseString(strings.TrimPrefix(actor, "user:")); err == nil && userID != 0 {
			entry.UserID = &userID
		}
	}
	_ = s.activity.Record(ctx, entry)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	viewObjects := []string{
		ObjectOrganization, ObjectInvitation, ObjectDid, ObjectMember, ObjectDashboard,
	}

	policies := [][]string{
		{"role:admin", ObjectOrganization, ActionUpdate},
		{"role:admin", ObjectInvitation, ActionCreate},
		{"role:admin", ObjectInvitation, ActionDelete},
		{"role:admin", ObjectCredentials, ActionView},
		{"role:admin", ObjectCredentials, ActionCredentialsRotate},
		{"role:admin", ObjectWebhook, ActionView},
		{"role:admin", ObjectWebhook, ActionUpdate},
		{"role:admin", ObjectMember, ActionMemberRolesUpdate},
		{"role:admin", ObjectDid, ActionCreate},
		{"role:admin", ObjectDid, ActionDidSetPrimary},
		{"role:admin", ObjectActivity, ActionView},
		{"role:admin", ObjectMember, ActionReportExport},

		{"role:owner", ObjectOrganization, ActionUpdate},
		{"role:owner", ObjectOrganization, ActionDelete},
		{"role:owner", ObjectInvitation, ActionCreate},
		{"role:owner", ObjectInvitation, ActionDelete},
		{"role:owner", ObjectCredentials, ActionView},
		{"role:owner", ObjectCredentials, ActionCredentialsRotate},
		{"role:owner", ObjectWebhook, ActionView},
		{"role:owner", ObjectWebhook, ActionUpdate},
		{"role:owner", ObjectMember, ActionMemberRolesUpdate},
		{"role:owner", ObjectDid, ActionCreate},
		{"role:owner", ObjectDid, ActionDidSetPrimary},
		{"role:owner", ObjectActivity, ActionView},
		{"role:owner", ObjectMember, ActionReportExport},

		{"role:issuer", ObjectDid, ActionCreate},
		{"role:verifier", ObjectDid, ActionView},

		{"role:system", ObjectOrganization, ActionDelete},
		{"role:system", ObjectMember, ActionMemberRolesUpdate},
		{"role:system", ObjectActivity, ActionView},
	}

	// Every role that belongs to the organization may read the common
	// objects.
	for _, role := range []string{"role:owner", "role:admin", "role:issuer", "role:verifier", "role:member"} {
		for _, object := range viewObjects {
			policies = append(policies, []string{role, object, ActionView})
		}
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
