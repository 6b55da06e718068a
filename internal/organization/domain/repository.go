package domain

import (
	"context"

	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrganization(ctx context.Context, org Organization) error
	UpdateOrganization(ctx context.Context, org Organization) error
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	List(ctx context.Context, req pagination.Request) ([]Organization, int64, error)
	ListByUser(ctx context.Context, userID snowflake.ID, req pagination.Request) ([]Organization, int64, error)
	// ListUnregistered returns organizations whose identity-provider client
	// registration never completed.
	ListUnregistered(ctx context.Context, limit int) ([]Organization, error)
	DeleteOrganization(ctx context.Context, id snowflake.ID) (int64, error)

	CreateInvitation(ctx context.Context, inv Invitation) error
	GetInvitationByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	UpdateInvitationStatus(ctx context.Context, id snowflake.ID, status string) error
	DeleteInvitation(ctx context.Context, id snowflake.ID) error
	ListInvitationsByOrg(ctx context.Context, orgID snowflake.ID, req pagination.Request) ([]Invitation, int64, error)
	ListInvitationsByEmail(ctx context.Context, email string, req pagination.Request) ([]Invitation, int64, error)
	// PendingOrAcceptedExists reports whether the (email, org) pair already
	// has a live invitation. A rejected-only history does not count.
	PendingOrAcceptedExists(ctx context.Context, email string, orgID snowflake.ID) (bool, error)
	ListInviteesByStatus(ctx context.Context, orgID snowflake.ID, statuses []string) ([]Invitation, error)
	DeleteInvitationsByOrg(ctx context.Context, orgID snowflake.ID) (int64, error)
	CountInvitationsByStatus(ctx context.Context, orgID snowflake.ID, status string) (int64, error)

	CreateDid(ctx context.Context, did OrgDid) error
	GetDid(ctx context.Context, id snowflake.ID) (*OrgDid, error)
	ListDids(ctx context.Context, orgID snowflake.ID) ([]OrgDid, error)
	CountDids(ctx context.Context, orgID snowflake.ID) (int64, error)
	UnsetPrimaryDids(ctx context.Context, orgID snowflake.ID) error
	MarkPrimaryDid(ctx context.Context, id snowflake.ID) error
	DeleteDidsByOrg(ctx context.Context, orgID snowflake.ID) (int64, error)

	// DeleteActivitiesByOrg removes the organization's activity rows as part
	// of the deletion cascade.
	DeleteActivitiesByOrg(ctx context.Context, orgID snowflake.ID) (int64, error)
}
