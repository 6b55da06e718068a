package domain

import (
	"context"
	"errors"
	"time"

	"github.com/CredenceNG/confirmd-platform/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidAction       = errors.New("invalid_action")
	ErrInvalidOrganization = errors.New("invalid_organization")
)

const (
	ActorTypeUser   = "user"
	ActorTypeSystem = "system"
)

// Activity is an append-only record of something a user (or the platform
// itself) did to an organization-scoped resource.
type Activity struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID     *snowflake.ID     `gorm:"index" json:"userId,omitempty"`
	OrgID      *snowflake.ID     `gorm:"index" json:"orgId,omitempty"`
	ActorType  string            `json:"actorType"`
	Action     string            `json:"action"`
	TargetType string            `json:"targetType"`
	TargetID   *string           `json:"targetId,omitempty"`
	Details    datatypes.JSONMap `json:"details,omitempty"`
	IPAddress  *string           `json:"ipAddress,omitempty"`
	UserAgent  *string           `json:"userAgent,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func (Activity) TableName() string {
	return "user_activities"
}

// Entry is the caller-facing shape of a new activity record. Zero-value
// fields are resolved from the request context where possible.
type Entry struct {
	UserID     *snowflake.ID
	OrgID      *snowflake.ID
	Action     string
	TargetType string
	TargetID   *string
	Details    map[string]any
}

// ListFilter narrows an activity listing. OrgID is required.
type ListFilter struct {
	OrgID      snowflake.ID
	UserID     *snowflake.ID
	Action     string
	TargetType string
	StartAt    *time.Time
	EndAt      *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Activity) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, req pagination.Request) ([]Activity, int64, error)
}

type Service interface {
	// Record writes one activity row. Failures are logged and returned but
	// callers normally treat them as non-fatal.
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter ListFilter, req pagination.Request) ([]Activity, pagination.Page, error)
}
