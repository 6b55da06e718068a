// Package domain defines role reconciliation between the local catalog and
// the identity provider's client roles.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	// ErrRoleNotFound means at least one requested role has no matching
	// client role on the provider. Nothing is written when this happens.
	ErrRoleNotFound = errors.New("role_not_found")

	// ErrBatchFailed means an unbind batch fell below its success policy.
	ErrBatchFailed = errors.New("role_unbind_batch_failed")
)

// Binding pairs a catalog role with the provider role it maps to.
type Binding struct {
	OrgRoleID snowflake.ID
	Name      string
	IdpRoleID string
}

// PartialFailureMode says how a batch reacts to individual failures.
type PartialFailureMode string

const (
	// PartialContinue keeps going and judges the batch by MinSuccess.
	PartialContinue PartialFailureMode = "continue"
	// PartialAbort fails the batch on the first error.
	PartialAbort PartialFailureMode = "abort"
)

// BatchPolicy makes best-effort semantics explicit instead of implied.
type BatchPolicy struct {
	MinSuccess       int
	OnPartialFailure PartialFailureMode
}

// Outbox operations.
const (
	OpAssign = "assign"
	OpRemove = "remove"
)

// Outbox statuses.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// OutboxEntry is one durable provider-side role operation that could not be
// applied synchronously. A scheduler drains these.
type OutboxEntry struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID `gorm:"not null;index" json:"org_id"`
	UserIdpID   string       `gorm:"type:text;not null;column:user_idp_id" json:"user_idp_id"`
	ClientIdpID string       `gorm:"type:text;not null;column:client_idp_id" json:"client_idp_id"`
	Operation   string       `gorm:"type:text;not null" json:"operation"`
	IdpRoleID   string       `gorm:"type:text;not null;column:idp_role_id" json:"idp_role_id"`
	RoleName    string       `gorm:"type:text;not null" json:"role_name"`
	Attempts    int          `gorm:"not null;default:0" json:"attempts"`
	LastError   string       `gorm:"type:text" json:"last_error"`
	Status      string       `gorm:"type:text;not null;default:'pending';index" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OutboxEntry) TableName() string { return "role_sync_outbox" }

// MemberBindings groups one member's provider bindings for batch unbinds.
type MemberBindings struct {
	UserIdpID   string
	ClientIdpID string
	Bindings    []Binding
}
