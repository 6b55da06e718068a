package metricspush

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Accounting samples platform-level totals into gauges on a private registry.
type Accounting struct {
	registry *prometheus.Registry

	organizations      prometheus.Gauge
	users              prometheus.Gauge
	memberships        prometheus.Gauge
	pendingInvitations prometheus.Gauge
	dids               prometheus.Gauge
	roleSyncBacklog    prometheus.Gauge
}

func NewAccounting() *Accounting {
	a := &Accounting{
		registry: prometheus.NewRegistry(),
		organizations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confirmd_organizations_total",
			Help: "Registered organizations.",
		}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confirmd_users_total",
			Help: "Registered users.",
		}),
		memberships: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confirmd_memberships_total",
			Help: "User role bindings across all organizations.",
		}),
		pendingInvitations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confirmd_invitations_pending",
			Help: "Invitations awaiting a response.",
		}),
		dids: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confirmd_org_dids_total",
			Help: "Decentralized identifiers registered by organizations.",
		}),
		roleSyncBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "confirmd_role_sync_backlog",
			Help: "Pending role sync outbox entries.",
		}),
	}

	a.registry.MustRegister(
		a.organizations,
		a.users,
		a.memberships,
		a.pendingInvitations,
		a.dids,
		a.roleSyncBacklog,
	)
	return a
}

func (a *Accounting) Registry() *prometheus.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

// Sample refreshes every gauge from the database. A failed count leaves the
// previous sample in place.
func (a *Accounting) Sample(ctx context.Context, db *gorm.DB) error {
	if a == nil || db == nil {
		return nil
	}

	var firstErr error
	sample := func(gauge prometheus.Gauge, query string, args ...any) {
		var count int64
		if err := db.WithContext(ctx).Raw(query, args...).Scan(&count).Error; err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		gauge.Set(float64(count))
	}

	sample(a.organizations, `SELECT COUNT(1) FROM organisations`)
	sample(a.users, `SELECT COUNT(1) FROM users`)
	sample(a.memberships, `SELECT COUNT(1) FROM user_org_roles`)
	sample(a.pendingInvitations, `SELECT COUNT(1) FROM org_invitations WHERE status = ?`, "pending")
	sample(a.dids, `SELECT COUNT(1) FROM org_dids`)
	sample(a.roleSyncBacklog, `SELECT COUNT(1) FROM role_sync_outbox WHERE status = ?`, "pending")

	return firstErr
}
