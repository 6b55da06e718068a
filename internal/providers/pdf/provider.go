package pdf

import (
	"context"
	"io"
)

// Provider renders organization exports. Implementations must be safe for
// concurrent use.
type Provider interface {
	GenerateMembershipReport(ctx context.Context, data MembershipReportData) (io.Reader, error)
}

// MembershipReportData is the flattened input for the membership report.
type MembershipReportData struct {
	PlatformName string
	OrgName      string
	OrgSlug      string
	GeneratedAt  string

	Members []MembershipReportRow
}

// MembershipReportRow is one member line in the report.
type MembershipReportRow struct {
	Email    string
	Name     string
	Roles    string
	JoinedAt string
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateMembershipReport(ctx context.Context, data MembershipReportData) (io.Reader, error) {
	return nil, nil
}
