package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestGenerateMembershipReport(t *testing.T) {
	p := New()

	r, err := p.GenerateMembershipReport(context.Background(), MembershipReportData{
		PlatformName: "Confirmd",
		OrgName:      "Acme Health Network",
		OrgSlug:      "acme-health-network",
		GeneratedAt:  "2026-03-01 12:00 UTC",
		Members: []MembershipReportRow{
			{Email: "ada@example.com", Name: "Ada Lovelace", Roles: "owner", JoinedAt: "2026-01-10"},
			{Email: "bob@example.com", Name: "Bob Smith", Roles: "admin, issuer", JoinedAt: "2026-02-02"},
		},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	doc, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF")) {
		t.Fatalf("output is not a pdf, starts with %q", doc[:min(len(doc), 8)])
	}
}

func TestGenerateMembershipReportEmptyRoster(t *testing.T) {
	p := New()

	r, err := p.GenerateMembershipReport(context.Background(), MembershipReportData{
		PlatformName: "Confirmd",
		OrgName:      "Empty Org",
		OrgSlug:      "empty-org",
		GeneratedAt:  "2026-03-01 12:00 UTC",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	doc, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read document: %v", err)
	}
	if len(doc) == 0 {
		t.Fatal("empty roster must still render a document")
	}
}

func TestNoOpProvider(t *testing.T) {
	p := &NoOpProvider{}
	r, err := p.GenerateMembershipReport(context.Background(), MembershipReportData{})
	if err != nil {
		t.Fatalf("noop must not fail: %v", err)
	}
	if r != nil {
		t.Fatal("noop must not produce output")
	}
}
