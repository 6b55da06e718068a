package metricspush

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CredenceNG/confirmd-platform/internal/config"
	orgdomain "github.com/CredenceNG/confirmd-platform/internal/organization/domain"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	rolesyncdomain "github.com/CredenceNG/confirmd-platform/internal/rolesync/domain"
	userdomain "github.com/CredenceNG/confirmd-platform/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
	"gorm.io/gorm"
)

func TestNewPusherMisconfiguration(t *testing.T) {
	log := zap.NewNop()

	if p := NewPusher(config.Config{}, log); p != nil {
		t.Fatal("disabled push must yield nil")
	}
	if p := NewPusher(config.Config{MetricsPush: config.MetricsPushConfig{Enabled: true}}, log); p != nil {
		t.Fatal("missing endpoint must yield nil")
	}
	if p := NewPusher(config.Config{MetricsPush: config.MetricsPushConfig{
		Enabled:  true,
		Endpoint: "not a url",
	}}, log); p != nil {
		t.Fatal("invalid endpoint must yield nil")
	}
	if p := NewPusher(config.Config{MetricsPush: config.MetricsPushConfig{
		Enabled:  true,
		Endpoint: "https://metrics.example.com/api/v1/write",
	}}, log); p == nil {
		t.Fatal("valid config must yield a pusher")
	}
}

func newAccountingDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	err = conn.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.Invitation{},
		&orgdomain.OrgDid{},
		&orgroledomain.UserOrgRole{},
		&userdomain.User{},
		&rolesyncdomain.OutboxEntry{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}

func TestAccountingSample(t *testing.T) {
	conn := newAccountingDB(t)
	node, _ := snowflake.NewNode(1)

	for i := 0; i < 2; i++ {
		if err := conn.Create(&userdomain.User{ID: node.Generate(), Email: node.Generate().String() + "@example.com"}).Error; err != nil {
			t.Fatalf("failed to insert user: %v", err)
		}
	}
	if err := conn.Create(&orgdomain.Invitation{ID: node.Generate(), OrgID: 1, InviterID: 1, Email: "a@b.io", Status: "pending"}).Error; err != nil {
		t.Fatalf("failed to insert invitation: %v", err)
	}
	if err := conn.Create(&orgdomain.Invitation{ID: node.Generate(), OrgID: 1, InviterID: 1, Email: "c@b.io", Status: "accepted"}).Error; err != nil {
		t.Fatalf("failed to insert invitation: %v", err)
	}

	a := NewAccounting()
	if err := a.Sample(context.Background(), conn); err != nil {
		t.Fatalf("sample failed: %v", err)
	}

	families, err := a.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			values[family.GetName()] = metric.GetGauge().GetValue()
		}
	}
	if values["confirmd_users_total"] != 2 {
		t.Fatalf("expected 2 users, got %v", values["confirmd_users_total"])
	}
	// Only the pending invitation counts.
	if values["confirmd_invitations_pending"] != 1 {
		t.Fatalf("expected 1 pending invitation, got %v", values["confirmd_invitations_pending"])
	}
	if values["confirmd_organizations_total"] != 0 {
		t.Fatalf("expected 0 organizations, got %v", values["confirmd_organizations_total"])
	}
}

func TestRemoteWritePush(t *testing.T) {
	var (
		gotHeaders http.Header
		gotBody    []byte
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	conn := newAccountingDB(t)
	node, _ := snowflake.NewNode(1)
	if err := conn.Create(&userdomain.User{ID: node.Generate(), Email: "a@example.com"}).Error; err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}

	a := NewAccounting()
	if err := a.Sample(context.Background(), conn); err != nil {
		t.Fatalf("sample failed: %v", err)
	}

	p := NewRemoteWritePusher(ts.URL, "push-token")
	if err := p.Push(context.Background(), a.Registry()); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	if gotHeaders.Get("Content-Type") != "application/x-protobuf" {
		t.Fatalf("unexpected content type: %q", gotHeaders.Get("Content-Type"))
	}
	if gotHeaders.Get("Content-Encoding") != "snappy" {
		t.Fatalf("unexpected encoding: %q", gotHeaders.Get("Content-Encoding"))
	}
	if gotHeaders.Get("X-Prometheus-Remote-Write-Version") != "0.1.0" {
		t.Fatalf("unexpected remote write version: %q", gotHeaders.Get("X-Prometheus-Remote-Write-Version"))
	}
	if gotHeaders.Get("Authorization") != "Bearer push-token" {
		t.Fatalf("unexpected authorization: %q", gotHeaders.Get("Authorization"))
	}

	raw, err := snappy.Decode(nil, gotBody)
	if err != nil {
		t.Fatalf("snappy decode failed: %v", err)
	}
	var req prompb.WriteRequest
	if err := proto.Unmarshal(raw, protoadapt.MessageV2Of(&req)); err != nil {
		t.Fatalf("proto decode failed: %v", err)
	}

	found := false
	for _, series := range req.Timeseries {
		for _, label := range series.Labels {
			if label.Name == "__name__" && label.Value == "confirmd_users_total" {
				found = true
				if len(series.Samples) != 1 || series.Samples[0].Value != 1 {
					t.Fatalf("unexpected samples: %+v", series.Samples)
				}
			}
		}
	}
	if !found {
		t.Fatal("user gauge missing from write request")
	}
}

func TestPushUpstreamRejection(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer ts.Close()

	a := NewAccounting()
	p := NewRemoteWritePusher(ts.URL, "")
	if err := p.Push(context.Background(), a.Registry()); err == nil {
		t.Fatal("expected rejection to surface")
	}
}
