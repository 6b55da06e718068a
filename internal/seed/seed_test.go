package seed

import (
	"testing"

	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := conn.AutoMigrate(&orgroledomain.OrgRole{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}

func TestEnsureRoleCatalog(t *testing.T) {
	conn := newDB(t)

	if err := EnsureRoleCatalog(conn); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var roles []orgroledomain.OrgRole
	if err := conn.Find(&roles).Error; err != nil {
		t.Fatalf("failed to list roles: %v", err)
	}
	if len(roles) != 7 {
		t.Fatalf("expected 7 roles, got %d", len(roles))
	}

	byName := map[string]orgroledomain.OrgRole{}
	for _, role := range roles {
		byName[role.Name] = role
	}
	for _, name := range append(append([]string{}, orgroledomain.DefaultClientRoles...), orgroledomain.RoleHolder, orgroledomain.RolePlatformAdmin) {
		role, ok := byName[name]
		if !ok {
			t.Fatalf("role %q missing from catalog", name)
		}
		if role.Description == "" {
			t.Fatalf("role %q has no description", name)
		}
	}
}

func TestEnsureRoleCatalogIsIdempotent(t *testing.T) {
	conn := newDB(t)

	if err := EnsureRoleCatalog(conn); err != nil {
		t.Fatalf("first seed failed: %v", err)
	}

	// Operators may edit descriptions; reseeding must not clobber them.
	err := conn.Model(&orgroledomain.OrgRole{}).
		Where("name = ?", orgroledomain.RoleMember).
		Update("description", "edited by an operator").Error
	if err != nil {
		t.Fatalf("failed to edit description: %v", err)
	}

	if err := EnsureRoleCatalog(conn); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}

	var count int64
	if err := conn.Model(&orgroledomain.OrgRole{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count roles: %v", err)
	}
	if count != 7 {
		t.Fatalf("reseed must not duplicate roles, got %d", count)
	}

	var member orgroledomain.OrgRole
	if err := conn.Where("name = ?", orgroledomain.RoleMember).First(&member).Error; err != nil {
		t.Fatalf("member role missing: %v", err)
	}
	if member.Description != "edited by an operator" {
		t.Fatalf("edited description lost: %q", member.Description)
	}
}

func TestEnsureRoleCatalogNilDB(t *testing.T) {
	if err := EnsureRoleCatalog(nil); err == nil {
		t.Fatal("expected error for nil database handle")
	}
}
