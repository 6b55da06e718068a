// Package seed bootstraps reference data the platform assumes exists.
package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	orgroledomain "github.com/CredenceNG/confirmd-platform/internal/orgrole/domain"
	"gorm.io/gorm"
)

var roleDescriptions = map[string]string{
	orgroledomain.RoleOwner:         "Full control of the organization, including deletion",
	orgroledomain.RoleAdmin:         "Manages members, invitations, and credentials",
	orgroledomain.RoleIssuer:        "Issues verifiable credentials on behalf of the organization",
	orgroledomain.RoleVerifier:      "Requests and verifies credential presentations",
	orgroledomain.RoleMember:        "Basic organization membership",
	orgroledomain.RoleHolder:        "Credential holder, not bound to an organization",
	orgroledomain.RolePlatformAdmin: "Operates the platform across all organizations",
}

// EnsureRoleCatalog seeds the role catalog. Existing rows are left untouched
// so descriptions edited by operators survive restarts.
func EnsureRoleCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(orgroledomain.DefaultClientRoles)+2)
	names = append(names, orgroledomain.DefaultClientRoles...)
	names = append(names, orgroledomain.RoleHolder, orgroledomain.RolePlatformAdmin)

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			var existing orgroledomain.OrgRole
			err := tx.WithContext(ctx).Where("name = ?", name).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			role := orgroledomain.OrgRole{
				ID:          node.Generate(),
				Name:        name,
				Description: roleDescriptions[name],
			}
			if err := tx.WithContext(ctx).Create(&role).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
