package services

import (
	"context"

	"groupdesk/backend/internal/repository"
	"groupdesk/backend/pkg/models"
)

// RoleDirectory resolves acting members to roles and enumerates the members
// holding a role. The engine treats it as an external collaborator: it only
// consumes resolved roles and never defines membership itself.
type RoleDirectory interface {
	RoleOf(ctx context.Context, tenantID, memberID string) (models.Role, error)
	MembersWithRole(ctx context.Context, tenantID string, role models.Role) ([]*models.Member, error)
}

// StoreDirectory backs RoleDirectory with the member store.
type StoreDirectory struct {
	members repository.MemberStore
}

// NewStoreDirectory creates a RoleDirectory over the member store.
func NewStoreDirectory(members repository.MemberStore) *StoreDirectory {
	return &StoreDirectory{members: members}
}

// RoleOf returns the role of a tenant member.
func (d *StoreDirectory) RoleOf(ctx context.Context, tenantID, memberID string) (models.Role, error) {
	m, err := d.members.GetMember(ctx, tenantID, memberID)
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// MembersWithRole lists the tenant members holding a role.
func (d *StoreDirectory) MembersWithRole(ctx context.Context, tenantID string, role models.Role) ([]*models.Member, error) {
	return d.members.ListMembersByRole(ctx, tenantID, role)
}
