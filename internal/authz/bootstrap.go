package authz

import (
	"fmt"

	"github.com/rentflow/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 参与方角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	fundingSourcePolicies := []Policy{
		{Object: "/funding-sources", Action: "*"},
		{Object: "/funding-sources/identity", Action: "POST"},
		{Object: "/funding-sources/:id/verify", Action: "POST"},
		{Object: "/funding-sources/:id/micro-deposits", Action: "POST"},
		{Object: "/funding-sources/:id/default", Action: "POST"},
		{Object: "/me", Action: "GET"},
	}
	return []RoleSeed{
		{
			Role: constants.PartyRoleTenant,
			Policies: append([]Policy{
				{Object: "/tenant/*", Action: "*"},
			}, fundingSourcePolicies...),
		},
		{
			Role: constants.PartyRoleLandlord,
			Policies: append([]Policy{
				{Object: "/landlord/*", Action: "*"},
			}, fundingSourcePolicies...),
		},
		{
			Role:     constants.PartyRoleAdmin,
			Inherits: []string{constants.PartyRoleLandlord, constants.PartyRoleTenant},
			Policies: []Policy{
				{Object: "/admin/*", Action: "*"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
