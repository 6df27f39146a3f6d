package agentstate

import "strings"

// CheckRole implements the role-permission check from
// original_source/core/action_controller.py: an action declares a set of
// allowed roles; "*" means "any non-host agent"; an empty set means
// anyone. The check is case-insensitive. A State with no explicit "role"
// property falls back to its Name, matching the original's
// agent.properties.get("role", agent.name).
func (s *State) CheckRole(allowedRoles []string) error {
	if len(allowedRoles) == 0 {
		return nil
	}

	role := s.Name
	if r, ok := s.Properties["role"].(string); ok && r != "" {
		role = r
	}

	for _, allowed := range allowedRoles {
		if allowed == "*" {
			if !strings.EqualFold(role, "host") {
				return nil
			}
			continue
		}
		if strings.EqualFold(allowed, role) {
			return nil
		}
	}
	return ErrRoleForbidden
}
