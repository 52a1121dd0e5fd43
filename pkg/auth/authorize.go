package auth

import "teamfeed/pkg/models"

// Action is a capability gate checked against the sender role.
type Action string

const (
	ActionPin    Action = "pin"
	ActionDelete Action = "delete"
)

// Allowed reports whether role may perform action. Pin and delete are gated
// to owners; posting and reading need no capability.
func Allowed(role models.Role, action Action) bool {
	switch action {
	case ActionPin, ActionDelete:
		return role == models.RoleOwner
	default:
		return true
	}
}
