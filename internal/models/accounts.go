package models

// Role is derived per session from the application contract's owner of record
type Role string

const (
	RoleUnknown Role = "unknown"
	RoleUser    Role = "user"
	RoleOwner   Role = "owner"
)

// IsPrivileged reports whether the role may move funds out of other accounts
func (r Role) IsPrivileged() bool {
	return r == RoleOwner
}
