// Package access decides whether a caller may perform an action.
package access

import (
	"student-records/internal/models"
	"student-records/internal/util"
)

// Action is an operation guarded by the gate.
type Action string

const (
	ListStudents  Action = "students:list"
	ReadStudent   Action = "students:read"
	CreateStudent Action = "students:create"
	UpdateStudent Action = "students:update"
	DeleteStudent Action = "students:delete"
	ImportStudent Action = "students:import"
	ExportStudent Action = "students:export"
	ReadAnalytics Action = "analytics:read"
	ListAudit     Action = "audit:list"
)

// Principal is the resolved caller of a request.
type Principal struct {
	UserID uint
	Email  string
	Role   string
}

// Origin describes where a request came from.
type Origin struct {
	IP        string
	UserAgent string
}

// policy lists the roles allowed per action. Actions missing from the
// table are denied.
var policy = map[Action][]string{
	ListStudents:  {models.RoleAdmin, models.RoleTeacher},
	ReadStudent:   {models.RoleAdmin, models.RoleTeacher},
	ReadAnalytics: {models.RoleAdmin, models.RoleTeacher},
	CreateStudent: {models.RoleAdmin},
	UpdateStudent: {models.RoleAdmin},
	DeleteStudent: {models.RoleAdmin},
	ImportStudent: {models.RoleAdmin},
	ExportStudent: {models.RoleAdmin},
	ListAudit:     {models.RoleAdmin},
}

// Check returns nil when p may perform a, an Unauthenticated error when
// there is no caller and a Forbidden error when the caller's role is not
// allowed.
func Check(p *Principal, a Action) error {
	if p == nil || p.UserID == 0 {
		return util.Unauthenticated("authentication required")
	}
	for _, role := range policy[a] {
		if p.Role == role {
			return nil
		}
	}
	return util.Forbidden("forbidden: role " + p.Role + " may not perform " + string(a))
}

// Allowed is Check as a boolean.
func Allowed(p *Principal, a Action) bool {
	return Check(p, a) == nil
}
