package access

import (
	"testing"

	"student-records/internal/models"
	"student-records/internal/util"
)

func TestCheck_PolicyTable(t *testing.T) {
	admin := &Principal{UserID: 1, Role: models.RoleAdmin}
	teacher := &Principal{UserID: 2, Role: models.RoleTeacher}

	readOnly := []Action{ListStudents, ReadStudent, ReadAnalytics}
	adminOnly := []Action{CreateStudent, UpdateStudent, DeleteStudent, ImportStudent, ExportStudent, ListAudit}

	for _, a := range readOnly {
		if err := Check(admin, a); err != nil {
			t.Errorf("admin %s: error = %v, want nil", a, err)
		}
		if err := Check(teacher, a); err != nil {
			t.Errorf("teacher %s: error = %v, want nil", a, err)
		}
	}
	for _, a := range adminOnly {
		if err := Check(admin, a); err != nil {
			t.Errorf("admin %s: error = %v, want nil", a, err)
		}
		if err := Check(teacher, a); !util.IsKind(err, util.KindForbidden) {
			t.Errorf("teacher %s: error = %v, want forbidden", a, err)
		}
	}
}

func TestCheck_UnauthenticatedIsDistinct(t *testing.T) {
	for _, p := range []*Principal{nil, {}} {
		err := Check(p, ListStudents)
		if !util.IsKind(err, util.KindUnauthenticated) {
			t.Errorf("Check(%v) = %v, want unauthenticated", p, err)
		}
		if util.IsKind(err, util.KindForbidden) {
			t.Error("missing caller must not be reported as forbidden")
		}
	}
}

func TestCheck_UnknownRoleAndAction(t *testing.T) {
	guest := &Principal{UserID: 3, Role: "guest"}
	if err := Check(guest, ListStudents); !util.IsKind(err, util.KindForbidden) {
		t.Errorf("unknown role: error = %v, want forbidden", err)
	}
	admin := &Principal{UserID: 1, Role: models.RoleAdmin}
	if Allowed(admin, Action("students:purge")) {
		t.Error("unknown action should be denied")
	}
}
