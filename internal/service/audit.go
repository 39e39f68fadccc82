package service

import (
	"context"

	"student-records/internal/access"
	"student-records/internal/audit"
)

// AuditService exposes the audit trail to admins.
type AuditService struct {
	rec *audit.Recorder
}

func NewAuditService(rec *audit.Recorder) *AuditService {
	return &AuditService{rec: rec}
}

func (s *AuditService) List(ctx context.Context, c Caller, f audit.Filter, page, pageSize int) (audit.Page, error) {
	if err := access.Check(c.Principal, access.ListAudit); err != nil {
		return audit.Page{}, err
	}
	return s.rec.List(ctx, f, page, pageSize)
}
