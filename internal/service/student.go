// Package service orchestrates student operations: gate, store, then the
// post-commit audit hook.
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"student-records/internal/access"
	"student-records/internal/audit"
	"student-records/internal/diff"
	"student-records/internal/metrics"
	"student-records/internal/models"
	"student-records/internal/store"
	"student-records/internal/workbook"
)

// AuditRecorder is the subset of the audit recorder the service needs.
type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) (models.AuditLog, error)
}

// Caller is who is asking and from where.
type Caller struct {
	Principal *access.Principal
	Origin    access.Origin
}

// Analytics is the read-side projection over the roster.
type Analytics struct {
	Total       int64              `json:"total"`
	PerClass    []store.GroupCount `json:"perClass"`
	GenderRatio []store.GroupCount `json:"genderRatio"`
}

// PhotoStore removes uploaded profile photos.
type PhotoStore interface {
	Remove(ref string) error
}

// StudentService is the entry point for every student operation.
type StudentService struct {
	// Photos, when set, drops uploads no student references any more.
	Photos PhotoStore

	students *store.StudentStore
	audit    AuditRecorder
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewStudentService(students *store.StudentStore, rec AuditRecorder, m *metrics.Metrics, log *zap.Logger) *StudentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StudentService{students: students, audit: rec, metrics: m, log: log}
}

func (s *StudentService) List(ctx context.Context, c Caller, f store.StudentFilter, page, pageSize int) (store.StudentPage, error) {
	if err := access.Check(c.Principal, access.ListStudents); err != nil {
		return store.StudentPage{}, err
	}
	return s.students.List(ctx, f, page, pageSize)
}

func (s *StudentService) Get(ctx context.Context, c Caller, id string) (models.Student, error) {
	if err := access.Check(c.Principal, access.ReadStudent); err != nil {
		return models.Student{}, err
	}
	return s.students.Get(ctx, id)
}

func (s *StudentService) Create(ctx context.Context, c Caller, in store.StudentInput) (models.Student, error) {
	if err := access.Check(c.Principal, access.CreateStudent); err != nil {
		return models.Student{}, err
	}
	return s.create(ctx, c, in)
}

func (s *StudentService) create(ctx context.Context, c Caller, in store.StudentInput) (models.Student, error) {
	st, err := s.students.Create(ctx, in)
	if err != nil {
		return models.Student{}, err
	}
	s.afterCommit(ctx, c, models.AuditCreate, st.ID, nil, st.Snapshot())
	return st, nil
}

func (s *StudentService) Update(ctx context.Context, c Caller, id string, patch store.StudentPatch) (models.Student, error) {
	if err := access.Check(c.Principal, access.UpdateStudent); err != nil {
		return models.Student{}, err
	}
	before, after, err := s.students.Update(ctx, id, patch)
	if err != nil {
		return models.Student{}, err
	}
	s.afterCommit(ctx, c, models.AuditUpdate, id, before.Snapshot(), after.Snapshot())
	if before.ProfilePhotoURL != after.ProfilePhotoURL {
		s.releasePhoto(ctx, before.ProfilePhotoURL)
	}
	return after, nil
}

func (s *StudentService) Delete(ctx context.Context, c Caller, id string) (models.Student, error) {
	if err := access.Check(c.Principal, access.DeleteStudent); err != nil {
		return models.Student{}, err
	}
	before, err := s.students.Delete(ctx, id)
	if err != nil {
		return models.Student{}, err
	}
	s.afterCommit(ctx, c, models.AuditDelete, id, before.Snapshot(), nil)
	s.releasePhoto(ctx, before.ProfilePhotoURL)
	return before, nil
}

// Export returns every student as an xlsx workbook.
func (s *StudentService) Export(ctx context.Context, c Caller) ([]byte, error) {
	if err := access.Check(c.Principal, access.ExportStudent); err != nil {
		return nil, err
	}
	all, err := s.students.All(ctx)
	if err != nil {
		return nil, err
	}
	data, err := workbook.Export(all)
	if err != nil {
		return nil, fmt.Errorf("export students: %w", err)
	}
	return data, nil
}

// ExportCSV returns every student as CSV.
func (s *StudentService) ExportCSV(ctx context.Context, c Caller) ([]byte, error) {
	if err := access.Check(c.Principal, access.ExportStudent); err != nil {
		return nil, err
	}
	all, err := s.students.All(ctx)
	if err != nil {
		return nil, err
	}
	return workbook.ExportCSV(all)
}

// Import creates one student per acceptable workbook row. Each created
// row goes through the audited create path.
func (s *StudentService) Import(ctx context.Context, c Caller, data []byte) (workbook.Summary, error) {
	if err := access.Check(c.Principal, access.ImportStudent); err != nil {
		return workbook.Summary{}, err
	}
	sum, err := workbook.Import(ctx, data, importSink{s: s, c: c}, s.metrics.ImportRow)
	if err != nil {
		s.log.Warn("import stopped",
			zap.Int("created", sum.Created),
			zap.Int("skipped", sum.Skipped),
			zap.Error(err))
		return sum, err
	}
	s.log.Info("import finished", zap.Int("created", sum.Created), zap.Int("skipped", sum.Skipped))
	return sum, nil
}

type importSink struct {
	s *StudentService
	c Caller
}

func (k importSink) Exists(ctx context.Context, key store.DuplicateKey) (bool, error) {
	return k.s.students.Exists(ctx, key)
}

func (k importSink) Create(ctx context.Context, in store.StudentInput) error {
	_, err := k.s.create(ctx, k.c, in)
	return err
}

// Analytics returns the total and grouped counts.
func (s *StudentService) Analytics(ctx context.Context, c Caller) (Analytics, error) {
	if err := access.Check(c.Principal, access.ReadAnalytics); err != nil {
		return Analytics{}, err
	}
	total, err := s.students.Count(ctx)
	if err != nil {
		return Analytics{}, err
	}
	perClass, err := s.students.CountByClass(ctx)
	if err != nil {
		return Analytics{}, err
	}
	byGender, err := s.students.CountByGender(ctx)
	if err != nil {
		return Analytics{}, err
	}
	return Analytics{Total: total, PerClass: perClass, GenderRatio: byGender}, nil
}

// releasePhoto removes ref once no student points at it. Several records
// may share one upload through client-supplied or imported references.
func (s *StudentService) releasePhoto(ctx context.Context, ref string) {
	if s.Photos == nil || ref == "" {
		return
	}
	inUse, err := s.students.PhotoInUse(ctx, ref)
	if err != nil {
		s.log.Warn("photo lookup failed", zap.String("ref", ref), zap.Error(err))
		return
	}
	if inUse {
		return
	}
	if err := s.Photos.Remove(ref); err != nil {
		s.log.Warn("photo remove failed", zap.String("ref", ref), zap.Error(err))
	}
}

// afterCommit writes the audit entry of a mutation that already committed.
// It runs once per mutation, outlives request cancellation and never
// reports failure to the caller.
func (s *StudentService) afterCommit(ctx context.Context, c Caller, action, entityID string, before, after diff.Fields) {
	s.metrics.MutationCommitted(action)
	if s.audit == nil {
		return
	}

	fields := []zap.Field{zap.String("action", action), zap.String("entity_id", entityID)}
	defer func() {
		if r := recover(); r != nil {
			s.metrics.AuditFailed()
			s.log.Error("audit hook panicked", append(fields, zap.Any("panic", r))...)
		}
	}()

	_, err := s.audit.Record(context.WithoutCancel(ctx), audit.Entry{
		Actor:      c.Principal,
		Action:     action,
		EntityType: audit.EntityStudent,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		Origin:     c.Origin,
	})
	if err != nil {
		s.metrics.AuditFailed()
		s.log.Error("audit write failed", append(fields, zap.Error(err))...)
	}
}
