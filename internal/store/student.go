package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"student-records/internal/models"
	"student-records/internal/util"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

// StudentFilter is a conjunction of optional predicates. Empty fields do
// not constrain; ClassName "all" is the same as empty.
type StudentFilter struct {
	Name      string
	ClassName string
	Gender    string
}

// StudentPage is one page of a filtered listing.
type StudentPage struct {
	Items      []models.Student `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"limit"`
	Total      int64            `json:"total"`
	TotalPages int              `json:"totalPages"`
}

// GroupCount is one bucket of a grouped count.
type GroupCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DuplicateKey identifies an existing student during import: by email when
// present, otherwise by name and class.
type DuplicateKey struct {
	Email     string
	Name      string
	ClassName string
}

// StudentStore owns student persistence.
type StudentStore struct {
	db *gorm.DB
}

func NewStudentStore(db *gorm.DB) *StudentStore {
	return &StudentStore{db: db}
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func (s *StudentStore) filtered(ctx context.Context, f StudentFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Student{})
	if name := strings.TrimSpace(f.Name); name != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(name))+"%")
	}
	if class := strings.TrimSpace(f.ClassName); class != "" && !strings.EqualFold(class, "all") {
		q = q.Where("class_name = ?", class)
	}
	if gender := models.NormalizeGender(f.Gender); gender != "" {
		q = q.Where("gender = ?", gender)
	}
	return q
}

// List returns a page of students matching f, newest first.
func (s *StudentStore) List(ctx context.Context, f StudentFilter, page, pageSize int) (StudentPage, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return StudentPage{}, util.Upstream("count students", err)
	}

	items := make([]models.Student, 0, pageSize)
	if err := s.filtered(ctx, f).
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&items).Error; err != nil {
		return StudentPage{}, util.Upstream("list students", err)
	}

	return StudentPage{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: TotalPages(total, pageSize),
	}, nil
}

// Get loads one student.
func (s *StudentStore) Get(ctx context.Context, id string) (models.Student, error) {
	return getStudent(s.db.WithContext(ctx), id)
}

func getStudent(tx *gorm.DB, id string) (models.Student, error) {
	var st models.Student
	if err := tx.First(&st, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Student{}, util.NotFound("student not found")
		}
		return models.Student{}, util.Upstream("load student", err)
	}
	return st, nil
}

// Create validates in and persists a new student with a server-assigned id.
func (s *StudentStore) Create(ctx context.Context, in StudentInput) (models.Student, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return models.Student{}, err
	}
	st := in.toModel()
	st.ID = uuid.NewString()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureEmailFree(tx, st.Email, ""); err != nil {
			return err
		}
		return tx.Create(&st).Error
	})
	if err != nil {
		return models.Student{}, translate("create student", err)
	}
	return st, nil
}

// Update applies patch to the stored student and returns both the state
// before and after, read and written inside one transaction.
func (s *StudentStore) Update(ctx context.Context, id string, patch StudentPatch) (before, after models.Student, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := getStudent(tx, id)
		if err != nil {
			return err
		}
		next, err := patch.apply(cur)
		if err != nil {
			return err
		}
		if patch.Email != nil {
			if err := ensureEmailFree(tx, next.Email, id); err != nil {
				return err
			}
		}
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		before, after = cur, next
		return nil
	})
	if err != nil {
		return models.Student{}, models.Student{}, translate("update student", err)
	}
	return before, after, nil
}

// Delete removes a student and returns its last state.
func (s *StudentStore) Delete(ctx context.Context, id string) (models.Student, error) {
	var before models.Student
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := getStudent(tx, id)
		if err != nil {
			return err
		}
		res := tx.Delete(&models.Student{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.NotFound("student not found")
		}
		before = cur
		return nil
	})
	if err != nil {
		return models.Student{}, translate("delete student", err)
	}
	return before, nil
}

// Exists reports whether a student matching the duplicate key is stored.
func (s *StudentStore) Exists(ctx context.Context, key DuplicateKey) (bool, error) {
	q := s.db.WithContext(ctx).Model(&models.Student{})
	if email := models.NormalizeEmail(key.Email); email != "" {
		q = q.Where("email = ?", email)
	} else {
		q = q.Where("name = ? AND class_name = ?", strings.TrimSpace(key.Name), strings.TrimSpace(key.ClassName))
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, util.Upstream("lookup duplicate", err)
	}
	return n > 0, nil
}

// PhotoInUse reports whether any stored student references the photo.
func (s *StudentStore) PhotoInUse(ctx context.Context, ref string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Student{}).
		Where("profile_photo_url = ?", ref).
		Count(&n).Error; err != nil {
		return false, util.Upstream("lookup photo", err)
	}
	return n > 0, nil
}

// All returns every student, newest first.
func (s *StudentStore) All(ctx context.Context) ([]models.Student, error) {
	var items []models.Student
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, util.Upstream("list students", err)
	}
	return items, nil
}

// Count returns the number of students.
func (s *StudentStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Student{}).Count(&n).Error; err != nil {
		return 0, util.Upstream("count students", err)
	}
	return n, nil
}

// CountByClass returns per-class counts ordered by class name.
func (s *StudentStore) CountByClass(ctx context.Context) ([]GroupCount, error) {
	return s.countBy(ctx, "class_name")
}

// CountByGender returns per-gender counts ordered by gender.
func (s *StudentStore) CountByGender(ctx context.Context) ([]GroupCount, error) {
	return s.countBy(ctx, "gender")
}

func (s *StudentStore) countBy(ctx context.Context, column string) ([]GroupCount, error) {
	rows := []GroupCount{}
	if err := s.db.WithContext(ctx).Model(&models.Student{}).
		Select(column + " AS name, COUNT(*) AS count").
		Group(column).
		Order(column).
		Scan(&rows).Error; err != nil {
		return nil, util.Upstream("group students", err)
	}
	return rows, nil
}

func ensureEmailFree(tx *gorm.DB, email *string, exceptID string) error {
	if email == nil {
		return nil
	}
	q := tx.Model(&models.Student{}).Where("email = ?", *email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return util.Conflict("email already in use")
	}
	return nil
}

// translate keeps application errors and maps gorm errors onto the taxonomy.
func translate(op string, err error) error {
	var appErr *util.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return util.Conflict("email already in use")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return util.NotFound("record not found")
	default:
		return util.Upstream(op, err)
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
