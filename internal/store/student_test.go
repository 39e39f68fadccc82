package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"student-records/internal/database"
	"student-records/internal/util"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	return db
}

func validInput(name string) StudentInput {
	return StudentInput{
		Name:      name,
		Phone:     "0123456789",
		ClassName: "10A",
		Gender:    "Male",
		Address:   "1 Main St",
	}
}

func strPtr(s string) *string { return &s }

func TestStudentCreateAndGet(t *testing.T) {
	s := NewStudentStore(newTestDB(t))
	ctx := context.Background()

	in := validInput(" Ann ")
	in.Email = "Ann@Example.com"
	in.DateOfBirth = "2008-05-01"
	created, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() did not assign an id")
	}
	if created.Name != "Ann" || created.Gender != "male" || created.EmailOrEmpty() != "ann@example.com" {
		t.Errorf("Create() = %+v, want normalised fields", created)
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != created.Name || got.EmailOrEmpty() != created.EmailOrEmpty() || got.DateOfBirth == nil {
		t.Errorf("Get() = %+v, want %+v", got, created)
	}
}

func TestStudentCreateValidation(t *testing.T) {
	s := NewStudentStore(newTestDB(t))
	in := validInput("")
	in.Gender = "robot"
	_, err := s.Create(context.Background(), in)
	if !util.IsKind(err, util.KindValidation) {
		t.Fatalf("Create() error = %v, want validation", err)
	}
	var e *util.AppError
	if !asError(err, &e) || len(e.Fields) != 2 {
		t.Errorf("fields = %+v, want name and gender", e)
	}
}

func TestStudentCreateDuplicateEmail(t *testing.T) {
	s := NewStudentStore(newTestDB(t))
	ctx := context.Background()

	a := validInput("A")
	a.Email = "dup@example.com"
	if _, err := s.Create(ctx, a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	b := validInput("B")
	b.Email = "DUP@example.com"
	if _, err := s.Create(ctx, b); !util.IsKind(err, util.KindConflict) {
		t.Fatalf("Create(duplicate) error = %v, want conflict", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestStudentListPagination(t *testing.T) {
	s := NewStudentStore(newTestDB(t))
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		if _, err := s.Create(ctx, validInput(fmt.Sprintf("Student %02d", i))); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	page, err := s.List(ctx, StudentFilter{}, 3, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 25 || page.TotalPages != 3 || len(page.Items) != 5 {
		t.Errorf("List() total=%d pages=%d items=%d, want 25/3/5", page.Total, page.TotalPages, len(page.Items))
	}

	page, err = s.List(ctx, StudentFilter{}, 9, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Items) != 0 || page.Total != 25 {
		t.Errorf("page past the end = %d items, total %d", len(page.Items), page.Total)
	}

	page, _ = s.List(ctx, StudentFilter{}, 0, 0)
	if page.Page != DefaultPage || page.PageSize != DefaultPageSize {
		t.Errorf("defaults = %d/%d", page.Page, page.PageSize)
	}
}

func TestStudentListFilters(t *testing.T) {
	s := NewStudentStore(newTestDB(t))
	ctx := context.Background()

	seed := []StudentInput{
		{Name: "Alice Smith", Phone: "1", ClassName: "10A", Gender: "female", Address: "x"},
		{Name: "Bob Smith", Phone: "2", ClassName: "10B", Gender: "male", Address: "x"},
		{Name: "Carol 100%", Phone: "3", ClassName: "10A", Gender: "female", Address: "x"},
	}
	for _, in := range seed {
		if _, err := s.Create(ctx, in); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter StudentFilter
		want   int64
	}{
		{"none", StudentFilter{}, 3},
		{"name substring any case", StudentFilter{Name: "SMITH"}, 2},
		{"class", StudentFilter{ClassName: "10A"}, 2},
		{"class all", StudentFilter{ClassName: "all"}, 3},
		{"gender", StudentFilter{Gender: "Female"}, 2},
		{"conjunction", StudentFilter{Name: "smith", ClassName: "10A", Gender: "female"}, 1},
		{"like wildcard escaped", StudentFilter{Name: "%"}, 1},
		{"no match", StudentFilter{Name: "zed"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.List(ctx, tt.filter, 1, 10)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.want {
				t.Errorf("total = %d, want %d", page.Total, tt.want)
			}
		})
	}
}

func TestStudentUpdate(t *testing.T) {
	s := NewStudentStore(newTestDB(t))
	ctx := context.Background()

	st, err := s.Create(ctx, validInput("Ann"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	other := validInput("Ben")
	other.Email = "ben@example.com"
	if _, err := s.Create(ctx, other); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	before, after, err := s.Update(ctx, st.ID, StudentPatch{ClassName: strPtr("11B")})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if before.ClassName != "10A" || after.ClassName != "11B" || after.Name != "Ann" {
		t.Errorf("Update() before=%q after=%q name=%q", before.ClassName, after.ClassName, after.Name)
	}

	if _, _, err := s.Update(ctx, st.ID, StudentPatch{Email: strPtr("ben@example.com")}); !util.IsKind(err, util.KindConflict) {
		t.Errorf("Update(taken email) error = %v, want conflict", err)
	}
	if _, _, err := s.Update(ctx, st.ID, StudentPatch{Gender: strPtr("none")}); !util.IsKind(err, util.KindValidation) {
		t.Errorf("Update(bad gender) error = %v, want validation", err)
	}
	if _, _, err := s.Update(ctx, "missing", StudentPatch{Name: strPtr("x")}); !util.IsKind(err, util.KindNotFound) {
		t.Errorf("Update(missing) error = %v, want not found", err)
	}
}

func TestStudentDelete(t *testing.T) {
	s := NewStudentStore(newTestDB(t))
	ctx := context.Background()

	st, err := s.Create(ctx, validInput("Ann"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	before, err := s.Delete(ctx, st.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if before.ID != st.ID {
		t.Errorf("Delete() returned %q, want %q", before.ID, st.ID)
	}
	if _, err := s.Get(ctx, st.ID); !util.IsKind(err, util.KindNotFound) {
		t.Errorf("Get(deleted) error = %v, want not found", err)
	}
	if _, err := s.Delete(ctx, st.ID); !util.IsKind(err, util.KindNotFound) {
		t.Errorf("Delete(again) error = %v, want not found", err)
	}
}

func TestStudentExistsAndGroups(t *testing.T) {
	s := NewStudentStore(newTestDB(t))
	ctx := context.Background()

	a := validInput("Ann")
	a.Email = "ann@example.com"
	b := validInput("Ben")
	b.ClassName = "10B"
	b.Gender = "female"
	for _, in := range []StudentInput{a, b} {
		if _, err := s.Create(ctx, in); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	checks := []struct {
		key  DuplicateKey
		want bool
	}{
		{DuplicateKey{Email: "ANN@example.com"}, true},
		{DuplicateKey{Email: "nobody@example.com", Name: "Ben", ClassName: "10B"}, false},
		{DuplicateKey{Name: "Ben", ClassName: "10B"}, true},
		{DuplicateKey{Name: "Ben", ClassName: "10A"}, false},
	}
	for _, c := range checks {
		got, err := s.Exists(ctx, c.key)
		if err != nil {
			t.Fatalf("Exists(%+v) error = %v", c.key, err)
		}
		if got != c.want {
			t.Errorf("Exists(%+v) = %v, want %v", c.key, got, c.want)
		}
	}

	byClass, err := s.CountByClass(ctx)
	if err != nil {
		t.Fatalf("CountByClass() error = %v", err)
	}
	if len(byClass) != 2 || byClass[0].Name != "10A" || byClass[0].Count != 1 {
		t.Errorf("CountByClass() = %+v", byClass)
	}
	byGender, err := s.CountByGender(ctx)
	if err != nil {
		t.Fatalf("CountByGender() error = %v", err)
	}
	if len(byGender) != 2 || byGender[0].Name != "female" {
		t.Errorf("CountByGender() = %+v", byGender)
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total    int64
		size     int
		expected int
	}{
		{0, 10, 0}, {1, 10, 1}, {10, 10, 1}, {11, 10, 2}, {25, 10, 3},
	}
	for _, c := range cases {
		if got := TotalPages(c.total, c.size); got != c.expected {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", c.total, c.size, got, c.expected)
		}
	}
}

func asError(err error, target **util.AppError) bool {
	return errors.As(err, target)
}
