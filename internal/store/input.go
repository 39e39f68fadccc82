package store

import (
	"strings"
	"time"

	"student-records/internal/models"
	"student-records/internal/util"
)

// StudentInput carries the writable fields of a student. It is what create
// and import hand to the store.
type StudentInput struct {
	Name            string `json:"name" form:"name" validate:"required"`
	Email           string `json:"email" form:"email" validate:"omitempty,email"`
	Phone           string `json:"phone" form:"phone" validate:"required"`
	ClassName       string `json:"className" form:"className" validate:"required"`
	Gender          string `json:"gender" form:"gender" validate:"required,oneof=male female other"`
	DateOfBirth     string `json:"dateOfBirth" form:"dateOfBirth" validate:"omitempty,isodate"`
	Address         string `json:"address" form:"address" validate:"required"`
	ProfilePhotoURL string `json:"profilePhotoUrl" form:"profilePhotoUrl"`
}

// Normalize trims every field and lower-cases email and gender.
func (in *StudentInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = models.NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.ClassName = strings.TrimSpace(in.ClassName)
	in.Gender = models.NormalizeGender(in.Gender)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.Address = strings.TrimSpace(in.Address)
	in.ProfilePhotoURL = strings.TrimSpace(in.ProfilePhotoURL)
}

// Validate returns a validation error listing every bad field.
func (in StudentInput) Validate() error {
	if fields := util.ValidateStruct(in); len(fields) > 0 {
		return util.Invalid("validation error", fields...)
	}
	return nil
}

// toModel assumes in is normalised and valid.
func (in StudentInput) toModel() models.Student {
	s := models.Student{
		Name:            in.Name,
		Phone:           in.Phone,
		ClassName:       in.ClassName,
		Gender:          in.Gender,
		Address:         in.Address,
		ProfilePhotoURL: in.ProfilePhotoURL,
	}
	if in.Email != "" {
		email := in.Email
		s.Email = &email
	}
	if in.DateOfBirth != "" {
		if t, err := util.ParseDate(in.DateOfBirth); err == nil {
			s.DateOfBirth = &t
		}
	}
	return s
}

func inputFromModel(s models.Student) StudentInput {
	in := StudentInput{
		Name:            s.Name,
		Email:           s.EmailOrEmpty(),
		Phone:           s.Phone,
		ClassName:       s.ClassName,
		Gender:          s.Gender,
		Address:         s.Address,
		ProfilePhotoURL: s.ProfilePhotoURL,
	}
	if s.DateOfBirth != nil {
		in.DateOfBirth = s.DateOfBirth.UTC().Format(time.RFC3339)
	}
	return in
}

// StudentPatch is a partial update: nil fields are left untouched.
type StudentPatch struct {
	Name            *string `json:"name" form:"name"`
	Email           *string `json:"email" form:"email"`
	Phone           *string `json:"phone" form:"phone"`
	ClassName       *string `json:"className" form:"className"`
	Gender          *string `json:"gender" form:"gender"`
	DateOfBirth     *string `json:"dateOfBirth" form:"dateOfBirth"`
	Address         *string `json:"address" form:"address"`
	ProfilePhotoURL *string `json:"profilePhotoUrl" form:"profilePhotoUrl"`
}

// Empty reports whether the patch changes nothing.
func (p StudentPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.ClassName == nil &&
		p.Gender == nil && p.DateOfBirth == nil && p.Address == nil && p.ProfilePhotoURL == nil
}

// apply validates the patch against cur and returns the new state. Only the
// provided fields change.
func (p StudentPatch) apply(cur models.Student) (models.Student, error) {
	merged := inputFromModel(cur)
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&merged.Name, p.Name)
	set(&merged.Email, p.Email)
	set(&merged.Phone, p.Phone)
	set(&merged.ClassName, p.ClassName)
	set(&merged.Gender, p.Gender)
	set(&merged.DateOfBirth, p.DateOfBirth)
	set(&merged.Address, p.Address)
	set(&merged.ProfilePhotoURL, p.ProfilePhotoURL)

	merged.Normalize()
	if err := merged.Validate(); err != nil {
		return models.Student{}, err
	}

	next := cur
	fresh := merged.toModel()
	if p.Name != nil {
		next.Name = fresh.Name
	}
	if p.Email != nil {
		next.Email = fresh.Email
	}
	if p.Phone != nil {
		next.Phone = fresh.Phone
	}
	if p.ClassName != nil {
		next.ClassName = fresh.ClassName
	}
	if p.Gender != nil {
		next.Gender = fresh.Gender
	}
	if p.DateOfBirth != nil {
		next.DateOfBirth = fresh.DateOfBirth
	}
	if p.Address != nil {
		next.Address = fresh.Address
	}
	if p.ProfilePhotoURL != nil {
		next.ProfilePhotoURL = fresh.ProfilePhotoURL
	}
	return next, nil
}
