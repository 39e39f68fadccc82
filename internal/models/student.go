package models

import (
	"strings"
	"time"

	"student-records/internal/diff"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// NormalizeGender lower-cases and trims; "Male" and "male" are the same.
func NormalizeGender(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Student is one roster record. Email is NULL when absent so the unique
// index only applies to supplied addresses.
type Student struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Name            string     `gorm:"size:128;index;not null" json:"name"`
	Email           *string    `gorm:"size:255;uniqueIndex" json:"email,omitempty"`
	Phone           string     `gorm:"size:32;not null" json:"phone"`
	ClassName       string     `gorm:"size:64;index;not null" json:"className"`
	Gender          string     `gorm:"size:16;index;not null" json:"gender"`
	DateOfBirth     *time.Time `json:"dateOfBirth,omitempty"`
	Address         string     `gorm:"size:255;not null" json:"address"`
	ProfilePhotoURL string     `gorm:"size:512" json:"profilePhotoUrl,omitempty"`
	CreatedAt       time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Snapshot projects the record onto diff fields keyed by JSON name.
func (s *Student) Snapshot() diff.Fields {
	if s == nil {
		return nil
	}
	f := diff.Fields{
		"id":              s.ID,
		"name":            s.Name,
		"email":           nil,
		"phone":           s.Phone,
		"className":       s.ClassName,
		"gender":          s.Gender,
		"dateOfBirth":     nil,
		"address":         s.Address,
		"profilePhotoUrl": s.ProfilePhotoURL,
		"createdAt":       s.CreatedAt.UTC(),
		"updatedAt":       s.UpdatedAt.UTC(),
	}
	if s.Email != nil {
		f["email"] = *s.Email
	}
	if s.DateOfBirth != nil {
		f["dateOfBirth"] = s.DateOfBirth.UTC()
	}
	return f
}

// EmailOrEmpty returns the email or "".
func (s *Student) EmailOrEmpty() string {
	if s.Email == nil {
		return ""
	}
	return *s.Email
}
