package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"student-records/internal/models"
	"student-records/internal/util"
)

// UserStore owns account persistence.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create stores u; a taken email is a Conflict.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	u.Email = models.NormalizeEmail(u.Email)
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
		return util.Upstream("lookup user", err)
	}
	if n > 0 {
		return util.Conflict("email already registered")
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return util.Conflict("email already registered")
		}
		return util.Upstream("create user", err)
	}
	return nil
}

func (s *UserStore) ByEmail(ctx context.Context, email string) (models.User, error) {
	return s.first(ctx, "email = ?", models.NormalizeEmail(email))
}

func (s *UserStore) ByID(ctx context.Context, id uint) (models.User, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *UserStore) first(ctx context.Context, query string, arg interface{}) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, util.NotFound("user not found")
		}
		return models.User{}, util.Upstream("load user", err)
	}
	return u, nil
}

// UpdatePassword replaces the stored password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, id uint, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", hash)
	if res.Error != nil {
		return util.Upstream("update password", res.Error)
	}
	if res.RowsAffected == 0 {
		return util.NotFound("user not found")
	}
	return nil
}
