package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"student-records/internal/models"
	"student-records/internal/util"
)

// ErrRenewalNotFound is returned when a renewal credential is unknown or
// already consumed.
var ErrRenewalNotFound = errors.New("renewal credential not found")

// RenewalStore keeps renewal credentials by the hash of their token.
// Consume is single-use: it returns the owner and forgets the credential.
type RenewalStore interface {
	Save(ctx context.Context, tokenHash string, userID uint, expiresAt time.Time) error
	Consume(ctx context.Context, tokenHash string) (userID uint, expiresAt time.Time, err error)
	Delete(ctx context.Context, tokenHash string) error
}

// GormRenewalStore persists renewal credentials in the database.
type GormRenewalStore struct {
	db *gorm.DB
}

func NewGormRenewalStore(db *gorm.DB) *GormRenewalStore {
	return &GormRenewalStore{db: db}
}

func (s *GormRenewalStore) Save(ctx context.Context, tokenHash string, userID uint, expiresAt time.Time) error {
	rt := models.RenewalToken{TokenHash: tokenHash, UserID: userID, ExpiresAt: expiresAt.UTC()}
	if err := s.db.WithContext(ctx).Create(&rt).Error; err != nil {
		return util.Upstream("save renewal credential", err)
	}
	return nil
}

func (s *GormRenewalStore) Consume(ctx context.Context, tokenHash string) (uint, time.Time, error) {
	var rt models.RenewalToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rt, "token_hash = ?", tokenHash).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.RenewalToken{}, "token_hash = ?", tokenHash)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, time.Time{}, ErrRenewalNotFound
		}
		return 0, time.Time{}, util.Upstream("consume renewal credential", err)
	}
	return rt.UserID, rt.ExpiresAt, nil
}

func (s *GormRenewalStore) Delete(ctx context.Context, tokenHash string) error {
	if err := s.db.WithContext(ctx).Delete(&models.RenewalToken{}, "token_hash = ?", tokenHash).Error; err != nil {
		return util.Upstream("delete renewal credential", err)
	}
	return nil
}

// PurgeExpired removes credentials that expired before now.
func (s *GormRenewalStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&models.RenewalToken{})
	if res.Error != nil {
		return 0, util.Upstream("purge renewal credentials", res.Error)
	}
	return res.RowsAffected, nil
}
