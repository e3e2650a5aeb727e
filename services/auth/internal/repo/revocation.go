package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	jwthelp "github.com/Skotchmaster/authtrust/pkg/jwt"
	"github.com/Skotchmaster/authtrust/services/auth/internal/models"
)

// Add blacklists token until expiry. Adding the same token twice is a no-op.
func (r *GormRepo) Add(ctx context.Context, token string, expiry time.Time) error {
	rec := models.RevokedToken{
		TokenHash: jwthelp.TokenKey(token),
		ExpiresAt: expiry.UTC(),
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec).Error
}

func (r *GormRepo) IsRevoked(ctx context.Context, token string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&models.RevokedToken{}).
		Where("token_hash = ?", jwthelp.TokenKey(token)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConsumeRefresh records jti as exchanged. The primary key makes the check
// and the insert one atomic statement, so two concurrent rotations of the
// same refresh token cannot both succeed.
func (r *GormRepo) ConsumeRefresh(ctx context.Context, jti string, userID uint, expiry time.Time) error {
	rec := models.ConsumedRefreshToken{
		JTI:       jti,
		UserID:    userID,
		ExpiresAt: expiry.UTC(),
	}
	tx := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rec)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrAlreadyConsumed
	}
	return nil
}

// Sweep deletes revocation and consumed-refresh records whose token has
// expired and returns the number of rows removed.
func (r *GormRepo) Sweep(ctx context.Context) (int64, error) {
	now := r.now().UTC()
	var removed int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("expires_at <= ?", now).Delete(&models.RevokedToken{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected

		res = tx.Where("expires_at <= ?", now).Delete(&models.ConsumedRefreshToken{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
