package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/authtrust/services/auth/internal/models"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserAlreadyExist = errors.New("user already exist")
	ErrAlreadyConsumed  = errors.New("refresh token already consumed")
)

type GormRepo struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewGormRepo(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db, now: time.Now}
}

// WithClock is for tests that need to move expiry around.
func (r *GormRepo) WithClock(now func() time.Time) *GormRepo {
	r.now = now
	return r
}

func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.RevokedToken{},
		&models.ConsumedRefreshToken{},
	)
}

func (r *GormRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
