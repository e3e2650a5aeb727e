package models

import (
	"time"

	"github.com/Skotchmaster/authtrust/pkg/tokens"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"   json:"id"`
	Username      string    `gorm:"uniqueIndex;not null"       json:"username"`
	Email         string    `gorm:"uniqueIndex;not null"       json:"email"`
	PasswordHash  string    `gorm:"not null"                   json:"-"`
	Role          string    `gorm:"not null;default:USER"      json:"role"`
	EmailVerified bool      `gorm:"not null;default:false"     json:"emailVerified"`
	CreatedAt     time.Time `                                  json:"createdAt"`
}

func (u User) Principal() tokens.Principal {
	return tokens.Principal{
		UserID:        u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}
}

// RevokedToken is a blacklisted access token, keyed by the SHA-256 of its
// value. It is kept until the token would have expired on its own.
type RevokedToken struct {
	TokenHash string    `gorm:"primaryKey;size:64"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

// ConsumedRefreshToken marks a refresh token as already exchanged.
type ConsumedRefreshToken struct {
	JTI       string    `gorm:"primaryKey;size:64"`
	UserID    uint      `gorm:"index;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
