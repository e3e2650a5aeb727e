package tokens

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Pair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	AccessExp    time.Time `json:"accessExpiresAt"`
	RefreshExp   time.Time `json:"refreshExpiresAt"`
}

type SignerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// Signer mints access/refresh pairs and parses them back.
type Signer struct {
	cfg     SignerConfig
	access  *Parser
	refresh *Parser
}

func NewSigner(cfg SignerConfig) *Signer {
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Signer{
		cfg:     cfg,
		access:  NewParser(cfg.AccessSecret, cfg.Issuer, cfg.Audience).WithClock(cfg.Now),
		refresh: NewParser(cfg.RefreshSecret, cfg.Issuer, cfg.Audience).WithClock(cfg.Now),
	}
}

func (s *Signer) Issuer() string   { return s.cfg.Issuer }
func (s *Signer) Audience() string { return s.cfg.Audience }

func (s *Signer) AccessParser() *Parser { return s.access }

func (s *Signer) IssuePair(p Principal) (Pair, error) {
	now := s.cfg.Now()

	access, accessExp, err := s.sign(p, UseAccess, s.cfg.AccessSecret, now, s.cfg.AccessTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, refreshExp, err := s.sign(p, UseRefresh, s.cfg.RefreshSecret, now, s.cfg.RefreshTTL)
	if err != nil {
		return Pair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *Signer) sign(p Principal, use string, secret []byte, now time.Time, ttl time.Duration) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, fmt.Errorf("empty %s secret", use)
	}
	exp := now.Add(ttl)
	claims := Claims{
		Principal: p,
		TokenUse:  use,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			Subject:   p.SubjectID(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// ParseAccess accepts only access tokens signed with the access secret.
func (s *Signer) ParseAccess(tokenStr string) (*Claims, error) {
	return s.access.Parse(tokenStr, UseAccess)
}

// ParseRefresh accepts only refresh tokens signed with the refresh secret.
func (s *Signer) ParseRefresh(tokenStr string) (*Claims, error) {
	return s.refresh.Parse(tokenStr, UseRefresh)
}
