package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/authtrust/internal/hash"
	"github.com/Skotchmaster/authtrust/internal/mykafka"
	"github.com/Skotchmaster/authtrust/pkg/authclient"
	"github.com/Skotchmaster/authtrust/pkg/logging"
	"github.com/Skotchmaster/authtrust/pkg/metrics"
	"github.com/Skotchmaster/authtrust/pkg/tokens"
	"github.com/Skotchmaster/authtrust/services/auth/internal/models"
	"github.com/Skotchmaster/authtrust/services/auth/internal/repo"
)

type UserRepo interface {
	CreateUserIfNotExists(ctx context.Context, u *models.User) error
	FindUserByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error)
}

// RevocationStore is the issuer's durable memory of blacklisted access
// tokens and exchanged refresh tokens.
type RevocationStore interface {
	Add(ctx context.Context, token string, expiry time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	ConsumeRefresh(ctx context.Context, jti string, userID uint, expiry time.Time) error
	Sweep(ctx context.Context) (int64, error)
}

type AuthService struct {
	Users   UserRepo
	Store   RevocationStore
	Signer  *tokens.Signer
	Events  mykafka.Publisher
	Metrics *metrics.Metrics
	// AllowedClients restricts who may call Validate. Empty allows any
	// non-empty client id.
	AllowedClients []string
	// ValidateTimeout bounds one Validate call regardless of the caller's
	// deadline. Zero means DefaultValidateTimeout.
	ValidateTimeout time.Duration
}

const DefaultValidateTimeout = 3 * time.Second

type LoginResult struct {
	User   models.User
	Tokens tokens.Pair
}

// Issue signs a fresh pair for p. It touches no storage.
func (s *AuthService) Issue(ctx context.Context, p tokens.Principal) (tokens.Pair, error) {
	pair, err := s.Signer.IssuePair(p)
	if err != nil {
		logging.FromContext(ctx).Error("issue_failed", "user_id", p.UserID, "error", err)
		s.count("issue", "error")
		return tokens.Pair{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	s.count("issue", "ok")
	return pair, nil
}

// Rotate exchanges a refresh token for a new pair. Each refresh token can be
// exchanged once; any failure returns ErrInvalidGrant and no pair.
func (s *AuthService) Rotate(ctx context.Context, refreshToken string) (tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.rotate")

	claims, err := s.Signer.ParseRefresh(refreshToken)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "reason", "refresh token rejected", "error", err)
		s.count("rotate", "invalid")
		return tokens.Pair{}, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}

	pair, err := s.Signer.IssuePair(claims.Principal)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "error", err)
		s.count("rotate", "error")
		return tokens.Pair{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	if err := s.Store.ConsumeRefresh(ctx, claims.ID, claims.UserID, claims.Expiry()); err != nil {
		if errors.Is(err, repo.ErrAlreadyConsumed) {
			l.Warn("refresh_failed", "status", 401, "reason", "refresh token reused", "user_id", claims.UserID)
			s.count("rotate", "reused")
			return tokens.Pair{}, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		s.count("rotate", "error")
		return tokens.Pair{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.count("rotate", "ok")
	s.publish(ctx, mykafka.EventRefreshed, claims.Principal)
	return pair, nil
}

// Revoke blacklists an access token until it expires. Tokens that have
// already expired are ignored since no verifier will accept them anyway.
func (s *AuthService) Revoke(ctx context.Context, accessToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.revoke")

	claims, err := s.Signer.ParseAccess(accessToken)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		l.Info("revoke_skipped", "reason", "token already expired")
		return nil
	case err != nil:
		s.count("revoke", "invalid")
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if err := s.Store.Add(ctx, accessToken, claims.Expiry()); err != nil {
		l.Error("revoke_failed", "status", 500, "error", err)
		s.count("revoke", "error")
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.count("revoke", "ok")
	l.Info("token_revoked", "user_id", claims.UserID, "expires_at", claims.Expiry())
	s.publish(ctx, mykafka.EventRevoked, claims.Principal)
	return nil
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrValidation
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         models.RoleUser,
	}

	if err := s.Users.CreateUserIfNotExists(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "status", 409, "reason", "user already exist")
			return nil, ErrConflict
		}
		l.Error("register_error", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.publish(ctx, mykafka.EventRegistered, user.Principal())
	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, usernameOrEmail, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "login", usernameOrEmail)

	if usernameOrEmail == "" || password == "" {
		return nil, ErrValidation
	}

	user, err := s.Users.FindUserByLogin(ctx, strings.TrimSpace(usernameOrEmail))
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			hash.DummyCheck(password)
			l.Warn("login_failed", "status", 401, "reason", "unknown user")
			s.count("login", "invalid")
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "status", 401, "reason", "wrong password")
		s.count("login", "invalid")
		return nil, ErrInvalidCredentials
	}

	pair, err := s.Issue(ctx, user.Principal())
	if err != nil {
		return nil, err
	}

	s.count("login", "ok")
	s.publish(ctx, mykafka.EventLogin, user.Principal())
	return &LoginResult{User: *user, Tokens: pair}, nil
}

// LogOut revokes the access token and, when given, retires the refresh
// token so it cannot be rotated again.
func (s *AuthService) LogOut(ctx context.Context, accessToken, refreshToken string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if accessToken != "" {
		if err := s.Revoke(ctx, accessToken); err != nil {
			return err
		}
	}

	if refreshToken != "" {
		claims, err := s.Signer.ParseRefresh(refreshToken)
		if err != nil {
			l.Info("logout_refresh_ignored", "reason", "refresh token not usable", "error", err)
			return nil
		}
		err = s.Store.ConsumeRefresh(ctx, claims.ID, claims.UserID, claims.Expiry())
		if err != nil && !errors.Is(err, repo.ErrAlreadyConsumed) {
			l.Error("logout_failed", "status", 500, "reason", "cannot retire refresh token", "error", err)
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		s.publish(ctx, mykafka.EventLogout, claims.Principal)
	}
	return nil
}

// Introspect checks signature, claims and the revocation store. A nil error
// with a non-empty code is a definitive negative answer.
func (s *AuthService) Introspect(ctx context.Context, accessToken string) (*tokens.Principal, tokens.Code, error) {
	claims, err := s.Signer.ParseAccess(accessToken)
	if err != nil {
		code := tokens.Classify(err)
		if code == "" {
			code = tokens.CodeTokenInvalid
		}
		return nil, code, nil
	}

	revoked, err := s.Store.IsRevoked(ctx, accessToken)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInternal, err)
	}
	if revoked {
		return nil, tokens.CodeTokenRevoked, nil
	}
	return &claims.Principal, "", nil
}

// Validate answers a relying party's question about an access token.
func (s *AuthService) Validate(ctx context.Context, accessToken, clientID string) (*authclient.ValidateResponse, error) {
	l := logging.FromContext(ctx).With("svc", "auth.validate", "client_id", clientID)

	if !s.clientAllowed(clientID) {
		l.Warn("validate_rejected", "reason", "unknown client")
		s.count("validate", "invalid_client")
		return &authclient.ValidateResponse{Error: tokens.CodeInvalidClient}, nil
	}

	timeout := s.ValidateTimeout
	if timeout <= 0 {
		timeout = DefaultValidateTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p, code, err := s.Introspect(ctx, accessToken)
	if err != nil {
		l.Error("validate_failed", "status", 500, "error", err)
		s.count("validate", "error")
		return nil, err
	}
	if code != "" {
		l.Info("validate_negative", "code", code)
		s.count("validate", string(code))
		return &authclient.ValidateResponse{Error: code}, nil
	}

	l.Info("validate_positive", "user_id", p.UserID)
	s.count("validate", "ok")
	return &authclient.ValidateResponse{Valid: true, User: p}, nil
}

// Sweep drops revocation records whose tokens have expired anyway.
func (s *AuthService) Sweep(ctx context.Context) (int64, error) {
	return s.Store.Sweep(ctx)
}

func (s *AuthService) clientAllowed(clientID string) bool {
	if clientID == "" {
		return false
	}
	return len(s.AllowedClients) == 0 || slices.Contains(s.AllowedClients, clientID)
}

func (s *AuthService) count(op, status string) {
	if s.Metrics != nil {
		s.Metrics.Issued.WithLabelValues(op, status).Inc()
	}
}

// publish sends the event in the background and never fails the caller.
func (s *AuthService) publish(ctx context.Context, eventType string, p tokens.Principal) {
	if s.Events == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e := mykafka.NewEvent(eventType, p.UserID, p.Role)
	go func() {
		if err := s.Events.PublishEvent(ctx, e); err != nil {
			logging.FromContext(ctx).Warn("event_publish_failed", "type", eventType, "error", err)
		}
	}()
}
